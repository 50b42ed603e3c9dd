package ucan

import (
	"fmt"
	"time"

	"github.com/ipld/go-ipld-prime/datamodel"

	"github.com/candorlabs/go-ucankit/core/ipld/codec/cbor"
	"github.com/candorlabs/go-ucankit/did"
	"github.com/candorlabs/go-ucankit/ucan/crypto/signature"
	udm "github.com/candorlabs/go-ucankit/ucan/datamodel/ucan"
	"github.com/candorlabs/go-ucankit/ucan/formatter"

	pdm "github.com/candorlabs/go-ucankit/ucan/datamodel/payload"
)

const version = "0.9.1"

// CurrentVersion returns the UCAN spec version this library produces tokens
// for.
func CurrentVersion() Version {
	return version
}

// Option is an option configuring a UCAN.
type Option func(cfg *ucanConfig) error

type ucanConfig struct {
	exp   *uint64
	noexp bool
	nbf   uint64
	nnc   string
	fct   []FactBuilder
	prf   []Link
}

// WithExpiration configures the expiration time in UTC seconds since Unix
// epoch.
func WithExpiration(exp uint64) Option {
	return func(cfg *ucanConfig) error {
		cfg.exp = &exp
		cfg.noexp = false
		return nil
	}
}

// WithNoExpiration configures the UCAN to never expire.
//
// WARNING: this will cause the UCAN to be valid FOREVER, unless revoked.
func WithNoExpiration() Option {
	return func(cfg *ucanConfig) error {
		cfg.exp = nil
		cfg.noexp = true
		return nil
	}
}

// WithNotBefore configures the time in UTC seconds since Unix epoch when the
// UCAN will become valid.
func WithNotBefore(nbf uint64) Option {
	return func(cfg *ucanConfig) error {
		cfg.nbf = nbf
		return nil
	}
}

// WithNonce configures the nonce value for the UCAN.
func WithNonce(nnc string) Option {
	return func(cfg *ucanConfig) error {
		cfg.nnc = nnc
		return nil
	}
}

// WithFacts configures the facts for the UCAN.
func WithFacts(fct []FactBuilder) Option {
	return func(cfg *ucanConfig) error {
		cfg.fct = fct
		return nil
	}
}

// WithProofs configures the proofs for the UCAN.
func WithProofs(prf []Link) Option {
	return func(cfg *ucanConfig) error {
		cfg.prf = prf
		return nil
	}
}

// Issue creates a new signed token with a given issuer. If expiration is
// not set it defaults to 30 seconds from now.
func Issue(issuer Signer, audience Principal, capabilities []Capability[CaveatBuilder], options ...Option) (View, error) {
	cfg := ucanConfig{}
	for _, opt := range options {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.exp == nil && !cfg.noexp {
		exp := Now() + 30
		cfg.exp = &exp
	}

	var capsmdl []udm.CapabilityModel
	for _, cap := range capabilities {
		nb, err := cap.Nb().Build()
		if err != nil {
			return nil, fmt.Errorf("building caveats: %s", err)
		}
		if nb != nil && nb.Length() == 0 {
			nb = nil
		}
		capsmdl = append(capsmdl, udm.CapabilityModel{
			With: cap.With(),
			Can:  cap.Can(),
			Nb:   nb,
		})
	}

	var fctsmdl []udm.FactModel
	for _, f := range cfg.fct {
		nd, err := f.Build()
		if err != nil {
			return nil, fmt.Errorf("building fact: %s", err)
		}
		fct, err := factModelOf(nd)
		if err != nil {
			return nil, fmt.Errorf("building fact: %s", err)
		}
		fctsmdl = append(fctsmdl, fct)
	}

	var nnc *string
	if cfg.nnc != "" {
		nnc = &cfg.nnc
	}
	var nbf *uint64
	if cfg.nbf != 0 {
		nbf = &cfg.nbf
	}

	var prfstrs []string
	for _, link := range cfg.prf {
		prfstrs = append(prfstrs, link.String())
	}

	payload := pdm.PayloadModel{
		Iss: issuer.DID().String(),
		Aud: audience.DID().String(),
		Att: capsmdl,
		Prf: prfstrs,
		Exp: cfg.exp,
		Fct: fctsmdl,
		Nnc: nnc,
		Nbf: nbf,
	}
	str, err := formatter.FormatSignPayload(payload, version, issuer.SignatureAlgorithm())
	if err != nil {
		return nil, fmt.Errorf("formatting signature payload: %s", err)
	}

	model := udm.UCANModel{
		V:   version,
		Iss: issuer.DID().Bytes(),
		Aud: audience.DID().Bytes(),
		S:   issuer.Sign([]byte(str)).Bytes(),
		Att: capsmdl,
		Prf: cfg.prf,
		Exp: cfg.exp,
		Fct: fctsmdl,
		Nnc: nnc,
		Nbf: nbf,
	}
	return NewUCAN(&model)
}

// Encode serializes a UCAN model to its canonical DAG-CBOR bytes.
func Encode(model *udm.UCANModel) ([]byte, error) {
	return cbor.Encode(model, udm.Type())
}

// Decode deserializes canonical DAG-CBOR bytes to a UCAN view.
func Decode(b []byte) (View, error) {
	model := udm.UCANModel{}
	if err := cbor.Decode(b, &model, udm.Type()); err != nil {
		return nil, fmt.Errorf("decoding UCAN: %w", err)
	}
	return NewUCAN(&model)
}

// VerifySignature verifies that the token signature was produced over the
// canonical signed payload by the given verifier.
func VerifySignature(v View, verifier Verifier) (bool, error) {
	model := v.Model()

	iss, err := did.Decode(model.Iss)
	if err != nil {
		return false, fmt.Errorf("decoding issuer DID: %w", err)
	}
	aud, err := did.Decode(model.Aud)
	if err != nil {
		return false, fmt.Errorf("decoding audience DID: %w", err)
	}

	var prfstrs []string
	for _, link := range model.Prf {
		prfstrs = append(prfstrs, link.String())
	}

	payload := pdm.PayloadModel{
		Iss: iss.String(),
		Aud: aud.String(),
		Att: model.Att,
		Prf: prfstrs,
		Exp: model.Exp,
		Fct: model.Fct,
		Nnc: model.Nnc,
		Nbf: model.Nbf,
	}

	sig := v.Signature()
	str, err := formatter.FormatSignPayload(payload, model.V, algorithmName(sig.Code()))
	if err != nil {
		return false, fmt.Errorf("formatting signature payload: %s", err)
	}

	return sig.Verify([]byte(str), verifier), nil
}

func algorithmName(code uint64) string {
	switch code {
	case signature.EdDSA:
		return "EdDSA"
	case signature.RS256:
		return "RS256"
	default:
		return ""
	}
}

// IsExpired checks if a UCAN is expired.
func IsExpired(ucan UCAN) bool {
	exp := ucan.Expiration()
	return exp != nil && *exp <= Now()
}

// IsTooEarly checks if a UCAN is not active yet.
func IsTooEarly(ucan UCAN) bool {
	nbf := ucan.NotBefore()
	return nbf != 0 && Now() < nbf
}

// Now returns a UTC Unix timestamp for comparing it against the time window
// of the UCAN.
func Now() uint64 {
	return uint64(time.Now().Unix())
}

func factModelOf(nd datamodel.Node) (udm.FactModel, error) {
	fct := udm.FactModel{Values: map[string]datamodel.Node{}}
	it := nd.MapIterator()
	for !it.Done() {
		k, v, err := it.Next()
		if err != nil {
			return udm.FactModel{}, err
		}
		key, err := k.AsString()
		if err != nil {
			return udm.FactModel{}, err
		}
		fct.Keys = append(fct.Keys, key)
		fct.Values[key] = v
	}
	return fct, nil
}
