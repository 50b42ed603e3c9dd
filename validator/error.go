package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ipld/go-ipld-prime/datamodel"

	"github.com/candorlabs/go-ucankit/core/delegation"
	"github.com/candorlabs/go-ucankit/core/ipld"
	"github.com/candorlabs/go-ucankit/core/result/failure"
	"github.com/candorlabs/go-ucankit/did"
	"github.com/candorlabs/go-ucankit/ucan"
	vdm "github.com/candorlabs/go-ucankit/validator/datamodel"
)

// InvalidCapability is the result of applying a matcher to a source
// capability that it cannot produce a match for - either the ability is not
// the one the matcher handles (UnknownCapability) or it is, but the resource
// or caveats failed to parse (MalformedCapability).
type InvalidCapability interface {
	failure.Failure
	Capability() ucan.Capability[any]
}

// DelegationSubError is a cause collected under a DelegationError.
// Unexported method restricts the implementations to this package.
type DelegationSubError interface {
	failure.Failure
	isDelegationSubError()
}

// InvalidProof is a proof rejected before capability matching: expired, not
// yet valid, bad signature, unresolvable, misaligned audience or revoked.
type InvalidProof interface {
	failure.Failure
	isInvalidProof()
}

// InvalidClaim is the failure of a proof chain search for a single claim.
type InvalidClaim interface {
	failure.Failure
	isInvalidClaim()
}

// Unauthorized is the top level validation failure, carrying every path
// explored and why it failed.
type Unauthorized interface {
	failure.Failure
	isUnauthorized()
}

type Revoked interface {
	InvalidProof
}

type UnavailableProof interface {
	InvalidProof
	Link() ucan.Link
}

type UnresolvedDID interface {
	InvalidProof
	DID() did.DID
}

type BadSignature interface {
	InvalidProof
}

type UnknownCapability interface {
	InvalidCapability
	isUnknownCapability()
}

type MalformedCapability interface {
	InvalidCapability
	isMalformedCapability()
}

type UnknownCapabilityError[Caveats any] struct {
	failure.NamedWithStackTrace
	capability ucan.Capability[Caveats]
}

func NewUnknownCapabilityError(capability ucan.Capability[any]) UnknownCapability {
	return UnknownCapabilityError[any]{failure.NamedWithCurrentStackTrace("UnknownCapability"), capability}
}

func (uce UnknownCapabilityError[Caveats]) Capability() ucan.Capability[any] {
	if c, ok := any(uce.capability).(ucan.Capability[any]); ok {
		return c
	}
	return ucan.NewCapability[any](uce.capability.Can(), uce.capability.With(), any(uce.capability.Nb()))
}

func (uce UnknownCapabilityError[Caveats]) Error() string {
	capabilityJSON, _ := json.Marshal(uce.capability)
	return fmt.Sprintf("Encountered unknown capability: %s", string(capabilityJSON))
}

func (uce UnknownCapabilityError[Caveats]) isDelegationSubError()  {}
func (uce UnknownCapabilityError[Caveats]) isUnknownCapability()   {}

type MalformedCapabilityError[Caveats any] struct {
	failure.NamedWithStackTrace
	capability ucan.Capability[Caveats]
	cause      error
}

func NewMalformedCapabilityError(capability ucan.Capability[any], cause error) MalformedCapability {
	return MalformedCapabilityError[any]{failure.NamedWithCurrentStackTrace("MalformedCapability"), capability, cause}
}

func (mce MalformedCapabilityError[Caveats]) Capability() ucan.Capability[any] {
	return ucan.NewCapability[any](mce.capability.Can(), mce.capability.With(), any(mce.capability.Nb()))
}

func (mce MalformedCapabilityError[Caveats]) Unwrap() error {
	return mce.cause
}

func (mce MalformedCapabilityError[Caveats]) Error() string {
	capabilityJSON, _ := json.Marshal(mce.capability)
	return strings.Join([]string{
		fmt.Sprintf("Encountered malformed '%s' capability: %s", mce.capability.Can(), string(capabilityJSON)),
		li(mce.cause.Error()),
	}, "\n")
}

func (mce MalformedCapabilityError[Caveats]) isDelegationSubError()  {}
func (mce MalformedCapabilityError[Caveats]) isMalformedCapability() {}

type EscalatedCapabilityError[Caveats any] struct {
	failure.NamedWithStackTrace
	claimed   ucan.Capability[Caveats]
	delegated interface{}
	cause     error
}

func NewEscalatedCapabilityError[Caveats any](claimed ucan.Capability[Caveats], delegated interface{}, cause error) DelegationSubError {
	return EscalatedCapabilityError[Caveats]{failure.NamedWithCurrentStackTrace("EscalatedCapability"), claimed, delegated, cause}
}

func (ece EscalatedCapabilityError[Caveats]) Unwrap() error {
	return ece.cause
}

func (ece EscalatedCapabilityError[Caveats]) Error() string {
	return fmt.Sprintf("Constraint violation: %s", ece.cause.Error())
}

func (ece EscalatedCapabilityError[Caveats]) isDelegationSubError() {}

// DelegationError groups the causes a single delegated capability could not
// serve a claim.
type DelegationError struct {
	failure.NamedWithStackTrace
	causes  []DelegationSubError
	context interface{}
}

func NewDelegationError(causes []DelegationSubError, context interface{}) DelegationError {
	return DelegationError{failure.NamedWithCurrentStackTrace("InvalidClaim"), causes, context}
}

func (de DelegationError) Error() string {
	return fmt.Sprintf("Cannot derive %s from delegated capabilities: %s", de.context, errors.Join(de.Unwrap()...).Error())
}

func (de DelegationError) Unwrap() []error {
	errs := make([]error, 0, len(de.causes))
	for _, cause := range de.causes {
		errs = append(errs, cause)
	}
	return errs
}

func (de DelegationError) Causes() []DelegationSubError {
	return de.causes
}

func (de DelegationError) isDelegationSubError() {}

type SessionEscalationError struct {
	failure.NamedWithStackTrace
	delegation delegation.Delegation
	cause      error
}

func NewSessionEscalationError(delegation delegation.Delegation, cause error) InvalidProof {
	return SessionEscalationError{failure.NamedWithCurrentStackTrace("SessionEscalation"), delegation, cause}
}

func (see SessionEscalationError) Error() string {
	issuer := see.delegation.Issuer().DID()
	return strings.Join([]string{
		fmt.Sprintf("Delegation %s issued by %s has an invalid session", see.delegation.Link(), issuer),
		li(see.cause.Error()),
	}, "\n")
}

func (see SessionEscalationError) isInvalidProof() {}

type InvalidSignatureError struct {
	failure.NamedWithStackTrace
	delegation delegation.Delegation
	verifier   ucan.Verifier
}

func NewInvalidSignatureError(delegation delegation.Delegation, verifier ucan.Verifier) BadSignature {
	return InvalidSignatureError{failure.NamedWithCurrentStackTrace("InvalidSignature"), delegation, verifier}
}

func (ise InvalidSignatureError) Issuer() ucan.Principal {
	return ise.delegation.Issuer()
}

func (ise InvalidSignatureError) Audience() ucan.Principal {
	return ise.delegation.Audience()
}

func (ise InvalidSignatureError) Error() string {
	issuer := ise.Issuer().DID()
	key := ise.verifier.DID()
	if !strings.HasPrefix(issuer.String(), "did:key") {
		return fmt.Sprintf(`Proof %s does not have a valid signature from %s`, ise.delegation.Link(), key)
	}
	return strings.Join([]string{
		fmt.Sprintf("Proof %s issued by %s does not have a valid signature from %s", ise.delegation.Link(), issuer, key),
		"  ℹ️ Probably issuer signed with a different key, which got rotated, invalidating delegations that were issued with prior keys",
	}, "\n")
}

func (ise InvalidSignatureError) isInvalidProof() {}

// UnverifiableSignatureError is a signature that could not be checked at all,
// e.g. because no verifier could be constructed for the issuer.
type UnverifiableSignatureError struct {
	failure.NamedWithStackTrace
	delegation delegation.Delegation
	cause      error
}

func NewUnverifiableSignatureError(delegation delegation.Delegation, cause error) BadSignature {
	return UnverifiableSignatureError{failure.NamedWithCurrentStackTrace("UnverifiableSignature"), delegation, cause}
}

func (use UnverifiableSignatureError) Unwrap() error {
	return use.cause
}

func (use UnverifiableSignatureError) Error() string {
	return fmt.Sprintf("Proof %s signature cannot be verified: %s", use.delegation.Link(), use.cause)
}

func (use UnverifiableSignatureError) isInvalidProof() {}

type UnavailableProofError struct {
	failure.NamedWithStackTrace
	link  ucan.Link
	cause error
}

func NewUnavailableProofError(link ucan.Link, cause error) UnavailableProofError {
	return UnavailableProofError{failure.NamedWithCurrentStackTrace("UnavailableProof"), link, cause}
}

func (upe UnavailableProofError) Link() ucan.Link {
	return upe.link
}

func (upe UnavailableProofError) Unwrap() error {
	return upe.cause
}

func (upe UnavailableProofError) Error() string {
	messages := []string{
		fmt.Sprintf("Linked proof '%s' is not included and could not be resolved", upe.link),
	}
	if upe.cause != nil {
		messages = append(messages, li(fmt.Sprintf("Proof resolution failed with: %s", upe.cause.Error())))
	}
	return strings.Join(messages, "\n")
}

func (upe UnavailableProofError) isInvalidProof() {}

type DIDKeyResolutionError struct {
	failure.NamedWithStackTrace
	did   did.DID
	cause error
}

func NewDIDKeyResolutionError(did did.DID, cause error) DIDKeyResolutionError {
	return DIDKeyResolutionError{failure.NamedWithCurrentStackTrace("DIDKeyResolutionError"), did, cause}
}

func (dkre DIDKeyResolutionError) DID() did.DID {
	return dkre.did
}

func (dkre DIDKeyResolutionError) Unwrap() error {
	return dkre.cause
}

func (dkre DIDKeyResolutionError) Error() string {
	return fmt.Sprintf("Unable to resolve '%s' key", dkre.did)
}

func (dkre DIDKeyResolutionError) isInvalidProof() {}

// PrincipalAlignmentError is a break in the audience chain: the delegation's
// audience is not the principal that consumed it as proof.
type PrincipalAlignmentError struct {
	failure.NamedWithStackTrace
	audience   ucan.Principal
	delegation delegation.Delegation
}

func NewPrincipalAlignmentError(audience ucan.Principal, delegation delegation.Delegation) PrincipalAlignmentError {
	return PrincipalAlignmentError{failure.NamedWithCurrentStackTrace("InvalidAudience"), audience, delegation}
}

func (pae PrincipalAlignmentError) Error() string {
	return fmt.Sprintf("Delegation audience is '%s' instead of '%s'", pae.delegation.Audience().DID(), pae.audience.DID())
}

func (pae PrincipalAlignmentError) ToIPLD() (datamodel.Node, error) {
	name := pae.Name()
	stack := pae.Stack()
	model := vdm.InvalidAudienceModel{
		Name:       &name,
		Audience:   pae.audience.DID().String(),
		Delegation: vdm.DelegationModel{Audience: pae.delegation.Audience().DID().String()},
		Message:    pae.Error(),
		Stack:      &stack,
	}
	return ipld.WrapWithRecovery(&model, vdm.InvalidAudienceType())
}

func (pae PrincipalAlignmentError) isInvalidProof() {}

type ExpiredError struct {
	failure.NamedWithStackTrace
	delegation delegation.Delegation
}

func NewExpiredError(delegation delegation.Delegation) ExpiredError {
	return ExpiredError{failure.NamedWithCurrentStackTrace("Expired"), delegation}
}

func (ee ExpiredError) Error() string {
	exp := ee.delegation.Expiration()
	return fmt.Sprintf("Proof %s has expired on %s", ee.delegation.Link(),
		time.Unix(int64(*exp), 0).UTC().Format(time.RFC3339))
}

func (ee ExpiredError) ToIPLD() (datamodel.Node, error) {
	name := ee.Name()
	stack := ee.Stack()
	model := vdm.ExpiredModel{
		Name:      &name,
		Message:   ee.Error(),
		ExpiredAt: int64(*ee.delegation.Expiration()),
		Stack:     &stack,
	}
	return ipld.WrapWithRecovery(&model, vdm.ExpiredType())
}

func (ee ExpiredError) isInvalidProof() {}

type NotValidBeforeError struct {
	failure.NamedWithStackTrace
	delegation delegation.Delegation
}

func NewNotValidBeforeError(delegation delegation.Delegation) NotValidBeforeError {
	return NotValidBeforeError{failure.NamedWithCurrentStackTrace("NotValidBefore"), delegation}
}

func (nvbe NotValidBeforeError) Error() string {
	return fmt.Sprintf("Proof %s is not valid before %s", nvbe.delegation.Link(),
		time.Unix(int64(nvbe.delegation.NotBefore()), 0).UTC().Format(time.RFC3339))
}

func (nvbe NotValidBeforeError) ToIPLD() (datamodel.Node, error) {
	name := nvbe.Name()
	stack := nvbe.Stack()
	model := vdm.NotValidBeforeModel{
		Name:    &name,
		Message: nvbe.Error(),
		ValidAt: int64(nvbe.delegation.NotBefore()),
		Stack:   &stack,
	}
	return ipld.WrapWithRecovery(&model, vdm.NotValidBeforeType())
}

func (nvbe NotValidBeforeError) isInvalidProof() {}

type RevokedError struct {
	failure.NamedWithStackTrace
	delegation delegation.Delegation
}

func NewRevokedError(delegation delegation.Delegation) Revoked {
	return RevokedError{failure.NamedWithCurrentStackTrace("Revoked"), delegation}
}

func (re RevokedError) Error() string {
	return fmt.Sprintf("Proof %s has been revoked", re.delegation.Link())
}

func (re RevokedError) isInvalidProof() {}

// ProofError attributes a failure to the proof link it arose from.
type ProofError struct {
	failure.NamedWithStackTrace
	link  ucan.Link
	cause error
}

func NewProofError(link ucan.Link, cause error) ProofError {
	return ProofError{failure.NamedWithCurrentStackTrace("ProofError"), link, cause}
}

func (pe ProofError) Unwrap() error {
	return pe.cause
}

func (pe ProofError) Error() string {
	return strings.Join([]string{
		fmt.Sprintf("Capability can not be derived from proof: %s", pe.link),
		li(pe.cause.Error()),
	}, "\n")
}

func (pe ProofError) isInvalidProof() {}

// CancelledError is returned when the passed context is cancelled before the
// search completes. No partial result accompanies it.
type CancelledError struct {
	failure.NamedWithStackTrace
	cause error
}

func NewCancelledError(cause error) CancelledError {
	return CancelledError{failure.NamedWithCurrentStackTrace("Cancelled"), cause}
}

func (ce CancelledError) Unwrap() error {
	return ce.cause
}

func (ce CancelledError) Error() string {
	return fmt.Sprintf("Validation cancelled: %s", ce.cause)
}

func (ce CancelledError) isInvalidProof() {}
func (ce CancelledError) isInvalidClaim() {}
func (ce CancelledError) isUnauthorized() {}

// InvalidClaimError is the failure of the search for a proof chain granting a
// single claimed capability.
type InvalidClaimError[Caveats any] struct {
	failure.NamedWithStackTrace
	match            Match[Caveats]
	delegationErrors []DelegationError
	unknowns         []ucan.Capability[any]
	invalidProofs    []InvalidProof
	failedProofs     []InvalidClaim
}

func NewInvalidClaimError[Caveats any](
	match Match[Caveats],
	delegationErrors []DelegationError,
	unknowns []ucan.Capability[any],
	invalidProofs []InvalidProof,
	failedProofs []InvalidClaim,
) InvalidClaim {
	return InvalidClaimError[Caveats]{
		failure.NamedWithCurrentStackTrace("InvalidClaim"),
		match,
		delegationErrors,
		unknowns,
		invalidProofs,
		failedProofs,
	}
}

func (ice InvalidClaimError[Caveats]) Error() string {
	claim := ice.match.Value()
	issuer := ice.match.Proofs()[0].Issuer().DID()
	lines := []string{
		fmt.Sprintf("Capability {can:\"%s\",with:\"%s\"} is not delegated by %s", claim.Can(), claim.With(), issuer),
	}
	lines = append(lines, causeLines(ice.delegationErrors, ice.unknowns, ice.invalidProofs, ice.failedProofs)...)
	return strings.Join(lines, "\n")
}

func (ice InvalidClaimError[Caveats]) isInvalidClaim() {}

// UnauthorizedError is the top level failure - no proof chain in the
// invocation authorized the claim.
type UnauthorizedError[Caveats any] struct {
	failure.NamedWithStackTrace
	capability       CapabilityParser[Caveats]
	delegationErrors []DelegationError
	unknowns         []ucan.Capability[any]
	invalidProofs    []InvalidProof
	failedProofs     []InvalidClaim
}

func NewUnauthorizedError[Caveats any](
	capability CapabilityParser[Caveats],
	delegationErrors []DelegationError,
	unknowns []ucan.Capability[any],
	invalidProofs []InvalidProof,
	failedProofs []InvalidClaim,
) Unauthorized {
	return UnauthorizedError[Caveats]{
		failure.NamedWithCurrentStackTrace("Unauthorized"),
		capability,
		delegationErrors,
		unknowns,
		invalidProofs,
		failedProofs,
	}
}

func (ue UnauthorizedError[Caveats]) FailedProofs() []InvalidClaim {
	return ue.failedProofs
}

func (ue UnauthorizedError[Caveats]) Error() string {
	lines := []string{
		fmt.Sprintf("Claim {can:\"%s\"} is not authorized", ue.capability.Can()),
	}
	lines = append(lines, causeLines(ue.delegationErrors, ue.unknowns, ue.invalidProofs, ue.failedProofs)...)
	return strings.Join(lines, "\n")
}

func (ue UnauthorizedError[Caveats]) isUnauthorized() {}

func causeLines(
	delegationErrors []DelegationError,
	unknowns []ucan.Capability[any],
	invalidProofs []InvalidProof,
	failedProofs []InvalidClaim,
) []string {
	var lines []string

	for _, f := range failedProofs {
		lines = append(lines, li(f.Error()))
	}
	for _, d := range delegationErrors {
		lines = append(lines, li(d.Error()))
	}
	for _, p := range invalidProofs {
		lines = append(lines, li(p.Error()))
	}

	if len(lines) == 0 {
		lines = append(lines, li("No matching delegated capability found"))
	}

	if len(unknowns) > 0 {
		var caps []string
		for _, u := range unknowns {
			if mj, ok := u.(interface{ MarshalJSON() ([]byte, error) }); ok {
				out, _ := mj.MarshalJSON()
				caps = append(caps, li(string(out)))
			}
		}
		lines = append(lines, li(fmt.Sprintf("Encountered unknown capabilities\n%s", strings.Join(caps, "\n"))))
	}

	return lines
}

func indent(message string) string {
	indent := "  "
	return indent + strings.Join(strings.Split(message, "\n"), "\n"+indent)
}

func li(message string) string {
	return indent("- " + message)
}
