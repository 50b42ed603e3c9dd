package printer

import (
	"strings"
	"testing"

	"github.com/candorlabs/go-ucankit/core/delegation"
)

func withIndent(t *testing.T, level int) func(format string, args ...any) {
	indent := strings.Repeat("  ", level)
	return func(format string, args ...any) {
		t.Logf(indent+format, args...)
	}
}

// PrintDelegation logs a delegation and its resolved proofs recursively.
func PrintDelegation(t *testing.T, d delegation.Delegation, level int) {
	t.Helper()
	log := withIndent(t, level)

	log("%s\n", d.Link())
	log("  Issuer: %s", d.Issuer().DID())
	log("  Audience: %s", d.Audience().DID())

	log("  Capabilities:")
	for _, c := range d.Capabilities() {
		log("    Can: %s", c.Can())
		log("    With: %s", c.With())
		log("    Nb: %v", c.Nb())
	}

	if exp := d.Expiration(); exp != nil {
		log("  Expiration: %d", *exp)
	}

	if len(d.ProofsView()) > 0 {
		log("  Proofs:")
		for _, p := range d.ProofsView() {
			if sub, ok := p.Delegation(); ok {
				PrintDelegation(t, sub, level+2)
			} else {
				withIndent(t, level+2)("%s (not included)", p.Link())
			}
		}
	}
}
