package sni

import (
	"strings"

	"github.com/icecave/sniregistry/src/name"
)

// DomainName is a normalized DNS label used as a lookup key in a
// ContextIndex. It is stored lowercase, with no trailing dot.
//
// A name registered as a one-level wildcard ("*.example.com") is stored
// with the leading "*" stripped and the dot retained ("example.com" ->
// ".example.com"), so that exact lookups and suffix lookups can share the
// same underlying map without a separate wildcard table.
type DomainName struct {
	// Key is the canonical (punycode, lowercase) form used for comparison
	// and as a map key.
	Key string

	// Unicode is the human-readable form, kept only for logging.
	Unicode string

	// IsWildcard is true if this name was registered with a "*." prefix.
	IsWildcard bool
}

// IsStarCert reports whether a raw certificate name is the special "*" CN
// that the reference implementation treats as "default only".
func IsStarCert(rawName string) bool {
	return rawName == "*"
}

// NewDomainName normalizes a raw certificate CN or SAN entry into a
// DomainName, applying the insertion rules from §4.1:
//
//   - "*.foo" (len > 2) strips the leading "*", keeping the dot; the
//     stored name begins with "."
//   - a bare "*" is rejected here; callers must check IsStarCert first,
//     since a star CN is only legal when installed as the default.
//   - "." (after stripping) is EmptyDomain.
//   - any other embedded "*" is InvalidWildcard.
func NewDomainName(rawName string) (DomainName, error) {
	if IsStarCert(rawName) {
		return DomainName{}, &Error{Kind: StarCertNotDefault, Detail: rawName}
	}

	n := rawName
	isWildcard := false

	if len(n) > 2 && n[0] == '*' && n[1] == '.' {
		n = n[1:] // keep the leading dot, drop the star
		isWildcard = true
	}

	if n == "." {
		return DomainName{}, &Error{Kind: EmptyDomain, Detail: rawName}
	}

	if strings.Contains(n, "*") {
		return DomainName{}, &Error{Kind: InvalidWildcard, Detail: rawName}
	}

	// The dot-prefixed suffix form isn't itself a valid DNS name, so the
	// general validator only ever sees the part after the leading dot.
	toValidate := n
	if isWildcard {
		toValidate = n[1:]
	}

	normalized, err := name.TryNormalizeServerName(toValidate)
	if err != nil {
		return DomainName{}, &Error{Kind: EmptyDomain, Detail: rawName, Cause: err}
	}

	key := normalized.Punycode
	unicode := normalized.Unicode
	if isWildcard {
		key = "." + key
		unicode = "." + unicode
	}

	return DomainName{
		Key:        key,
		Unicode:    unicode,
		IsWildcard: isWildcard,
	}, nil
}

// Suffix returns the one-level-up wildcard suffix of d, and true if d
// contains a dot to strip up to (and including) the first one.
//
// For example, the suffix of "shop.example.com" is ".example.com" — the
// same key form under which a "*.example.com" certificate is stored.
func (d DomainName) Suffix() (DomainName, bool) {
	dot := strings.IndexByte(d.Key, '.')
	if dot < 0 {
		return DomainName{}, false
	}

	unicode := d.Key[dot:]
	if udot := strings.IndexByte(d.Unicode, '.'); udot >= 0 {
		unicode = d.Unicode[udot:]
	}

	return DomainName{
		Key:        d.Key[dot:],
		Unicode:    unicode,
		IsWildcard: true,
	}, true
}

func (d DomainName) String() string {
	if d.Unicode != "" {
		return d.Unicode
	}
	return d.Key
}
