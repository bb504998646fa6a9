package irc

import "strings"

// CaseMapping is the server-declared rule for case-insensitive
// comparison of nicks and channel names, advertised in RPL_ISUPPORT.
type CaseMapping int

const (
	// CaseMapRFC1459 folds A-Z to a-z and additionally []\~ to {}|^.
	// It is the protocol default.
	CaseMapRFC1459 CaseMapping = iota

	// CaseMapStrictRFC1459 folds A-Z to a-z and []\ to {}| (without ~/^).
	CaseMapStrictRFC1459

	// CaseMapASCII folds only A-Z to a-z.
	CaseMapASCII
)

// ParseCaseMapping maps the CASEMAPPING token from RPL_ISUPPORT to a
// CaseMapping, defaulting to rfc1459 for unknown values.
func ParseCaseMapping(token string) CaseMapping {
	switch strings.ToLower(token) {
	case "ascii":
		return CaseMapASCII
	case "strict-rfc1459":
		return CaseMapStrictRFC1459
	default:
		return CaseMapRFC1459
	}
}

func (c CaseMapping) String() string {
	switch c {
	case CaseMapASCII:
		return "ascii"
	case CaseMapStrictRFC1459:
		return "strict-rfc1459"
	default:
		return "rfc1459"
	}
}

// Fold lowercases s under the mapping, for use as a comparison key.
func (c CaseMapping) Fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			ch += 'a' - 'A'
		case c != CaseMapASCII && ch == '[':
			ch = '{'
		case c != CaseMapASCII && ch == ']':
			ch = '}'
		case c != CaseMapASCII && ch == '\\':
			ch = '|'
		case c == CaseMapRFC1459 && ch == '~':
			ch = '^'
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// Equal reports whether a and b compare equal under the mapping.
func (c CaseMapping) Equal(a, b string) bool {
	return c.Fold(a) == c.Fold(b)
}

// IsChannel reports whether target names a channel rather than a nick.
func IsChannel(target string) bool {
	return len(target) > 0 && (target[0] == '#' || target[0] == '&')
}
