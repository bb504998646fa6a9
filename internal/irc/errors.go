package irc

import "fmt"

// ParseErrorKind classifies wire codec failures.
type ParseErrorKind int

const (
	// MalformedLine marks a line that cannot be parsed: missing command
	// token, bad prefix, or an unterminated tag escape.
	MalformedLine ParseErrorKind = iota

	// LineTooLong marks a message whose serialized form exceeds the
	// protocol's wire-safe limits.
	LineTooLong
)

func (k ParseErrorKind) String() string {
	switch k {
	case MalformedLine:
		return "malformed line"
	case LineTooLong:
		return "line too long"
	default:
		return "parse error"
	}
}

// ParseError reports a wire codec failure. The offending line is never
// retried; callers drop it and continue with the session.
type ParseError struct {
	Kind   ParseErrorKind
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}
