package irc

import (
	"bytes"
	"strings"
)

// maxLineLen is the protocol limit for a full IRC line including the
// trailing CR-LF pair. Servers truncate anything beyond it.
const maxLineLen = 512

// maxTagsLen is the IRCv3 message-tags allowance: the tags section gets
// its own budget separate from the 512-byte line, and clients must not
// send more than 4094 bytes of tag data.
const maxTagsLen = 4096

// Message represents a single incoming or outgoing IRC line.
//
// A line consists of up to four parts: IRCv3 tags, a source prefix, the
// command (verb or numeric), and the parameters. A trailing parameter is
// folded into Params without special treatment; only the last parameter
// may contain spaces.
type Message struct {
	// Tags contains IRCv3 message tags, nil when the line carried none.
	Tags Tags

	// Source is where the message originated from, set by the prefix
	// portion of the line. Left empty for outgoing messages.
	Source Prefix

	// Command is the IRC verb or numeric such as PRIVMSG, NOTICE, 001.
	Command string

	// Params holds the message parameters in order.
	Params Params

	// raw, when set, is a preformatted line that bypasses parameter
	// serialization and reaches the wire untouched.
	raw []byte
}

// Raw wraps an already formatted line for verbatim transmission. The
// line is not escaped or rewritten; Command is filled from the first
// token for logging.
func Raw(line string) *Message {
	cmd, _, _ := strings.Cut(line, " ")
	return &Message{Command: strings.ToUpper(cmd), raw: []byte(line)}
}

// NewMessage constructs an outgoing Message with cmd as the verb and
// args as the parameters. Only the last argument may contain spaces.
func NewMessage(cmd string, args ...string) *Message {
	return &Message{
		Command: strings.ToUpper(cmd),
		Params:  append(Params(nil), args...),
	}
}

// escaper encodes message tag values for transmission.
var escaper = strings.NewReplacer(
	";", "\\:",
	"\r", "\\r",
	"\n", "\\n",
	" ", "\\s",
	"\\", "\\\\",
)

// Bytes serializes m into a CR-LF terminated wire line.
//
// The non-tag portion is capped at 512 bytes and the tag portion at its
// own IRCv3 allowance; exceeding either returns a *ParseError with kind
// LineTooLong. For every valid message, ParseLine(Bytes(m)) reproduces m.
// Messages built with Raw skip serialization and only the length check
// applies.
func (m *Message) Bytes() ([]byte, error) {
	if m.raw != nil {
		if len(m.raw)+2 > maxLineLen {
			return nil, &ParseError{Kind: LineTooLong, Reason: "line exceeds 512 bytes"}
		}
		out := make([]byte, 0, len(m.raw)+2)
		out = append(out, m.raw...)
		return append(out, '\r', '\n'), nil
	}
	if m.Command == "" {
		return nil, &ParseError{Kind: MalformedLine, Reason: "empty command"}
	}

	buf := bytes.NewBuffer(make([]byte, 0, 256))

	if len(m.Tags) > 0 {
		buf.WriteByte('@')
		first := true
		for k, v := range m.Tags {
			if !first {
				buf.WriteByte(';')
			}
			first = false
			buf.WriteString(k)
			if v != "" {
				buf.WriteByte('=')
				buf.WriteString(escaper.Replace(v))
			}
		}
		buf.WriteByte(' ')
	}
	tagLen := buf.Len()
	if tagLen > maxTagsLen {
		return nil, &ParseError{Kind: LineTooLong, Reason: "message tags exceed the IRCv3 allowance"}
	}

	if !m.Source.IsZero() {
		buf.WriteByte(':')
		buf.WriteString(m.Source.String())
		buf.WriteByte(' ')
	}

	buf.WriteString(m.Command)

	for i, p := range m.Params {
		buf.WriteByte(' ')
		// The last parameter is always written in the trailing form so
		// that empty strings and embedded spaces survive the round trip.
		if i == len(m.Params)-1 {
			buf.WriteByte(':')
		}
		buf.WriteString(p)
	}
	buf.WriteString("\r\n")

	if buf.Len()-tagLen > maxLineLen {
		return nil, &ParseError{Kind: LineTooLong, Reason: "line exceeds 512 bytes"}
	}
	return buf.Bytes(), nil
}

// String returns the wire form without the trailing CR-LF, for logging.
func (m *Message) String() string {
	b, err := m.Bytes()
	if err != nil {
		return m.Command
	}
	return string(bytes.TrimSuffix(b, []byte("\r\n")))
}

// Tags represents the IRCv3 message tags of a line.
type Tags map[string]string

// Set stores the tag key k with value v, allocating the map if needed.
func (t *Tags) Set(k, v string) {
	if *t == nil {
		*t = make(Tags)
	}
	(*t)[k] = v
}

// Get returns the tag value for key, or "" when absent.
func (t Tags) Get(key string) string { return t[key] }

// Has reports whether key was present in the message tags.
func (t Tags) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// Prefix is the optional line prefix indicating the source of a message:
// either a server name or a nick!user@host client address.
type Prefix struct {
	Nick string
	User string
	Host string
}

// IsZero reports whether the prefix is entirely empty.
func (p Prefix) IsZero() bool { return p == Prefix{} }

// IsServer reports whether the message originated from a server rather
// than a client. Server prefixes carry only a host.
func (p Prefix) IsServer() bool { return p.Host != "" && p.Nick == "" }

// String renders the prefix in wire form.
func (p Prefix) String() string {
	switch {
	case p.IsZero():
		return ""
	case p.Nick == "" && p.User == "":
		return p.Host
	case p.User == "" && p.Host != "":
		return p.Nick + "@" + p.Host
	case p.User == "":
		return p.Nick
	default:
		return p.Nick + "!" + p.User + "@" + p.Host
	}
}

// Params holds the ordered parameter list of a message.
type Params []string

// Get returns the nth parameter (starting at 1), or "" when missing.
// Parameters have positional meaning, so callers can treat an omitted
// parameter and an explicit empty string the same way.
func (p Params) Get(n int) string {
	if n < 1 || n > len(p) {
		return ""
	}
	return p[n-1]
}

// Trailing returns the last parameter, or "" when there are none.
func (p Params) Trailing() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}
