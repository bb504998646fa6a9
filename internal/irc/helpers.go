package irc

import "strings"

// Text returns the free-form text portion for the well-known commands:
// the body of a PRIVMSG/NOTICE, the reason of a PART/KICK/QUIT, the
// topic of a TOPIC. For anything else it returns "".
func (m *Message) Text() string {
	switch m.Command {
	case CmdQuit, CmdError:
		return m.Params.Get(1)
	case CmdPrivmsg, CmdNotice, CmdTopic, CmdPart:
		return m.Params.Get(2)
	case CmdKick:
		return m.Params.Get(3)
	default:
		return ""
	}
}

// Target returns the intended target of a message: the channel name for
// channel traffic, or our nickname for queries.
func (m *Message) Target() string {
	switch m.Command {
	case CmdPrivmsg, CmdNotice, CmdTagMsg, CmdInvite, CmdTopic, CmdKick, CmdPart, CmdMode, CmdJoin:
		return m.Params.Get(1)
	default:
		return ""
	}
}

// DecodeCTCP reports whether the message body is CTCP-encoded and, if
// so, returns the CTCP subcommand and its body with framing stripped.
func (m *Message) DecodeCTCP() (subcommand, body string, ok bool) {
	if m.Command != CmdPrivmsg && m.Command != CmdNotice {
		return "", "", false
	}
	text := m.Params.Get(2)
	if len(text) < 2 || !strings.HasPrefix(text, ctcpDelim) {
		return "", "", false
	}
	text = strings.TrimPrefix(text, ctcpDelim)
	text = strings.TrimSuffix(text, ctcpDelim)
	subcommand, body, _ = strings.Cut(text, " ")
	if subcommand == "" {
		return "", "", false
	}
	return strings.ToUpper(subcommand), body, true
}
