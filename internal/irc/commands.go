package irc

import (
	"encoding/base64"
	"strings"
)

// ctcpDelim frames CTCP-encoded message bodies.
const ctcpDelim = "\x01"

// Msg constructs a PRIVMSG to target.
func Msg(target, text string) *Message {
	return NewMessage(CmdPrivmsg, target, text)
}

// Notice constructs a NOTICE to target.
func Notice(target, text string) *Message {
	return NewMessage(CmdNotice, target, text)
}

// CTCP constructs a CTCP-encoded PRIVMSG, with command being the CTCP
// subcommand (e.g. ACTION, VERSION).
func CTCP(target, command, text string) *Message {
	return NewMessage(CmdPrivmsg, target, ctcpDelim+command+" "+text+ctcpDelim)
}

// Describe constructs a CTCP ACTION, equivalent to the "/me" command.
func Describe(target, action string) *Message {
	return CTCP(target, "ACTION", action)
}

// Nick constructs a nickname change command.
func Nick(name string) *Message {
	return NewMessage(CmdNick, name)
}

// Join constructs a channel join command.
func Join(channel string) *Message {
	return NewMessage(CmdJoin, channel)
}

// Part constructs a command to leave channel.
func Part(channel string) *Message {
	return NewMessage(CmdPart, channel)
}

// PartWithReason is the same as Part with a reason shown to others.
func PartWithReason(channel, reason string) *Message {
	return NewMessage(CmdPart, channel, reason)
}

// Quit constructs a session-terminating command.
func Quit(reason string) *Message {
	return NewMessage(CmdQuit, reason)
}

// Topic constructs a command to set a channel topic.
func Topic(channel, topic string) *Message {
	return NewMessage(CmdTopic, channel, topic)
}

// TopicQuery constructs a command to read a channel topic.
func TopicQuery(channel string) *Message {
	return NewMessage(CmdTopic, channel)
}

// Mode constructs a mode change for a channel or nick. args pair
// positionally with the mode flags that take one.
func Mode(target, modes string, args ...string) *Message {
	params := append(Params{target, modes}, args...)
	return &Message{Command: CmdMode, Params: params}
}

// Names constructs a request for the member list of channel.
func Names(channel string) *Message {
	return NewMessage(CmdNames, channel)
}

// Whois constructs a WHOIS query for nick.
func Whois(nick string) *Message {
	return NewMessage(CmdWhoIs, nick)
}

// MonitorAdd constructs a command adding nicks to the notify list.
func MonitorAdd(nicks ...string) *Message {
	return NewMessage(CmdMonitor, "+", strings.Join(nicks, ","))
}

// MonitorRemove constructs a command removing nicks from the notify
// list.
func MonitorRemove(nicks ...string) *Message {
	return NewMessage(CmdMonitor, "-", strings.Join(nicks, ","))
}

// MonitorClear constructs a command emptying the notify list.
func MonitorClear() *Message {
	return NewMessage(CmdMonitor, "C")
}

// Away constructs a command setting the away reply, or clearing it when
// reason is empty.
func Away(reason string) *Message {
	if reason == "" {
		return NewMessage(CmdAway)
	}
	return NewMessage(CmdAway, reason)
}

// Ping constructs a keepalive probe carrying token.
func Ping(token string) *Message {
	return NewMessage(CmdPing, token)
}

// Pong constructs the reply to a PING. The token must be echoed back
// unchanged.
func Pong(token string) *Message {
	return NewMessage(CmdPong, token)
}

// Pass constructs the connection password command.
func Pass(password string) *Message {
	return NewMessage(CmdPass, password)
}

// User specifies the username and realname during registration. The
// realname may contain spaces.
func User(user, realname string) *Message {
	return NewMessage(CmdUser, user, "0", "*", realname)
}

// CapLS requests the server's capability list. version is the
// negotiation protocol version, "302" for version 3.2.
func CapLS(version string) *Message {
	return NewMessage(CmdCap, "LS", version)
}

// CapReq requests the named capabilities be enabled.
func CapReq(caps string) *Message {
	return NewMessage(CmdCap, "REQ", caps)
}

// CapEnd ends capability negotiation.
func CapEnd() *Message {
	return NewMessage(CmdCap, "END")
}

// AuthenticatePlain begins a SASL PLAIN exchange.
func AuthenticatePlain() *Message {
	return NewMessage(CmdAuthenticate, "PLAIN")
}

// AuthenticatePayload encodes the SASL PLAIN response for authcid and
// password: base64("\x00" + authcid + "\x00" + password).
func AuthenticatePayload(authcid, password string) *Message {
	raw := "\x00" + authcid + "\x00" + password
	return NewMessage(CmdAuthenticate, base64.StdEncoding.EncodeToString([]byte(raw)))
}
