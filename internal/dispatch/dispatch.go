// Package dispatch turns user input lines into protocol messages.
//
// Input starting with "/" is interpreted as a client command; anything
// else is a message to the current target. The dispatcher is pure: it
// never touches the connection, it only plans what should be sent.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/deadhop/engine/internal/irc"
)

// CommandError reports unusable input: an unknown command, missing
// arguments, or no target to send to.
type CommandError struct {
	Command string
	Reason  string
}

func (e *CommandError) Error() string {
	if e.Command == "" {
		return e.Reason
	}
	return fmt.Sprintf("/%s: %s", e.Command, e.Reason)
}

// Context is the session state the dispatcher plans against.
type Context struct {
	// CurrentTarget is the channel or nick the input window points at.
	CurrentTarget string
	// Nick is our current nickname.
	Nick string
}

// Plan is the outcome of parsing one input line.
type Plan struct {
	// Outbound lists the messages to send, in order.
	Outbound []*irc.Message

	// Echo is the message to reflect locally as our own, when the
	// input produced user-visible text. The session drops it when the
	// server echoes our messages back itself.
	Echo *irc.Message

	// OpenQuery names a private-message target to open, from /query
	// or /msg to a nick.
	OpenQuery string

	// SwitchTarget names the buffer the input wants focus moved to.
	SwitchTarget string

	// Notice is local informational text that never hits the wire.
	Notice string
}

// Parse interprets one line of user input.
func Parse(input string, ctx Context) (*Plan, error) {
	input = strings.TrimRight(input, "\r\n")
	if input == "" {
		return &Plan{}, nil
	}

	// "//text" sends a literal line starting with a slash.
	if strings.HasPrefix(input, "//") {
		return say(ctx, ctx.CurrentTarget, input[1:])
	}
	if !strings.HasPrefix(input, "/") {
		return say(ctx, ctx.CurrentTarget, input)
	}

	name, rest, _ := strings.Cut(input[1:], " ")
	name = strings.ToLower(name)
	rest = strings.TrimSpace(rest)

	switch name {
	case "me":
		if rest == "" {
			return nil, &CommandError{Command: name, Reason: "usage: /me <action>"}
		}
		if ctx.CurrentTarget == "" {
			return nil, &CommandError{Command: name, Reason: "no active target"}
		}
		m := irc.Describe(ctx.CurrentTarget, rest)
		return &Plan{Outbound: []*irc.Message{m}, Echo: echoFrom(ctx, m)}, nil

	case "msg":
		target, text, _ := strings.Cut(rest, " ")
		if target == "" || text == "" {
			return nil, &CommandError{Command: name, Reason: "usage: /msg <target> <text>"}
		}
		plan, err := say(ctx, target, text)
		if err != nil {
			return nil, err
		}
		if !irc.IsChannel(target) {
			plan.OpenQuery = target
		}
		return plan, nil

	case "notice":
		target, text, _ := strings.Cut(rest, " ")
		if target == "" || text == "" {
			return nil, &CommandError{Command: name, Reason: "usage: /notice <target> <text>"}
		}
		m := irc.Notice(target, text)
		return &Plan{Outbound: []*irc.Message{m}, Echo: echoFrom(ctx, m)}, nil

	case "query":
		nick, text, _ := strings.Cut(rest, " ")
		if nick == "" {
			return nil, &CommandError{Command: name, Reason: "usage: /query <nick> [text]"}
		}
		if irc.IsChannel(nick) {
			return nil, &CommandError{Command: name, Reason: "queries are for nicks, not channels"}
		}
		plan := &Plan{OpenQuery: nick, SwitchTarget: nick}
		if text != "" {
			m := irc.Msg(nick, text)
			plan.Outbound = []*irc.Message{m}
			plan.Echo = echoFrom(ctx, m)
		}
		return plan, nil

	case "join":
		channel, _, _ := strings.Cut(rest, " ")
		if channel == "" {
			return nil, &CommandError{Command: name, Reason: "usage: /join <channel>"}
		}
		if !irc.IsChannel(channel) {
			channel = "#" + channel
		}
		return &Plan{Outbound: []*irc.Message{irc.Join(channel)}, SwitchTarget: channel}, nil

	case "part":
		channel, reason, _ := strings.Cut(rest, " ")
		if channel == "" || !irc.IsChannel(channel) {
			reason = rest
			channel = ctx.CurrentTarget
		}
		if channel == "" || !irc.IsChannel(channel) {
			return nil, &CommandError{Command: name, Reason: "no channel to part"}
		}
		m := irc.Part(channel)
		if reason != "" {
			m = irc.PartWithReason(channel, reason)
		}
		return &Plan{Outbound: []*irc.Message{m}}, nil

	case "nick":
		nick, _, _ := strings.Cut(rest, " ")
		if nick == "" {
			return nil, &CommandError{Command: name, Reason: "usage: /nick <name>"}
		}
		return &Plan{Outbound: []*irc.Message{irc.Nick(nick)}}, nil

	case "topic":
		channel, text, _ := strings.Cut(rest, " ")
		if !irc.IsChannel(channel) {
			// No explicit channel, the whole rest is the topic text.
			channel = ctx.CurrentTarget
			text = rest
		}
		if channel == "" || !irc.IsChannel(channel) {
			return nil, &CommandError{Command: name, Reason: "no active channel"}
		}
		if text == "" {
			return &Plan{Outbound: []*irc.Message{irc.TopicQuery(channel)}}, nil
		}
		return &Plan{Outbound: []*irc.Message{irc.Topic(channel, text)}}, nil

	case "mode":
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return nil, &CommandError{Command: name, Reason: "usage: /mode <target> <modes> [args]"}
		}
		target := fields[0]
		if (strings.HasPrefix(target, "+") || strings.HasPrefix(target, "-")) &&
			ctx.CurrentTarget != "" && irc.IsChannel(ctx.CurrentTarget) {
			// "/mode +o nick" inside a channel implies the channel.
			fields = append([]string{ctx.CurrentTarget}, fields...)
			target = fields[0]
		}
		if len(fields) < 2 {
			return &Plan{Outbound: []*irc.Message{irc.Mode(target, "")}}, nil
		}
		return &Plan{Outbound: []*irc.Message{irc.Mode(target, fields[1], fields[2:]...)}}, nil

	case "whois":
		nick, _, _ := strings.Cut(rest, " ")
		if nick == "" {
			return nil, &CommandError{Command: name, Reason: "usage: /whois <nick>"}
		}
		return &Plan{Outbound: []*irc.Message{irc.Whois(nick)}}, nil

	case "names":
		channel, _, _ := strings.Cut(rest, " ")
		if channel == "" {
			channel = ctx.CurrentTarget
		}
		if channel == "" || !irc.IsChannel(channel) {
			return nil, &CommandError{Command: name, Reason: "no channel to list"}
		}
		return &Plan{Outbound: []*irc.Message{irc.Names(channel)}}, nil

	case "away":
		return &Plan{Outbound: []*irc.Message{irc.Away(rest)}}, nil

	case "quit":
		reason := rest
		if reason == "" {
			reason = "bye"
		}
		return &Plan{Outbound: []*irc.Message{irc.Quit(reason)}}, nil

	case "ctcp":
		target, sub, _ := strings.Cut(rest, " ")
		sub, body, _ := strings.Cut(sub, " ")
		if target == "" || sub == "" {
			return nil, &CommandError{Command: name, Reason: "usage: /ctcp <target> <command> [args]"}
		}
		return &Plan{Outbound: []*irc.Message{irc.CTCP(target, strings.ToUpper(sub), body)}}, nil

	case "raw", "quote":
		if rest == "" {
			return nil, &CommandError{Command: name, Reason: "usage: /raw <line>"}
		}
		// The line goes out exactly as typed, no reformatting.
		return &Plan{Outbound: []*irc.Message{irc.Raw(rest)}}, nil

	default:
		return nil, &CommandError{Command: name, Reason: "unknown command"}
	}
}

// say plans a plain message to target.
func say(ctx Context, target, text string) (*Plan, error) {
	if target == "" {
		return nil, &CommandError{Reason: "no active target"}
	}
	m := irc.Msg(target, text)
	return &Plan{Outbound: []*irc.Message{m}, Echo: echoFrom(ctx, m)}, nil
}

// echoFrom stamps the outbound message with our own address so the
// local echo renders like any other inbound message.
func echoFrom(ctx Context, m *irc.Message) *irc.Message {
	echo := *m
	echo.Source = irc.Prefix{Nick: ctx.Nick}
	return &echo
}
