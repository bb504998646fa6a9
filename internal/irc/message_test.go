package irc

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Message
	}{
		{
			name: "command only",
			raw:  "AWAY",
			want: Message{Command: "AWAY"},
		},
		{
			name: "ping with trailing token",
			raw:  "PING :86F3E357",
			want: Message{Command: "PING", Params: Params{"86F3E357"}},
		},
		{
			name: "privmsg from full address",
			raw:  ":alice!ali@host.example PRIVMSG #peach :hello there",
			want: Message{
				Source:  Prefix{Nick: "alice", User: "ali", Host: "host.example"},
				Command: "PRIVMSG",
				Params:  Params{"#peach", "hello there"},
			},
		},
		{
			name: "server prefix numeric",
			raw:  ":irc.example.org 001 peach :Welcome to ExampleNet peach!u@h",
			want: Message{
				Source:  Prefix{Host: "irc.example.org"},
				Command: "001",
				Params:  Params{"peach", "Welcome to ExampleNet peach!u@h"},
			},
		},
		{
			name: "prefix with host but no user",
			raw:  ":alice@host.example PRIVMSG #c :hi",
			want: Message{
				Source:  Prefix{Nick: "alice", Host: "host.example"},
				Command: "PRIVMSG",
				Params:  Params{"#c", "hi"},
			},
		},
		{
			name: "nick only prefix",
			raw:  ":alice NICK :alice2",
			want: Message{
				Source:  Prefix{Nick: "alice"},
				Command: "NICK",
				Params:  Params{"alice2"},
			},
		},
		{
			name: "tags with escapes",
			raw:  "@time=2023-10-11T12:34:56.789Z;msgid=abc;+draft/reply= :a!b@c PRIVMSG #x :hi",
			want: Message{
				Tags:    Tags{"time": "2023-10-11T12:34:56.789Z", "msgid": "abc", "+draft/reply": ""},
				Source:  Prefix{Nick: "a", User: "b", Host: "c"},
				Command: "PRIVMSG",
				Params:  Params{"#x", "hi"},
			},
		},
		{
			name: "tag value with escaped semicolon and space",
			raw:  "@key=a\\:b\\sc PING :x",
			want: Message{
				Tags:    Tags{"key": "a;b c"},
				Command: "PING",
				Params:  Params{"x"},
			},
		},
		{
			name: "mode with positional args",
			raw:  ":op!o@h MODE #c +o-v alice bob",
			want: Message{
				Source:  Prefix{Nick: "op", User: "o", Host: "h"},
				Command: "MODE",
				Params:  Params{"#c", "+o-v", "alice", "bob"},
			},
		},
		{
			name: "lowercase command normalized",
			raw:  "privmsg #c :hi",
			want: Message{Command: "PRIVMSG", Params: Params{"#c", "hi"}},
		},
		{
			name: "empty trailing parameter",
			raw:  "TOPIC #c :",
			want: Message{Command: "TOPIC", Params: Params{"#c", ""}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLine([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, &tc.want, got)
		})
	}
}

func TestParseLineMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty line", ""},
		{"only spaces trimmed to prefix", ":irc.example.org"},
		{"tags without command", "@time=x"},
		{"unterminated tag escape", `@key=value\ PING :x`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLine([]byte(tc.raw))
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, MalformedLine, pe.Kind)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	msgs := []*Message{
		Msg("#peach", "hello there"),
		Notice("alice", "psst"),
		Describe("#peach", "waves"),
		Join("#peach"),
		PartWithReason("#peach", "gone fishing"),
		Pong("86F3E357"),
		Mode("#c", "+o-v", "alice", "bob"),
		Topic("#c", "today: releases"),
		{
			Tags:    Tags{"time": "2023-10-11T12:34:56.789Z", "note": "semi;colon and space"},
			Source:  Prefix{Nick: "alice", User: "ali", Host: "host.example"},
			Command: CmdPrivmsg,
			Params:  Params{"#peach", "hi"},
		},
		{
			Source:  Prefix{Nick: "alice", Host: "host.example"},
			Command: CmdPrivmsg,
			Params:  Params{"#c", "hi"},
		},
		{
			Source:  Prefix{Nick: "alice"},
			Command: CmdNick,
			Params:  Params{"alice2"},
		},
		{Command: CmdAway},
	}

	for _, m := range msgs {
		t.Run(m.Command+"/"+strings.Join(m.Params, ","), func(t *testing.T) {
			wire, err := m.Bytes()
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(string(wire), "\r\n"))

			back, err := ParseLine(wire)
			require.NoError(t, err)
			assert.Equal(t, m, back)
		})
	}
}

func TestBytesLineTooLong(t *testing.T) {
	m := Msg("#c", strings.Repeat("a", 600))
	_, err := m.Bytes()
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, LineTooLong, pe.Kind)

	// Tags do not count against the 512-byte line budget.
	tagged := Msg("#c", "short")
	tagged.Tags = Tags{"msgid": strings.Repeat("x", 400)}
	_, err = tagged.Bytes()
	require.NoError(t, err)

	// But the tag section has its own cap.
	tagged.Tags = Tags{"msgid": strings.Repeat("x", 5000)}
	_, err = tagged.Bytes()
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, LineTooLong, pe.Kind)
}

func TestRawBypassesSerialization(t *testing.T) {
	m := Raw("MODE #c +o alice")
	assert.Equal(t, "MODE", m.Command)

	wire, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "MODE #c +o alice\r\n", string(wire))

	_, err = Raw(strings.Repeat("a", 600)).Bytes()
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, LineTooLong, pe.Kind)
}

func TestDecodeCTCP(t *testing.T) {
	m := Describe("#c", "waves")
	sub, body, ok := m.DecodeCTCP()
	require.True(t, ok)
	assert.Equal(t, "ACTION", sub)
	assert.Equal(t, "waves", body)

	plain := Msg("#c", "no ctcp here")
	_, _, ok = plain.DecodeCTCP()
	assert.False(t, ok)
}

func TestAuthenticatePayload(t *testing.T) {
	m := AuthenticatePayload("user", "pw")
	require.Equal(t, CmdAuthenticate, m.Command)
	// base64("\x00user\x00pw")
	assert.Equal(t, "AHVzZXIAcHc=", m.Params.Get(1))
}
