package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deadhop/engine/internal/irc"
)

func mustParse(t *testing.T, raw string) *irc.Message {
	t.Helper()
	m, err := irc.ParseLine([]byte(raw))
	require.NoError(t, err)
	return m
}

func apply(t *testing.T, tr *Tracker, lines ...string) []Event {
	t.Helper()
	var events []Event
	for _, raw := range lines {
		events = append(events, tr.Apply(mustParse(t, raw))...)
	}
	return events
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestSelfJoinCreatesChannel(t *testing.T) {
	tr := NewTracker("peach")
	events := apply(t, tr, ":peach!u@h JOIN #peach")

	require.NotNil(t, tr.Channel("#peach"))
	assert.Equal(t, []string{"#peach"}, tr.Channels())
	assert.Contains(t, kinds(events), EventUserJoined)
	assert.Contains(t, kinds(events), EventChannelsChanged)
	assert.Contains(t, kinds(events), EventMembersChanged)
}

func TestSelfPartDestroysChannel(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr, ":peach!u@h JOIN #peach")
	events := apply(t, tr, ":peach!u@h PART #peach :bye")

	assert.Nil(t, tr.Channel("#peach"))
	assert.Empty(t, tr.Channels())
	assert.Contains(t, kinds(events), EventChannelsChanged)
}

func TestKickOfSelfDestroysChannel(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr, ":peach!u@h JOIN #peach")
	events := apply(t, tr, ":op!o@h KICK #peach peach :out")

	assert.Nil(t, tr.Channel("#peach"))
	require.Equal(t, EventUserKicked, events[0].Kind)
	assert.True(t, events[0].Self)
	assert.Equal(t, "op", events[0].Actor)
	assert.Equal(t, "out", events[0].Text)
}

func TestNamesCommitIsIdempotent(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr, ":peach!u@h JOIN #peach")

	burst := []string{
		":irc.x 353 peach = #peach :@op +voiced peach",
		":irc.x 353 peach = #peach :plain",
		":irc.x 366 peach #peach :End of /NAMES list.",
	}
	apply(t, tr, burst...)
	first := tr.Channel("#peach").Members()

	// Replaying the identical burst must not duplicate or reorder
	// anyone.
	apply(t, tr, burst...)
	second := tr.Channel("#peach").Members()

	require.Len(t, second, 4)
	assert.Equal(t, first, second)
}

func TestNamesSnapshotReplacesMembers(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr,
		":peach!u@h JOIN #peach",
		":ghost!g@h JOIN #peach",
		":irc.x 353 peach = #peach :peach @op",
		":irc.x 366 peach #peach :End of /NAMES list.",
	)

	ch := tr.Channel("#peach")
	require.Len(t, ch.members, 2)
	assert.Nil(t, ch.members["ghost"])
	assert.Equal(t, RoleOp, ch.members["op"].Roles)
}

func TestNamesStripsMultiPrefixBadges(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr,
		":peach!u@h JOIN #peach",
		":irc.x 353 peach = #peach :@+mixed peach",
		":irc.x 366 peach #peach :End of /NAMES list.",
	)

	m := tr.Channel("#peach").members["mixed"]
	require.NotNil(t, m)
	assert.Equal(t, "mixed", m.Nick)
	assert.Equal(t, RoleOp|RoleVoice, m.Roles)
	assert.Equal(t, "@", m.Badge())
}

func TestFoldedNickUniqueness(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr,
		":peach!u@h JOIN #peach",
		":Alice[1]!a@h JOIN #peach",
		// Under rfc1459 folding this is the same nick.
		":alice{1}!a@h JOIN #peach",
	)

	ch := tr.Channel("#peach")
	count := 0
	for range ch.members {
		count++
	}
	// peach plus exactly one alice entry.
	assert.Equal(t, 2, count)
}

func TestModeGrantAndRevokeTouchOnlyNamedMembers(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr,
		":peach!u@h JOIN #peach",
		":irc.x 353 peach = #peach :peach +alice +bob +carol",
		":irc.x 366 peach #peach :End of /NAMES list.",
		":op!o@h MODE #peach +o-v alice bob",
	)

	ch := tr.Channel("#peach")
	assert.Equal(t, RoleOp|RoleVoice, ch.members["alice"].Roles)
	assert.Equal(t, Role(0), ch.members["bob"].Roles)
	assert.Equal(t, RoleVoice, ch.members["carol"].Roles, "unnamed member must be untouched")
}

func TestChannelModeFlagsTracked(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr,
		":peach!u@h JOIN #peach",
		":op!o@h MODE #peach +nt",
		":op!o@h MODE #peach +k sekrit",
	)
	assert.Equal(t, "+knt sekrit", tr.Channel("#peach").Modes())

	events := apply(t, tr, ":op!o@h MODE #peach -k sekrit")
	assert.Equal(t, "+nt", tr.Channel("#peach").Modes())
	require.NotEmpty(t, events)
	assert.Equal(t, EventModeChanged, events[0].Kind)
}

func TestBanListModeDoesNotEnterFlagSet(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr,
		":peach!u@h JOIN #peach",
		":op!o@h MODE #peach +b *!*@bad.example",
	)
	assert.Equal(t, "", tr.Channel("#peach").Modes())
}

func TestQuitRemovedFromEveryChannel(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr,
		":peach!u@h JOIN #one",
		":peach!u@h JOIN #two",
		":alice!a@h JOIN #one",
		":alice!a@h JOIN #two",
	)

	events := apply(t, tr, ":alice!a@h QUIT :gone")
	assert.Nil(t, tr.Channel("#one").members["alice"])
	assert.Nil(t, tr.Channel("#two").members["alice"])

	// One quit event plus a membersChanged per affected channel.
	ks := kinds(events)
	assert.Equal(t, EventUserQuit, ks[0])
	assert.Len(t, ks, 3)
}

func TestNickChangeRenamesEverywhere(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr,
		":peach!u@h JOIN #peach",
		":alice!a@h JOIN #peach",
		":alice!a@h PRIVMSG peach :hi",
	)
	require.Equal(t, []string{"alice"}, tr.Queries())

	apply(t, tr, ":alice!a@h NICK :alyce")
	ch := tr.Channel("#peach")
	assert.Nil(t, ch.members["alice"])
	require.NotNil(t, ch.members["alyce"])
	assert.Equal(t, "alyce", ch.members["alyce"].Nick)
	assert.Equal(t, []string{"alyce"}, tr.Queries())
}

func TestOwnNickChange(t *testing.T) {
	tr := NewTracker("peach")
	events := apply(t, tr, ":peach!u@h NICK :plum")
	assert.Equal(t, "plum", tr.Nick())
	require.NotEmpty(t, events)
	assert.True(t, events[0].Self)
}

func TestWelcomeConfirmsNick(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr, ":irc.x 001 peach_ :Welcome")
	assert.Equal(t, "peach_", tr.Nick())
}

func TestISupportSwitchesCasemapping(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr, ":irc.x 005 peach CASEMAPPING=ascii PREFIX=(ov)@+ :are supported")
	assert.Equal(t, irc.CaseMapASCII, tr.CaseMapping())

	// The mapping is locked once seen; a later 005 cannot flip it.
	apply(t, tr, ":irc.x 005 peach CASEMAPPING=rfc1459 :are supported")
	assert.Equal(t, irc.CaseMapASCII, tr.CaseMapping())
}

func TestPrivmsgToChannel(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr, ":peach!u@h JOIN #peach")
	events := apply(t, tr, ":alice!a@h PRIVMSG #peach :hello")

	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, EventMessage, e.Kind)
	assert.Equal(t, "#peach", e.Channel)
	assert.Equal(t, "alice", e.Nick)
	assert.Equal(t, "hello", e.Text)
	assert.False(t, e.Action)
}

func TestCTCPActionMessage(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr, ":peach!u@h JOIN #peach")
	events := apply(t, tr, ":alice!a@h PRIVMSG #peach :\x01ACTION waves\x01")

	require.Len(t, events, 1)
	assert.True(t, events[0].Action)
	assert.Equal(t, "waves", events[0].Text)
}

func TestInboundPrivateMessageOpensQuery(t *testing.T) {
	tr := NewTracker("peach")
	events := apply(t, tr, ":alice!a@h PRIVMSG peach :psst")

	require.Len(t, events, 2)
	assert.Equal(t, EventQueryOpened, events[0].Kind)
	assert.Equal(t, EventMessage, events[1].Kind)
	assert.Equal(t, "alice", events[1].Channel)
	assert.Equal(t, []string{"alice"}, tr.Queries())

	// A second message reuses the open target.
	events = apply(t, tr, ":alice!a@h PRIVMSG peach :again")
	require.Len(t, events, 1)
	assert.Equal(t, EventMessage, events[0].Kind)
}

func TestServerTimeTagWins(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr, ":peach!u@h JOIN #peach")
	events := apply(t, tr, "@time=2023-10-11T12:34:56.789Z :alice!a@h PRIVMSG #peach :hi")

	require.Len(t, events, 1)
	assert.Equal(t, 2023, events[0].Time.Year())
	assert.Equal(t, 56, events[0].Time.Second())
}

func TestTopicNumericAndCommand(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr, ":peach!u@h JOIN #peach")

	apply(t, tr, ":irc.x 332 peach #peach :welcome topic")
	assert.Equal(t, "welcome topic", tr.Channel("#peach").Topic)

	events := apply(t, tr, ":alice!a@h TOPIC #peach :new topic")
	assert.Equal(t, "new topic", tr.Channel("#peach").Topic)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Actor)

	apply(t, tr, ":irc.x 331 peach #peach :No topic is set")
	assert.Equal(t, "", tr.Channel("#peach").Topic)
}

func TestErrorNumericBecomesNotice(t *testing.T) {
	tr := NewTracker("peach")
	events := apply(t, tr, ":irc.x 473 peach #secret :Cannot join channel (+i)")

	require.Len(t, events, 1)
	assert.Equal(t, EventNotice, events[0].Kind)
	assert.Contains(t, events[0].Text, "#secret")
}

func TestUnknownNumericForwardedOpaque(t *testing.T) {
	tr := NewTracker("peach")
	events := apply(t, tr, ":irc.x 728 peach #c q whatever!*@* :quiet list")

	require.Len(t, events, 1)
	assert.Equal(t, EventOpaque, events[0].Kind)
	require.NotNil(t, events[0].Raw)
	assert.Equal(t, "728", events[0].Raw.Command)
}

func TestWhoisAggregation(t *testing.T) {
	tr := NewTracker("peach")
	events := apply(t, tr,
		":irc.x 311 peach alice ali host.example * :Alice A.",
		":irc.x 319 peach alice :#peach #go",
		":irc.x 330 peach alice aliceacct :is logged in as",
		":irc.x 318 peach alice :End of /WHOIS list.",
	)

	require.Len(t, events, 1)
	assert.Equal(t, EventNotice, events[0].Kind)
	assert.Contains(t, events[0].Text, "ali@host.example")
	assert.Contains(t, events[0].Text, "#peach #go")
	assert.Contains(t, events[0].Text, "aliceacct")
}

func TestMonitorPresenceNumerics(t *testing.T) {
	tr := NewTracker("peach")

	events := apply(t, tr, ":irc.test 730 peach :alice!a@h,bob!b@h")
	require.Len(t, events, 1)
	assert.Equal(t, EventMonitorOnline, events[0].Kind)
	assert.Equal(t, []string{"alice", "bob"}, events[0].Names)

	events = apply(t, tr, ":irc.test 731 peach :alice")
	require.Len(t, events, 1)
	assert.Equal(t, EventMonitorOffline, events[0].Kind)
	assert.Equal(t, []string{"alice"}, events[0].Names)

	// An empty payload produces nothing.
	assert.Empty(t, apply(t, tr, ":irc.test 730 peach :"))
}

func TestAwayNotifyUpdatesMembers(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr,
		":peach!u@h JOIN #peach",
		":alice!a@h JOIN #peach",
	)

	apply(t, tr, ":alice!a@h AWAY :lunch")
	assert.True(t, tr.Channel("#peach").members["alice"].Away)

	apply(t, tr, ":alice!a@h AWAY")
	assert.False(t, tr.Channel("#peach").members["alice"].Away)
}

func TestAccountAndChgHostAndSetName(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr,
		":peach!u@h JOIN #peach",
		":alice!a@h JOIN #peach",
		":alice!a@h ACCOUNT aliceacct",
		":alice!a@h CHGHOST newuser new.host",
		":alice!a@h SETNAME :Alice Anderson",
	)

	m := tr.Channel("#peach").members["alice"]
	assert.Equal(t, "aliceacct", m.Account)
	assert.Equal(t, "newuser", m.User)
	assert.Equal(t, "new.host", m.Host)
	assert.Equal(t, "Alice Anderson", m.Realname)

	apply(t, tr, ":alice!a@h ACCOUNT *")
	assert.Equal(t, "", m.Account)
}

func TestExtendedJoinCarriesAccount(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr,
		":peach!u@h JOIN #peach",
		":alice!a@h JOIN #peach aliceacct :Alice A.",
	)

	m := tr.Channel("#peach").members["alice"]
	assert.Equal(t, "aliceacct", m.Account)
	assert.Equal(t, "Alice A.", m.Realname)
}

func TestWhoReplyFillsDetail(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr,
		":peach!u@h JOIN #peach",
		":alice!a@h JOIN #peach",
		":irc.x 352 peach #peach ali host.example irc.x alice G :0 Alice A.",
	)

	m := tr.Channel("#peach").members["alice"]
	assert.Equal(t, "ali", m.User)
	assert.Equal(t, "host.example", m.Host)
	assert.Equal(t, "Alice A.", m.Realname)
	assert.True(t, m.Away)
}

func TestResetDropsChannels(t *testing.T) {
	tr := NewTracker("peach")
	apply(t, tr, ":peach!u@h JOIN #peach")
	tr.OpenQuery("alice")

	tr.Reset()
	assert.Empty(t, tr.Channels())
	// Query targets survive a reconnect.
	assert.Equal(t, []string{"alice"}, tr.Queries())
}
