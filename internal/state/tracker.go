package state

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/deadhop/engine/internal/irc"
)

// Member is one channel occupant. There is exactly one Member entry per
// (channel, case-folded nick).
type Member struct {
	Nick     string `json:"nick"`
	User     string `json:"user,omitempty"`
	Host     string `json:"host,omitempty"`
	Realname string `json:"realname,omitempty"`
	Account  string `json:"account,omitempty"`
	Away     bool   `json:"away,omitempty"`
	Roles    Role   `json:"-"`
}

// Badge returns the member's display badge: the prefix symbol of the
// highest-priority role currently held.
func (m *Member) Badge() string { return m.Roles.Badge() }

// Channel is one joined channel. Created on JOIN confirmation and
// destroyed on PART/KICK confirmation or disconnect.
type Channel struct {
	Name    string
	Topic   string
	modes   channelModes
	members map[string]*Member // keyed by case-folded nick
}

// Modes renders the channel's current flag set.
func (c *Channel) Modes() string { return c.modes.String() }

// Members returns the member list sorted by folded nick.
func (c *Channel) Members() []*Member {
	keys := make([]string, 0, len(c.members))
	for k := range c.members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Member, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.members[k])
	}
	return out
}

// Tracker maintains the per-server model of joined channels, members,
// and private-message targets. It is a reducer over inbound messages:
// Apply mutates the model in place and returns the resulting events.
// Tracker is not safe for concurrent use; the owning session applies
// messages in arrival order from a single goroutine.
type Tracker struct {
	casemap  irc.CaseMapping
	prefixes prefixTable
	classes  chanModeClasses

	nick     string
	channels map[string]*Channel // keyed by folded name
	queries  map[string]string   // folded nick -> display nick

	pendingNames map[string][]string // folded channel -> 353 accumulation
	whois        map[string][]string // folded nick -> aggregated lines

	casemapLocked bool
}

// NewTracker returns a tracker for a connection registering as nick.
func NewTracker(nick string) *Tracker {
	return &Tracker{
		casemap:      irc.CaseMapRFC1459,
		prefixes:     defaultPrefixTable(),
		classes:      defaultChanModeClasses(),
		nick:         nick,
		channels:     make(map[string]*Channel),
		queries:      make(map[string]string),
		pendingNames: make(map[string][]string),
		whois:        make(map[string][]string),
	}
}

// Nick returns our current nickname as confirmed by the server.
func (t *Tracker) Nick() string { return t.nick }

// CaseMapping returns the negotiated casemapping.
func (t *Tracker) CaseMapping() irc.CaseMapping { return t.casemap }

// Channel returns the channel by name, or nil when not joined.
func (t *Tracker) Channel(name string) *Channel {
	return t.channels[t.casemap.Fold(name)]
}

// Channels returns the joined channel names sorted by folded name.
func (t *Tracker) Channels() []string {
	keys := make([]string, 0, len(t.channels))
	for k := range t.channels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.channels[k].Name)
	}
	return out
}

// Queries returns the open private-message targets. Targets are never
// auto-closed.
func (t *Tracker) Queries() []string {
	keys := make([]string, 0, len(t.queries))
	for k := range t.queries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.queries[k])
	}
	return out
}

// OpenQuery registers nick as a private-message target. It reports
// whether the target was newly opened.
func (t *Tracker) OpenQuery(nick string) bool {
	key := t.casemap.Fold(nick)
	if _, ok := t.queries[key]; ok {
		return false
	}
	t.queries[key] = nick
	return true
}

// Reset drops all channel and query state, as on disconnect.
func (t *Tracker) Reset() {
	t.channels = make(map[string]*Channel)
	t.pendingNames = make(map[string][]string)
	t.whois = make(map[string][]string)
}

// isSelf reports whether nick is our own under the casemapping.
func (t *Tracker) isSelf(nick string) bool {
	return t.casemap.Equal(nick, t.nick)
}

// eventTime prefers the server-time tag over the local clock.
func eventTime(m *irc.Message) time.Time {
	if v := m.Tags.Get("time"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}

// Apply folds one inbound message into the model and returns the events
// it produced. Unknown commands and numerics come back as opaque
// events; nothing is dropped silently.
func (t *Tracker) Apply(m *irc.Message) []Event {
	ts := eventTime(m)
	switch m.Command {
	case irc.RplWelcome:
		// The server's view of our nick wins over what we asked for.
		if n := m.Params.Get(1); n != "" {
			t.nick = n
		}
		return nil
	case irc.RplISupport:
		t.applyISupport(m)
		return nil
	case irc.CmdJoin:
		return t.applyJoin(m, ts)
	case irc.CmdPart:
		return t.applyPart(m, ts)
	case irc.CmdKick:
		return t.applyKick(m, ts)
	case irc.CmdQuit:
		return t.applyQuit(m, ts)
	case irc.CmdNick:
		return t.applyNick(m, ts)
	case irc.CmdMode:
		return t.applyMode(m, ts)
	case irc.CmdTopic:
		return t.applyTopic(m, ts)
	case irc.RplTopic:
		return t.applyTopicNumeric(m, m.Params.Get(3), ts)
	case irc.RplNoTopic:
		return t.applyTopicNumeric(m, "", ts)
	case irc.RplNamReply:
		t.collectNames(m)
		return nil
	case irc.RplEndOfNames:
		return t.commitNames(m, ts)
	case irc.RplChannelModeIs:
		return t.applyChannelModeIs(m, ts)
	case irc.CmdAway:
		return t.applyAway(m, ts)
	case irc.RplAway:
		t.setAway(m.Params.Get(2), true)
		return nil
	case irc.RplUnAway, irc.RplNowAway:
		return []Event{{Kind: EventNotice, Text: m.Params.Trailing(), Time: ts}}
	case irc.CmdAccount:
		return t.applyAccount(m)
	case irc.CmdChgHost:
		return t.applyChgHost(m)
	case irc.CmdSetName:
		return t.applySetName(m)
	case irc.RplWhoReply:
		t.applyWhoReply(m)
		return nil
	case irc.CmdPrivmsg, irc.CmdNotice:
		return t.applyMessage(m, ts)
	case irc.RplWhoIsUser, irc.RplWhoIsServer, irc.RplWhoIsIdle, irc.RplWhoIsChannels, irc.RplWhoIsAccount:
		t.collectWhois(m)
		return nil
	case irc.RplEndOfWhoIs:
		return t.commitWhois(m, ts)
	case irc.RplMonOnline:
		return monitorEvent(EventMonitorOnline, m, ts)
	case irc.RplMonOffline:
		return monitorEvent(EventMonitorOffline, m, ts)
	}

	if text, ok := errorNumericText(m); ok {
		return []Event{{Kind: EventNotice, Text: text, Time: ts, Raw: m}}
	}
	return []Event{{Kind: EventOpaque, Time: ts, Raw: m}}
}

func (t *Tracker) applyISupport(m *irc.Message) {
	// Params: <client> <token>... :are supported by this server
	if len(m.Params) < 2 {
		return
	}
	for _, tok := range m.Params[1:] {
		key, val, _ := strings.Cut(tok, "=")
		switch key {
		case "CASEMAPPING":
			// Negotiated once; read-only for the session's remainder.
			if !t.casemapLocked {
				t.casemap = irc.ParseCaseMapping(val)
				t.casemapLocked = true
			}
		case "PREFIX":
			if pt, ok := parsePrefixToken(val); ok {
				t.prefixes = pt
			}
		case "CHANMODES":
			if cc, ok := parseChanModesToken(val); ok {
				t.classes = cc
			}
		}
	}
}

func (t *Tracker) channelOrNil(name string) *Channel {
	return t.channels[t.casemap.Fold(name)]
}

func (t *Tracker) ensureChannel(name string) *Channel {
	key := t.casemap.Fold(name)
	ch, ok := t.channels[key]
	if !ok {
		ch = &Channel{
			Name:    name,
			modes:   make(channelModes),
			members: make(map[string]*Member),
		}
		t.channels[key] = ch
	}
	return ch
}

func (t *Tracker) applyJoin(m *irc.Message, ts time.Time) []Event {
	name := strings.TrimPrefix(m.Params.Get(1), ":")
	nick := m.Source.Nick
	if name == "" || nick == "" {
		return []Event{{Kind: EventOpaque, Time: ts, Raw: m}}
	}

	self := t.isSelf(nick)
	ch := t.ensureChannel(name)
	member := &Member{Nick: nick, User: m.Source.User, Host: m.Source.Host}
	// extended-join carries account and realname as extra parameters.
	if acct := m.Params.Get(2); acct != "" && acct != "*" {
		member.Account = acct
	}
	if rn := m.Params.Get(3); rn != "" {
		member.Realname = rn
	}
	ch.members[t.casemap.Fold(nick)] = member

	events := []Event{{Kind: EventUserJoined, Channel: ch.Name, Nick: nick, Self: self, Time: ts}}
	if self {
		events = append(events, Event{Kind: EventChannelsChanged, Names: t.Channels(), Time: ts})
	}
	events = append(events, t.membersChanged(ch, ts))
	return events
}

func (t *Tracker) applyPart(m *irc.Message, ts time.Time) []Event {
	name := m.Params.Get(1)
	nick := m.Source.Nick
	ch := t.channelOrNil(name)
	if ch == nil {
		return []Event{{Kind: EventOpaque, Time: ts, Raw: m}}
	}

	events := []Event{{Kind: EventUserParted, Channel: ch.Name, Nick: nick, Text: m.Params.Get(2), Self: t.isSelf(nick), Time: ts}}
	if t.isSelf(nick) {
		delete(t.channels, t.casemap.Fold(name))
		return append(events, Event{Kind: EventChannelsChanged, Names: t.Channels(), Time: ts})
	}
	delete(ch.members, t.casemap.Fold(nick))
	return append(events, t.membersChanged(ch, ts))
}

func (t *Tracker) applyKick(m *irc.Message, ts time.Time) []Event {
	name, victim := m.Params.Get(1), m.Params.Get(2)
	ch := t.channelOrNil(name)
	if ch == nil {
		return []Event{{Kind: EventOpaque, Time: ts, Raw: m}}
	}

	events := []Event{{
		Kind: EventUserKicked, Channel: ch.Name, Nick: victim,
		Actor: m.Source.Nick, Text: m.Params.Get(3), Self: t.isSelf(victim), Time: ts,
	}}
	if t.isSelf(victim) {
		delete(t.channels, t.casemap.Fold(name))
		return append(events, Event{Kind: EventChannelsChanged, Names: t.Channels(), Time: ts})
	}
	delete(ch.members, t.casemap.Fold(victim))
	return append(events, t.membersChanged(ch, ts))
}

func (t *Tracker) applyQuit(m *irc.Message, ts time.Time) []Event {
	nick := m.Source.Nick
	key := t.casemap.Fold(nick)
	events := []Event{{Kind: EventUserQuit, Nick: nick, Text: m.Params.Get(1), Time: ts}}
	for _, ch := range t.channels {
		if _, ok := ch.members[key]; ok {
			delete(ch.members, key)
			events = append(events, t.membersChanged(ch, ts))
		}
	}
	return events
}

func (t *Tracker) applyNick(m *irc.Message, ts time.Time) []Event {
	oldNick, newNick := m.Source.Nick, m.Params.Get(1)
	oldKey, newKey := t.casemap.Fold(oldNick), t.casemap.Fold(newNick)

	if t.isSelf(oldNick) {
		t.nick = newNick
	}
	events := []Event{{Kind: EventNickChanged, Nick: oldNick, NewNick: newNick, Self: t.isSelf(newNick), Time: ts}}
	for _, ch := range t.channels {
		if member, ok := ch.members[oldKey]; ok {
			delete(ch.members, oldKey)
			member.Nick = newNick
			ch.members[newKey] = member
			events = append(events, t.membersChanged(ch, ts))
		}
	}
	if _, ok := t.queries[oldKey]; ok {
		delete(t.queries, oldKey)
		t.queries[newKey] = newNick
	}
	return events
}

func (t *Tracker) applyMode(m *irc.Message, ts time.Time) []Event {
	target := m.Params.Get(1)
	if target == "" {
		return []Event{{Kind: EventOpaque, Time: ts, Raw: m}}
	}
	if !irc.IsChannel(target) {
		// User modes on ourselves surface as a notice.
		return []Event{{Kind: EventNotice, Text: fmt.Sprintf("mode %s %s", target, strings.Join(m.Params[1:], " ")), Time: ts, Raw: m}}
	}
	ch := t.channelOrNil(target)
	if ch == nil {
		return []Event{{Kind: EventOpaque, Time: ts, Raw: m}}
	}

	changes, channelLevel := parseModeChanges(t.prefixes, t.classes, ch.modes, m.Params[1:])
	var events []Event
	membersTouched := false
	for _, c := range changes {
		member, ok := ch.members[t.casemap.Fold(c.nick)]
		if !ok {
			continue
		}
		// Roles are the union of currently active prefix flags, not
		// cumulative history.
		if c.add {
			member.Roles |= c.role
		} else {
			member.Roles &^= c.role
		}
		membersTouched = true
	}
	if channelLevel {
		events = append(events, Event{Kind: EventModeChanged, Channel: ch.Name, Actor: m.Source.Nick, Modes: ch.modes.String(), Time: ts})
	}
	if membersTouched {
		events = append(events, t.membersChanged(ch, ts))
	}
	if events == nil {
		events = append(events, Event{Kind: EventOpaque, Time: ts, Raw: m})
	}
	return events
}

func (t *Tracker) applyChannelModeIs(m *irc.Message, ts time.Time) []Event {
	// Params: <client> <channel> <modes> <args>...
	ch := t.channelOrNil(m.Params.Get(2))
	if ch == nil {
		return []Event{{Kind: EventOpaque, Time: ts, Raw: m}}
	}
	ch.modes = make(channelModes)
	parseModeChanges(t.prefixes, t.classes, ch.modes, m.Params[2:])
	return []Event{{Kind: EventModeChanged, Channel: ch.Name, Modes: ch.modes.String(), Time: ts}}
}

func (t *Tracker) applyTopic(m *irc.Message, ts time.Time) []Event {
	ch := t.channelOrNil(m.Params.Get(1))
	if ch == nil {
		return []Event{{Kind: EventOpaque, Time: ts, Raw: m}}
	}
	ch.Topic = m.Params.Get(2)
	return []Event{{Kind: EventTopicChanged, Channel: ch.Name, Actor: m.Source.Nick, Topic: ch.Topic, Time: ts}}
}

// applyTopicNumeric handles 332 (topic is) and 331 (no topic set).
func (t *Tracker) applyTopicNumeric(m *irc.Message, topic string, ts time.Time) []Event {
	ch := t.channelOrNil(m.Params.Get(2))
	if ch == nil {
		return []Event{{Kind: EventOpaque, Time: ts, Raw: m}}
	}
	ch.Topic = topic
	return []Event{{Kind: EventTopicChanged, Channel: ch.Name, Topic: topic, Time: ts}}
}

// collectNames buffers one 353 reply. Params: <client> <symbol>
// <channel> :<prefixed nicks>.
func (t *Tracker) collectNames(m *irc.Message) {
	channel := m.Params.Get(3)
	names := strings.Fields(m.Params.Get(4))
	key := t.casemap.Fold(channel)
	t.pendingNames[key] = append(t.pendingNames[key], names...)
}

// commitNames applies the buffered NAMES snapshot on 366. The snapshot
// is authoritative: the member set is replaced, preserving known detail
// for survivors, so reapplying the same snapshot is idempotent.
func (t *Tracker) commitNames(m *irc.Message, ts time.Time) []Event {
	channel := m.Params.Get(2)
	key := t.casemap.Fold(channel)
	names := t.pendingNames[key]
	delete(t.pendingNames, key)

	ch := t.ensureChannel(channel)
	fresh := make(map[string]*Member, len(names))
	for _, entry := range names {
		roles, nick := t.splitNamePrefixes(entry)
		if nick == "" {
			continue
		}
		nickKey := t.casemap.Fold(nick)
		member, ok := ch.members[nickKey]
		if !ok {
			member = &Member{Nick: nick}
		}
		member.Nick = nick
		member.Roles = roles
		fresh[nickKey] = member
	}
	ch.members = fresh
	return []Event{t.membersChanged(ch, ts)}
}

// splitNamePrefixes strips the leading prefix symbols of a NAMES entry.
// With multi-prefix negotiated a nick may carry several.
func (t *Tracker) splitNamePrefixes(entry string) (Role, string) {
	var roles Role
	for len(entry) > 0 {
		role, ok := t.prefixes.bySymbol[entry[0]]
		if !ok {
			break
		}
		roles |= role
		entry = entry[1:]
	}
	return roles, entry
}

func (t *Tracker) applyAway(m *irc.Message, ts time.Time) []Event {
	away := len(m.Params) > 0 && m.Params.Get(1) != ""
	t.setAway(m.Source.Nick, away)
	var events []Event
	for _, ch := range t.channels {
		if _, ok := ch.members[t.casemap.Fold(m.Source.Nick)]; ok {
			events = append(events, t.membersChanged(ch, ts))
		}
	}
	if events == nil {
		return nil
	}
	return events
}

func (t *Tracker) setAway(nick string, away bool) {
	key := t.casemap.Fold(nick)
	for _, ch := range t.channels {
		if member, ok := ch.members[key]; ok {
			member.Away = away
		}
	}
}

func (t *Tracker) applyAccount(m *irc.Message) []Event {
	account := m.Params.Get(1)
	if account == "*" || account == "0" {
		account = ""
	}
	t.eachMember(m.Source.Nick, func(member *Member) { member.Account = account })
	return nil
}

func (t *Tracker) applyChgHost(m *irc.Message) []Event {
	user, host := m.Params.Get(1), m.Params.Get(2)
	t.eachMember(m.Source.Nick, func(member *Member) {
		member.User = user
		member.Host = host
	})
	return nil
}

func (t *Tracker) applySetName(m *irc.Message) []Event {
	realname := m.Params.Get(1)
	t.eachMember(m.Source.Nick, func(member *Member) { member.Realname = realname })
	return nil
}

func (t *Tracker) eachMember(nick string, fn func(*Member)) {
	key := t.casemap.Fold(nick)
	for _, ch := range t.channels {
		if member, ok := ch.members[key]; ok {
			fn(member)
		}
	}
}

// applyWhoReply folds a 352 into member detail. Params: <client>
// <channel> <user> <host> <server> <nick> <flags> :<hop> <realname>.
func (t *Tracker) applyWhoReply(m *irc.Message) {
	ch := t.channelOrNil(m.Params.Get(2))
	if ch == nil {
		return
	}
	member, ok := ch.members[t.casemap.Fold(m.Params.Get(6))]
	if !ok {
		return
	}
	member.User = m.Params.Get(3)
	member.Host = m.Params.Get(4)
	flags := m.Params.Get(7)
	member.Away = strings.Contains(flags, "G") && !strings.Contains(flags, "H")
	if trailing := m.Params.Get(8); trailing != "" {
		// Trailing is "<hopcount> <realname>".
		if _, rn, ok := strings.Cut(trailing, " "); ok {
			member.Realname = rn
		}
	}
}

func (t *Tracker) applyMessage(m *irc.Message, ts time.Time) []Event {
	target := m.Params.Get(1)
	text := m.Params.Get(2)
	action := false
	if sub, body, ok := m.DecodeCTCP(); ok {
		if sub != "ACTION" {
			// Non-ACTION CTCP is forwarded opaquely; replying is the
			// session engine's decision.
			return []Event{{Kind: EventOpaque, Time: ts, Raw: m}}
		}
		action = true
		text = body
	}

	ev := Event{
		Kind:   EventMessage,
		Nick:   m.Source.Nick,
		Target: target,
		Text:   text,
		Action: action,
		Self:   t.isSelf(m.Source.Nick),
		Time:   ts,
	}
	events := []Event{}
	if irc.IsChannel(target) {
		ev.Channel = target
	} else if !m.Source.IsServer() && !ev.Self {
		// Inbound query: open the PM target keyed by the sender.
		ev.Channel = m.Source.Nick
		if t.OpenQuery(m.Source.Nick) {
			events = append(events, Event{Kind: EventQueryOpened, Nick: m.Source.Nick, Time: ts})
		}
	} else {
		ev.Channel = target
	}
	return append(events, ev)
}

func (t *Tracker) collectWhois(m *irc.Message) {
	nick := m.Params.Get(2)
	key := t.casemap.Fold(nick)
	var line string
	switch m.Command {
	case irc.RplWhoIsUser:
		line = fmt.Sprintf("%s is %s@%s (%s)", nick, m.Params.Get(3), m.Params.Get(4), m.Params.Get(6))
	case irc.RplWhoIsServer:
		line = fmt.Sprintf("%s is on %s (%s)", nick, m.Params.Get(3), m.Params.Get(4))
	case irc.RplWhoIsIdle:
		line = fmt.Sprintf("%s has been idle %s seconds", nick, m.Params.Get(3))
	case irc.RplWhoIsChannels:
		line = fmt.Sprintf("%s is on channels: %s", nick, m.Params.Trailing())
	case irc.RplWhoIsAccount:
		line = fmt.Sprintf("%s is logged in as %s", nick, m.Params.Get(3))
	}
	if line != "" {
		t.whois[key] = append(t.whois[key], line)
	}
}

func (t *Tracker) commitWhois(m *irc.Message, ts time.Time) []Event {
	nick := m.Params.Get(2)
	key := t.casemap.Fold(nick)
	lines := t.whois[key]
	delete(t.whois, key)
	if len(lines) == 0 {
		lines = []string{fmt.Sprintf("%s: no WHOIS information", nick)}
	}
	return []Event{{Kind: EventNotice, Nick: nick, Text: strings.Join(lines, "\n"), Time: ts}}
}

// monitorEvent extracts the nicks from a MONITOR presence numeric. The
// trailing parameter is a comma-separated list; online entries may carry
// a full nick!user@host address.
func monitorEvent(kind EventKind, m *irc.Message, ts time.Time) []Event {
	var nicks []string
	for _, item := range strings.Split(m.Params.Trailing(), ",") {
		nick, _, _ := strings.Cut(strings.TrimSpace(item), "!")
		if nick != "" {
			nicks = append(nicks, nick)
		}
	}
	if len(nicks) == 0 {
		return nil
	}
	return []Event{{Kind: kind, Names: nicks, Time: ts}}
}

// membersChanged builds the membersChanged event for a channel with the
// badge-prefixed nick list.
func (t *Tracker) membersChanged(ch *Channel, ts time.Time) Event {
	members := ch.Members()
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Badge()+m.Nick)
	}
	return Event{Kind: EventMembersChanged, Channel: ch.Name, Names: names, Time: ts}
}

// errorNumericText translates protocol error numerics into user-visible
// notices. They are never silently swallowed.
func errorNumericText(m *irc.Message) (string, bool) {
	switch m.Command {
	case irc.ErrNoSuchNick, irc.ErrNoSuchChannel, irc.ErrCannotSendToChan,
		irc.ErrUnknownCommand, irc.ErrErroneusNickname, irc.ErrNicknameInUse,
		irc.ErrNotOnChannel, irc.ErrPasswdMismatch, irc.ErrYoureBanned,
		irc.ErrChannelIsFull, irc.ErrInviteOnlyChan, irc.ErrBannedFromChan,
		irc.ErrBadChannelKey:
		parts := append([]string{}, m.Params...)
		if len(parts) > 0 {
			// First param is our own nick; not useful in a notice.
			parts = parts[1:]
		}
		return fmt.Sprintf("%s: %s", m.Command, strings.Join(parts, " ")), true
	}
	return "", false
}
