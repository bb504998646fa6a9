package state

import (
	"time"

	"github.com/deadhop/engine/internal/irc"
)

// EventKind identifies the fixed set of state-change notifications the
// tracker produces. The session engine forwards them to subscribers.
type EventKind string

const (
	// EventMessage is a PRIVMSG, NOTICE, or CTCP ACTION arriving on a
	// channel or query.
	EventMessage EventKind = "message"

	// EventMembersChanged reports that a channel's member set changed.
	EventMembersChanged EventKind = "membersChanged"

	// EventTopicChanged reports a new channel topic.
	EventTopicChanged EventKind = "topicChanged"

	// EventModeChanged reports channel-level mode changes.
	EventModeChanged EventKind = "modeChanged"

	// EventUserJoined, EventUserParted, EventUserKicked, and
	// EventUserQuit report membership transitions of a single user.
	EventUserJoined EventKind = "userJoined"
	EventUserParted EventKind = "userParted"
	EventUserKicked EventKind = "userKicked"
	EventUserQuit   EventKind = "userQuit"

	// EventNickChanged reports a nickname change.
	EventNickChanged EventKind = "nickChanged"

	// EventChannelsChanged reports that the set of channels we are
	// joined to changed.
	EventChannelsChanged EventKind = "channelsChanged"

	// EventQueryOpened reports a new private-message target.
	EventQueryOpened EventKind = "queryOpened"

	// EventNotice carries user-visible server text: error numerics,
	// away confirmations, WHOIS summaries.
	EventNotice EventKind = "serverNotice"

	// EventStatusChanged reports connection lifecycle transitions. Text
	// holds the phase name.
	EventStatusChanged EventKind = "statusChanged"

	// EventTargetChanged reports that the session's active buffer moved.
	// Target holds the new buffer name.
	EventTargetChanged EventKind = "targetChanged"

	// EventMonitorOnline and EventMonitorOffline report presence changes
	// of monitored nicks. Names holds the affected nicks.
	EventMonitorOnline  EventKind = "monitorOnline"
	EventMonitorOffline EventKind = "monitorOffline"

	// EventOpaque wraps commands and numerics the tracker does not
	// interpret. They are forwarded, never dropped.
	EventOpaque EventKind = "opaque"
)

// Event is a single state-change notification. Only the fields relevant
// to the Kind are set.
type Event struct {
	Kind    EventKind    `json:"kind"`
	Channel string       `json:"channel,omitempty"`
	Nick    string       `json:"nick,omitempty"`
	NewNick string       `json:"newNick,omitempty"`
	Actor   string       `json:"actor,omitempty"`
	Target  string       `json:"target,omitempty"`
	Text    string       `json:"text,omitempty"`
	Topic   string       `json:"topic,omitempty"`
	Modes   string       `json:"modes,omitempty"`
	Names   []string     `json:"names,omitempty"`
	Action  bool         `json:"action,omitempty"`
	Self    bool         `json:"self,omitempty"`
	Time    time.Time    `json:"time"`
	Raw     *irc.Message `json:"-"`
}
