// Package session orchestrates server connections: it joins the
// connection manager, the state tracker, and the command dispatcher
// into addressable sessions and fans their events out to subscribers.
package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deadhop/engine/internal/conn"
	"github.com/deadhop/engine/internal/dispatch"
	"github.com/deadhop/engine/internal/irc"
	"github.com/deadhop/engine/internal/state"
	"github.com/deadhop/engine/internal/store/history"
	"github.com/deadhop/engine/internal/store/profiles"
)

// Event is a state change attributed to a session.
type Event struct {
	SessionID string `json:"sessionId"`
	state.Event
}

// Info is the externally visible summary of a session.
type Info struct {
	ID       string   `json:"id"`
	Profile  string   `json:"profile"`
	State    string   `json:"state"`
	Nick     string   `json:"nick"`
	Channels []string `json:"channels"`
	Queries  []string `json:"queries"`
	Monitor  []string `json:"monitor,omitempty"`
	Target   string   `json:"target"`
}

// newManager is swapped out by tests to avoid real sockets.
var newManager = func(cfg conn.Config) *conn.Manager { return conn.NewManager(cfg) }

type session struct {
	id      string
	profile profiles.Profile
	mgr     *conn.Manager
	cancel  context.CancelFunc

	mu      sync.Mutex
	tracker *state.Tracker
	target  string
	monitor []string

	// pendingEcho remembers lines echoed locally so an unsolicited
	// server reflection of the same line is not rendered twice.
	pendingEcho []echoKey
}

type echoKey struct {
	target string
	text   string
}

// maxPendingEcho bounds the reflection window; stale entries fall off.
const maxPendingEcho = 16

// Engine owns every live session and the event fan-out.
type Engine struct {
	hist *history.Store

	mu       sync.Mutex
	sessions map[string]*session
	subs     map[int]chan Event
	nextSub  int
}

// NewEngine returns an engine. hist may be nil to disable archiving.
func NewEngine(hist *history.Store) *Engine {
	return &Engine{
		hist:     hist,
		sessions: make(map[string]*session),
		subs:     make(map[int]chan Event),
	}
}

// Open connects a new session for the profile and returns its id. The
// connection proceeds in the background; progress arrives as
// statusChanged events.
func (e *Engine) Open(p profiles.Profile) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	mgr := newManager(conn.Config{
		Host:               p.Host,
		Port:               p.Port,
		TLS:                p.TLS,
		InsecureSkipVerify: p.InsecureSkipVerify,
		Nick:               p.Nick,
		User:               p.User,
		Realname:           p.Realname,
		Password:           p.Password,
		SASLUser:           p.SASLUser,
		SASLPassword:       p.SASLPassword,
		Channels:           p.Channels,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:      id,
		profile: p,
		mgr:     mgr,
		cancel:  cancel,
		tracker: state.NewTracker(p.Nick),
	}

	e.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()

	go e.serve(runCtx, s)
	return id, nil
}

// serve pumps one session until its connection is gone for good.
func (e *Engine) serve(ctx context.Context, s *session) {
	done := make(chan error, 1)
	go func() { done <- s.mgr.Run(ctx) }()

	states := s.mgr.States()
	inbound := s.mgr.Inbound()
	for {
		select {
		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			if st == conn.StateDisconnected {
				s.mu.Lock()
				s.tracker.Reset()
				s.mu.Unlock()
			}
			e.publish(s.id, state.Event{Kind: state.EventStatusChanged, Text: st.String(), Time: time.Now().UTC()})

		case msg, ok := <-inbound:
			if !ok {
				err := <-done
				if err != nil {
					log.Printf("[session] %s: connection ended: %v", s.id, err)
					e.publish(s.id, state.Event{Kind: state.EventNotice, Text: err.Error(), Time: time.Now().UTC()})
				}
				e.publish(s.id, state.Event{Kind: state.EventStatusChanged, Text: conn.StateDisconnected.String(), Time: time.Now().UTC()})
				e.mu.Lock()
				delete(e.sessions, s.id)
				e.mu.Unlock()
				return
			}
			if e.consumePendingEcho(s, msg) {
				continue
			}
			e.applyAndPublish(s, msg)
		}
	}
}

// consumePendingEcho reports whether msg is the server's reflection of a
// line already echoed locally. Matching entries are consumed so repeated
// identical input still renders once each.
func (e *Engine) consumePendingEcho(s *session, msg *irc.Message) bool {
	if msg.Command != irc.CmdPrivmsg && msg.Command != irc.CmdNotice {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pendingEcho) == 0 || !strings.EqualFold(msg.Source.Nick, s.tracker.Nick()) {
		return false
	}
	for i, p := range s.pendingEcho {
		if strings.EqualFold(p.target, msg.Params.Get(1)) && p.text == msg.Params.Get(2) {
			s.pendingEcho = append(s.pendingEcho[:i], s.pendingEcho[i+1:]...)
			return true
		}
	}
	return false
}

func (e *Engine) applyAndPublish(s *session, msg *irc.Message) {
	s.mu.Lock()
	events := s.tracker.Apply(msg)
	s.mu.Unlock()
	for _, ev := range events {
		e.record(s.id, ev)
		e.publish(s.id, ev)
	}
}

// record archives message traffic; other event kinds are transient.
func (e *Engine) record(id string, ev state.Event) {
	if e.hist == nil || ev.Kind != state.EventMessage || ev.Channel == "" {
		return
	}
	kind := "message"
	if ev.Action {
		kind = "action"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := e.hist.Append(ctx, history.Record{
		Session: id,
		Target:  ev.Channel,
		Nick:    ev.Nick,
		Kind:    kind,
		Text:    ev.Text,
		At:      ev.Time,
	})
	if err != nil {
		log.Printf("[session] %s: archiving message: %v", id, err)
	}
}

// Send runs one line of user input through the dispatcher and executes
// the resulting plan.
func (e *Engine) Send(id, input string) error {
	s, err := e.get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	dctx := dispatch.Context{CurrentTarget: s.target, Nick: s.tracker.Nick()}
	s.mu.Unlock()

	plan, err := dispatch.Parse(input, dctx)
	if err != nil {
		return err
	}

	for _, m := range plan.Outbound {
		if err := s.mgr.Send(m); err != nil {
			return err
		}
	}

	if plan.OpenQuery != "" {
		s.mu.Lock()
		opened := s.tracker.OpenQuery(plan.OpenQuery)
		s.mu.Unlock()
		if opened {
			e.publish(s.id, state.Event{Kind: state.EventQueryOpened, Nick: plan.OpenQuery, Time: time.Now().UTC()})
		}
	}
	if plan.SwitchTarget != "" {
		e.setTarget(s, plan.SwitchTarget)
	}
	if plan.Notice != "" {
		e.publish(s.id, state.Event{Kind: state.EventNotice, Text: plan.Notice, Time: time.Now().UTC()})
	}

	// Reflect our own message locally unless the server echoes it back
	// via echo-message, which would double every line.
	if plan.Echo != nil && !s.mgr.CapEnabled("echo-message") {
		s.mu.Lock()
		s.pendingEcho = append(s.pendingEcho, echoKey{
			target: plan.Echo.Params.Get(1),
			text:   plan.Echo.Params.Get(2),
		})
		if len(s.pendingEcho) > maxPendingEcho {
			s.pendingEcho = s.pendingEcho[len(s.pendingEcho)-maxPendingEcho:]
		}
		s.mu.Unlock()
		e.applyAndPublish(s, plan.Echo)
	}
	return nil
}

// SetMonitorList replaces the session's server-side notify list. The
// server answers with presence numerics that surface as monitor events.
func (e *Engine) SetMonitorList(id string, nicks []string) error {
	s, err := e.get(id)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(nicks))
	clean := make([]string, 0, len(nicks))
	for _, n := range nicks {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		clean = append(clean, n)
	}
	sort.Strings(clean)

	s.mu.Lock()
	s.monitor = clean
	s.mu.Unlock()

	if err := s.mgr.Send(irc.MonitorClear()); err != nil {
		return err
	}
	if len(clean) == 0 {
		return nil
	}
	return s.mgr.Send(irc.MonitorAdd(clean...))
}

// SetTarget moves the session's active buffer.
func (e *Engine) SetTarget(id, target string) error {
	s, err := e.get(id)
	if err != nil {
		return err
	}
	e.setTarget(s, target)
	return nil
}

func (e *Engine) setTarget(s *session, target string) {
	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
	e.publish(s.id, state.Event{Kind: state.EventTargetChanged, Target: target, Time: time.Now().UTC()})
}

// Close disconnects and removes the session.
func (e *Engine) Close(id string) error {
	s, err := e.get(id)
	if err != nil {
		return err
	}
	s.mgr.Close()
	s.cancel()
	return nil
}

// CloseAll disconnects everything, for shutdown.
func (e *Engine) CloseAll() {
	e.mu.Lock()
	all := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		all = append(all, s)
	}
	e.mu.Unlock()
	for _, s := range all {
		s.mgr.Close()
		s.cancel()
	}
}

// Sessions summarizes the live sessions.
func (e *Engine) Sessions() []Info {
	e.mu.Lock()
	all := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		all = append(all, s)
	}
	e.mu.Unlock()

	out := make([]Info, 0, len(all))
	for _, s := range all {
		out = append(out, e.info(s))
	}
	return out
}

// Session returns the summary for one session.
func (e *Engine) Session(id string) (Info, error) {
	s, err := e.get(id)
	if err != nil {
		return Info{}, err
	}
	return e.info(s), nil
}

func (e *Engine) info(s *session) Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:       s.id,
		Profile:  s.profile.Name,
		State:    s.mgr.State().String(),
		Nick:     s.tracker.Nick(),
		Channels: s.tracker.Channels(),
		Queries:  s.tracker.Queries(),
		Monitor:  append([]string(nil), s.monitor...),
		Target:   s.target,
	}
}

// Subscribe registers an event consumer. Slow consumers drop events
// rather than stalling the engine. The returned func unsubscribes.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 256)
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.mu.Unlock()

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
}

func (e *Engine) publish(id string, ev state.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- Event{SessionID: id, Event: ev}:
		default:
		}
	}
}

func (e *Engine) get(id string) (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no session %q", id)
	}
	return s, nil
}
