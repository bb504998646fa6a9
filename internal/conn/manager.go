package conn

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/deadhop/engine/internal/irc"
)

// State is the connection lifecycle phase.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateRegistering
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	default:
		return "disconnected"
	}
}

// wantedCaps are the capabilities requested from every server that
// advertises them. sasl is appended when credentials are configured.
var wantedCaps = []string{
	"account-notify",
	"account-tag",
	"away-notify",
	"batch",
	"chghost",
	"echo-message",
	"extended-join",
	"message-tags",
	"multi-prefix",
	"server-time",
	"setname",
}

// Dialer opens the raw transport. Tests substitute an in-memory pipe.
type Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

// Config describes one server connection.
type Config struct {
	Host               string
	Port               int
	TLS                bool
	InsecureSkipVerify bool

	Nick     string
	User     string
	Realname string

	// Password is sent as PASS during registration when set.
	Password string
	// SASLUser and SASLPassword enable SASL PLAIN when both are set.
	SASLUser     string
	SASLPassword string

	// Channels are joined automatically after registration.
	Channels []string

	// MaxAttempts bounds consecutive failed reconnects. Zero means
	// retry forever.
	MaxAttempts int

	// MessageRate and MessageBurst throttle the outbound queue.
	// Keepalive replies bypass the throttle. Zero values pick the
	// defaults of 2 msg/s with a burst of 5.
	MessageRate  rate.Limit
	MessageBurst int

	// PingInterval sets the idle keepalive period. Zero picks one
	// minute.
	PingInterval time.Duration

	// Dialer overrides the transport for tests. Nil uses the network.
	Dialer Dialer
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Manager owns one server connection: dialing, registration, the
// keepalive, the throttled writer, and reconnection with backoff. It
// delivers every inbound message it does not consume itself on
// Inbound(), in arrival order.
type Manager struct {
	cfg   Config
	state atomic.Int32

	inbound chan *irc.Message
	states  chan State
	sendq   chan *irc.Message
	pongs   chan *irc.Message

	closeOnce sync.Once
	closed    chan struct{}

	mu   sync.Mutex
	caps map[string]bool
	rng  *rand.Rand
}

// NewManager returns a manager for cfg. Run must be called to connect.
func NewManager(cfg Config) *Manager {
	if cfg.MessageRate == 0 {
		cfg.MessageRate = rate.Limit(2)
	}
	if cfg.MessageBurst == 0 {
		cfg.MessageBurst = 8
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = time.Minute
	}
	if cfg.User == "" {
		cfg.User = cfg.Nick
	}
	if cfg.Realname == "" {
		cfg.Realname = cfg.Nick
	}
	return &Manager{
		cfg:     cfg,
		inbound: make(chan *irc.Message, 256),
		states:  make(chan State, 16),
		sendq:   make(chan *irc.Message, 128),
		pongs:   make(chan *irc.Message, 8),
		closed:  make(chan struct{}),
		caps:    map[string]bool{},
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Inbound delivers parsed server messages. The channel closes when Run
// returns.
func (m *Manager) Inbound() <-chan *irc.Message { return m.inbound }

// States delivers lifecycle transitions. Slow consumers lose the
// oldest entries, never the newest.
func (m *Manager) States() <-chan State { return m.states }

// State returns the current lifecycle phase.
func (m *Manager) State() State { return State(m.state.Load()) }

// CapEnabled reports whether the named capability was acknowledged.
// The set is fixed once registration completes.
func (m *Manager) CapEnabled(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.caps[name]
}

// Caps returns the acknowledged capability names, sorted.
func (m *Manager) Caps() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.caps))
	for c := range m.caps {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Send queues one message on the throttled outbound lane.
func (m *Manager) Send(msg *irc.Message) error {
	select {
	case m.sendq <- msg:
		return nil
	case <-m.closed:
		return errors.New("connection closed")
	}
}

// Close shuts the connection down for good. Run returns without
// reconnecting.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	for {
		select {
		case m.states <- s:
			return
		default:
		}
		select {
		case <-m.states:
		default:
		}
	}
}

// Run connects and serves the session until the context is canceled,
// Close is called, or registration fails terminally. Transport drops
// trigger reconnection with jittered exponential backoff; the attempt
// counter resets after each successful registration.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.inbound)
	defer m.setState(StateDisconnected)

	attempt := 0
	for {
		m.setState(StateConnecting)
		registered, err := m.runOnce(ctx)
		if err == nil {
			return nil
		}
		var regErr *RegistrationError
		if errors.As(err, &regErr) {
			log.Printf("[conn] %s: %v", m.cfg.addr(), err)
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-m.closed:
			return nil
		default:
		}

		if registered {
			attempt = 0
		}
		attempt++
		if m.cfg.MaxAttempts > 0 && attempt > m.cfg.MaxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", m.cfg.MaxAttempts, err)
		}
		m.setState(StateDisconnected)
		delay := backoffDelay(attempt, m.rng)
		log.Printf("[conn] %s: reconnecting in %s (attempt %d): %v", m.cfg.addr(), delay.Round(time.Millisecond), attempt, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.closed:
			return nil
		case <-time.After(delay):
		}
	}
}

// runOnce handles one dial-register-serve cycle. registered reports
// whether the handshake completed before the connection dropped.
func (m *Manager) runOnce(ctx context.Context) (registered bool, err error) {
	conn, err := m.dial(ctx)
	if err != nil {
		return false, &TransportError{Op: "dial", Err: err}
	}
	defer conn.Close()

	// Unblock reads when the session is torn down from outside.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-m.closed:
		case <-stop:
			return
		}
		conn.SetReadDeadline(time.Now())
	}()

	m.setState(StateRegistering)
	reader := bufio.NewReaderSize(conn, 8192)
	if err := m.register(conn, reader); err != nil {
		return false, err
	}
	m.setState(StateRegistered)
	log.Printf("[conn] %s: registered as %s, caps: %s", m.cfg.addr(), m.cfg.Nick, strings.Join(m.Caps(), " "))

	for _, ch := range m.cfg.Channels {
		if err := writeMessage(conn, irc.Join(ch)); err != nil {
			return true, &TransportError{Op: "write", Err: err}
		}
	}

	errc := make(chan error, 2)
	done := make(chan struct{})
	defer close(done)
	go m.readLoop(conn, reader, errc, done)
	go m.writeLoop(ctx, conn, errc, done)

	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	case <-m.closed:
		// Best-effort goodbye; the server closes the rest.
		writeMessage(conn, irc.Quit("bye"))
		return true, nil
	}
	return true, err
}

func (m *Manager) dial(ctx context.Context) (net.Conn, error) {
	dial := m.cfg.Dialer
	if dial == nil {
		d := &net.Dialer{Timeout: 15 * time.Second}
		dial = d.DialContext
	}
	conn, err := dial(ctx, "tcp", m.cfg.addr())
	if err != nil {
		return nil, err
	}
	if m.cfg.TLS && m.cfg.Dialer == nil {
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName:         m.cfg.Host,
			InsecureSkipVerify: m.cfg.InsecureSkipVerify,
		})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}
	return conn, nil
}

// register drives CAP negotiation, optional SASL PLAIN, and NICK/USER
// until the welcome numeric arrives. Messages the handshake does not
// consume are forwarded to Inbound so the state tracker sees the full
// registration burst.
func (m *Manager) register(conn net.Conn, reader *bufio.Reader) error {
	send := func(msg *irc.Message) error {
		if err := writeMessage(conn, msg); err != nil {
			return &TransportError{Op: "write", Err: err}
		}
		return nil
	}

	if err := send(irc.CapLS("302")); err != nil {
		return err
	}
	if m.cfg.Password != "" {
		if err := send(irc.Pass(m.cfg.Password)); err != nil {
			return err
		}
	}
	if err := send(irc.Nick(m.cfg.Nick)); err != nil {
		return err
	}
	if err := send(irc.User(m.cfg.User, m.cfg.Realname)); err != nil {
		return err
	}

	wantSASL := m.cfg.SASLUser != "" && m.cfg.SASLPassword != ""
	advertised := map[string]bool{}
	acked := map[string]bool{}

	for {
		msg, err := readMessage(reader)
		if err != nil {
			return &TransportError{Op: "read", Err: err}
		}
		if msg == nil {
			continue
		}

		switch msg.Command {
		case irc.CmdCap:
			switch msg.Params.Get(2) {
			case "LS":
				more := msg.Params.Get(3) == "*"
				for _, tok := range strings.Fields(msg.Params.Trailing()) {
					name, _, _ := strings.Cut(tok, "=")
					advertised[name] = true
				}
				if more {
					continue
				}
				want := append([]string{}, wantedCaps...)
				if wantSASL {
					want = append(want, "sasl")
				}
				var req []string
				for _, c := range want {
					if advertised[c] {
						req = append(req, c)
					}
				}
				if len(req) == 0 {
					if err := send(irc.CapEnd()); err != nil {
						return err
					}
					continue
				}
				if err := send(irc.CapReq(strings.Join(req, " "))); err != nil {
					return err
				}
			case "ACK":
				for _, c := range strings.Fields(msg.Params.Trailing()) {
					acked[strings.TrimPrefix(c, "-")] = true
				}
				if acked["sasl"] && wantSASL {
					if err := send(irc.AuthenticatePlain()); err != nil {
						return err
					}
					continue
				}
				if err := send(irc.CapEnd()); err != nil {
					return err
				}
			case "NAK":
				if err := send(irc.CapEnd()); err != nil {
					return err
				}
			}

		case irc.CmdAuthenticate:
			if msg.Params.Get(1) == "+" {
				if err := send(irc.AuthenticatePayload(m.cfg.SASLUser, m.cfg.SASLPassword)); err != nil {
					return err
				}
			}

		case irc.RplSaslSuccess, irc.RplLoggedIn:
			if msg.Command == irc.RplSaslSuccess {
				if err := send(irc.CapEnd()); err != nil {
					return err
				}
			}

		case irc.ErrSaslFail, irc.ErrSaslTooLong, irc.ErrSaslAborted, irc.ErrSaslAlready:
			return &RegistrationError{Code: msg.Command, Reason: msg.Params.Trailing()}

		case irc.ErrErroneusNickname, irc.ErrNicknameInUse, irc.ErrPasswdMismatch, irc.ErrYoureBanned:
			return &RegistrationError{Code: msg.Command, Reason: msg.Params.Trailing()}

		case irc.CmdPing:
			if err := send(irc.Pong(msg.Params.Get(1))); err != nil {
				return err
			}

		case irc.CmdError:
			// The server refused the registration outright; retrying
			// would only repeat the refusal.
			return &RegistrationError{Code: irc.CmdError, Reason: msg.Params.Trailing()}

		case irc.RplWelcome:
			m.mu.Lock()
			m.caps = acked
			m.mu.Unlock()
			m.deliver(msg)
			return nil

		default:
			m.deliver(msg)
		}
	}
}

// readLoop parses inbound lines and delivers them. Server PINGs are
// answered on the priority lane and never reach the session.
func (m *Manager) readLoop(conn net.Conn, reader *bufio.Reader, errc chan<- error, done <-chan struct{}) {
	for {
		conn.SetReadDeadline(time.Now().Add(3 * m.cfg.PingInterval))
		msg, err := readMessage(reader)
		if err != nil {
			select {
			case errc <- &TransportError{Op: "read", Err: err}:
			case <-done:
			}
			return
		}
		if msg == nil {
			continue
		}

		switch msg.Command {
		case irc.CmdPing:
			select {
			case m.pongs <- irc.Pong(msg.Params.Get(1)):
			case <-done:
				return
			}
		case irc.CmdError:
			select {
			case errc <- &TransportError{Op: "read", Err: errors.New(msg.Params.Trailing())}:
			case <-done:
			}
			return
		default:
			m.deliver(msg)
		}
	}
}

// writeLoop drains the priority lane ahead of the throttled queue, so
// keepalive replies are never stuck behind flooded chat.
func (m *Manager) writeLoop(ctx context.Context, conn net.Conn, errc chan<- error, done <-chan struct{}) {
	limiter := rate.NewLimiter(m.cfg.MessageRate, m.cfg.MessageBurst)
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	write := func(msg *irc.Message) bool {
		if err := writeMessage(conn, msg); err != nil {
			select {
			case errc <- &TransportError{Op: "write", Err: err}:
			case <-done:
			}
			return false
		}
		return true
	}

	for {
		select {
		case msg := <-m.pongs:
			if !write(msg) {
				return
			}
			continue
		default:
		}

		select {
		case msg := <-m.pongs:
			if !write(msg) {
				return
			}
		case <-ticker.C:
			if !write(irc.Ping(strconv.FormatInt(time.Now().Unix(), 10))) {
				return
			}
		case msg := <-m.sendq:
			// Keep serving the priority lane while this message waits
			// for a token.
			delay := limiter.Reserve().Delay()
			if delay > 0 {
				timer := time.NewTimer(delay)
			wait:
				for {
					select {
					case p := <-m.pongs:
						if !write(p) {
							timer.Stop()
							return
						}
					case <-timer.C:
						break wait
					case <-ctx.Done():
						timer.Stop()
						return
					case <-done:
						timer.Stop()
						return
					}
				}
			}
			if !write(msg) {
				return
			}
		case <-ctx.Done():
			return
		case <-done:
			return
		}
	}
}

func (m *Manager) deliver(msg *irc.Message) {
	select {
	case m.inbound <- msg:
	case <-m.closed:
	}
}

func writeMessage(conn net.Conn, msg *irc.Message) error {
	wire, err := msg.Bytes()
	if err != nil {
		return err
	}
	_, err = conn.Write(wire)
	return err
}

// readMessage reads one line and parses it. Unparseable lines are
// logged and skipped rather than killing the connection; nil, nil
// signals a skip.
func readMessage(reader *bufio.Reader) (*irc.Message, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if strings.TrimRight(line, "\r\n") == "" {
		return nil, nil
	}
	msg, perr := irc.ParseLine([]byte(line))
	if perr != nil {
		log.Printf("[conn] dropping malformed line: %v", perr)
		return nil, nil
	}
	return msg, nil
}
