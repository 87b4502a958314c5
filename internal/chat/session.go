package chat

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"
)

// ConnState is the transport session's state machine value.
type ConnState int

const (
	Disconnected ConnState = iota
	Authenticating
	Connected
	// Closed is terminal: the conversation was closed by the caller and no
	// reconnect will be scheduled.
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "disconnected"
	}
}

// Conn is the subset of the websocket connection the session uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens the transport. The access token is already attached to the
// URL when it is called.
type Dialer func(ctx context.Context, wsURL string) (Conn, error)

// TokenSource fetches the short-lived credential attached to each connect
// attempt.
type TokenSource func(ctx context.Context) (string, error)

const (
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffCap  = 10 * time.Second
)

// Session owns one persistent connection for one conversation. It
// authenticates on connect, reconnects with backoff for as long as the
// conversation stays open, and multiplexes the inbound frames into a typed
// event stream.
type Session struct {
	wsURL  string
	tokens TokenSource
	dial   Dialer
	log    zerolog.Logger

	backoffBase time.Duration
	backoffCap  time.Duration

	mu     sync.Mutex
	state  ConnState
	conn   Conn
	events chan Event
	cancel context.CancelFunc
	opened bool

	// writeMu serializes WriteMessage calls; gorilla-style connections
	// forbid concurrent writers.
	writeMu sync.Mutex
}

// NewSession prepares a session for the given websocket URL. Nothing
// connects until Open.
func NewSession(wsURL string, tokens TokenSource, log zerolog.Logger) *Session {
	return &Session{
		wsURL:       wsURL,
		tokens:      tokens,
		dial:        defaultDial,
		log:         log,
		backoffBase: defaultBackoffBase,
		backoffCap:  defaultBackoffCap,
	}
}

func defaultDial(ctx context.Context, wsURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Open starts the session and returns its event stream. Idempotent: a
// session that is already running hands back the same stream. The stream is
// closed when the session ends for good.
func (s *Session) Open(ctx context.Context) <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return s.events
	}
	s.opened = true
	s.events = make(chan Event, 64)
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	return s.events
}

// State returns the current connection state.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send writes one outbound frame, fire-and-forget. When the transport is not
// connected the frame is dropped and logged; the caller's optimistic entry
// simply stays pending. Safe to call from any goroutine: the typing timer
// and the host's event loop both send.
func (s *Session) Send(out Outbound) {
	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()
	if state != Connected || conn == nil {
		s.log.Warn().Str("state", state.String()).Msg("send dropped, transport not connected")
		return
	}
	data, err := out.encode()
	if err != nil {
		s.log.Error().Err(err).Msg("encode outbound frame")
		return
	}
	s.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		s.log.Warn().Err(err).Msg("send failed")
	}
}

// Close ends the session permanently and cancels any pending reconnect.
func (s *Session) Close() {
	s.mu.Lock()
	cancel, conn := s.cancel, s.conn
	s.state = Closed
	s.conn = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
}

func (s *Session) run(ctx context.Context) {
	defer close(s.events)
	attempt := 0
	for {
		if ctx.Err() != nil {
			s.setState(Closed)
			return
		}
		s.setState(Authenticating)
		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.setState(Closed)
				return
			}
			delay := s.nextDelay(attempt)
			attempt++
			s.log.Warn().Err(err).Dur("retry_in", delay).Msg("connect failed")
			s.setState(Disconnected)
			if !s.sleep(ctx, delay) {
				return
			}
			continue
		}
		attempt = 0
		s.mu.Lock()
		s.conn = conn
		s.state = Connected
		s.mu.Unlock()
		s.emit(ctx, ConnectedEvent{})

		err = s.readLoop(ctx, conn)
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		if s.state == Connected {
			s.state = Disconnected
		}
		s.mu.Unlock()
		if ctx.Err() != nil {
			s.setState(Closed)
			return
		}
		s.log.Warn().Err(err).Msg("connection lost")
		s.emit(ctx, DisconnectedEvent{Err: err})
		delay := s.nextDelay(attempt)
		attempt++
		if !s.sleep(ctx, delay) {
			return
		}
	}
}

func (s *Session) connect(ctx context.Context) (Conn, error) {
	token, err := s.tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch ws token: %w", err)
	}
	sep := "?"
	if strings.Contains(s.wsURL, "?") {
		sep = "&"
	}
	return s.dial(ctx, s.wsURL+sep+"token="+url.QueryEscape(token))
}

func (s *Session) readLoop(ctx context.Context, conn Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := DecodeEvent(data)
		if err != nil {
			// Malformed or unrecognized frames are dropped, never fatal.
			s.log.Debug().Err(err).Msg("dropping frame")
			continue
		}
		s.emit(ctx, ev)
	}
}

func (s *Session) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *Session) setState(st ConnState) {
	s.mu.Lock()
	if s.state != Closed || st == Closed {
		s.state = st
	}
	s.mu.Unlock()
}

func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		s.setState(Closed)
		return false
	case <-t.C:
		return true
	}
}

// nextDelay picks a full-jitter delay under an exponential ceiling.
func (s *Session) nextDelay(attempt int) time.Duration {
	ceil := s.backoffCap
	if attempt < 31 {
		if d := s.backoffBase << uint(attempt); d < ceil {
			ceil = d
		}
	}
	return time.Duration(rand.Int63n(int64(ceil))) + 1
}
