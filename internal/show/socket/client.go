// Package socket owns the websocket lifecycle for a live show: connect,
// disconnect, room join/leave, and automatic rejoin-on-reconnect with
// suppression windows so a stale reconnect can never rejoin a room the viewer
// just left.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/events"
)

// ConnState is the connection lifecycle phase.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrNotConnected is returned by emits attempted while the socket is down.
// These are expected no-ops, surfaced so the caller can toast and retry.
var ErrNotConnected = errors.New("socket not connected")

// Identity is the viewer identity attached to room membership changes. It is
// resolved fresh at emit time via IdentityFunc, never cached.
type Identity struct {
	UserID   string
	UserName string
}

// IdentityFunc resolves the current viewer identity.
type IdentityFunc func() Identity

// Config holds websocket client configuration.
type Config struct {
	URL             string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReconnectWait   time.Duration
	MaxReconnect    time.Duration
	SendBuffer      int
	InboundBuffer   int
	RequestHeader   http.Header
	// RejoinSuppress is how long after a room switch the auto-rejoin on
	// reconnect stays suppressed.
	RejoinSuppress time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
		ReconnectWait:  time.Second,
		MaxReconnect:   30 * time.Second,
		SendBuffer:     64,
		InboundBuffer:  256,
		RejoinSuppress: 2 * time.Second,
	}
}

// Client is a reconnecting websocket client for one show session.
type Client struct {
	id       string
	cfg      Config
	dialer   *websocket.Dialer
	clock    clockwork.Clock
	identity IdentityFunc

	mu            sync.Mutex
	conn          *websocket.Conn
	state         ConnState
	currentRoomID string
	joined        bool

	// Short-lived suppression flags, cleared on the very next connect or
	// join. They keep a stale reconnect from replaying a join the viewer
	// did not ask for.
	manualConnect bool
	leavingRoom   bool
	switchedAt    time.Time

	send    chan events.Envelope
	inbound chan events.Envelope

	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a client. identity must not be nil.
func NewClient(cfg Config, clk clockwork.Clock, identity IdentityFunc) *Client {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Client{
		id:       uuid.New().String(),
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		clock:    clk,
		identity: identity,
		state:    StateDisconnected,
		send:     make(chan events.Envelope, cfg.SendBuffer),
		inbound:  make(chan events.Envelope, cfg.InboundBuffer),
	}
}

// Inbound delivers decoded frames. Closed when the client shuts down.
func (c *Client) Inbound() <-chan events.Envelope { return c.inbound }

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentRoomID returns the joined room id, empty when none.
func (c *Client) CurrentRoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentRoomID
}

// Connect starts the connection loop. The manual-connect flag suppresses the
// auto-rejoin on this first connect; it is cleared as soon as the connect
// completes.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.manualConnect = true
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(ctx)
}

// Close tears the client down and closes the inbound channel.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// run dials, pumps, and redials with capped exponential backoff.
func (c *Client) run(ctx context.Context) {
	defer close(c.inbound)
	defer close(c.done)

	wait := c.cfg.ReconnectWait
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.RequestHeader)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("url", c.cfg.URL).Dur("retry_in", wait).Msg("socket dial failed")
			select {
			case <-ctx.Done():
				return
			case <-c.clock.After(wait):
			}
			if wait *= 2; wait > c.cfg.MaxReconnect {
				wait = c.cfg.MaxReconnect
			}
			continue
		}
		wait = c.cfg.ReconnectWait

		c.onConnected(conn)
		c.pump(ctx, conn)
		c.onDisconnected(conn)

		if ctx.Err() != nil {
			return
		}
		log.Info().Str("connection_id", c.id).Msg("socket disconnected, reconnecting")
	}
}

// onConnected installs the new conn and replays room membership. The
// auto-rejoin fires only when a room is held and no suppression flag is set;
// both flags expire here, on the connect that follows them.
func (c *Client) onConnected(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected

	rejoinRoom := ""
	suppressed := c.manualConnect || c.leavingRoom ||
		(!c.switchedAt.IsZero() && c.clock.Now().Sub(c.switchedAt) < c.cfg.RejoinSuppress)
	if c.currentRoomID != "" && !suppressed {
		rejoinRoom = c.currentRoomID
	}
	c.manualConnect = false
	c.leavingRoom = false
	c.mu.Unlock()

	log.Info().Str("connection_id", c.id).Str("url", c.cfg.URL).Msg("socket connected")

	if rejoinRoom != "" {
		id := c.identity()
		if err := c.Emit(events.EventJoinRoom, rejoinRoom, events.RoomIdentity{
			RoomID:   rejoinRoom,
			UserID:   id.UserID,
			UserName: id.UserName,
		}); err != nil {
			log.Warn().Err(err).Str("room_id", rejoinRoom).Msg("auto-rejoin emit failed")
		} else {
			c.mu.Lock()
			c.joined = true
			c.mu.Unlock()
			log.Info().Str("room_id", rejoinRoom).Msg("rejoined room after reconnect")
		}
	}
}

func (c *Client) onDisconnected(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.state = StateDisconnected
		c.joined = false
	}
	c.mu.Unlock()
}

// pump runs the read and write loops for one connection generation and
// returns when either fails.
func (c *Client) pump(ctx context.Context, conn *websocket.Conn) {
	connDone := make(chan struct{})

	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			case <-connDone:
				return
			case env := <-c.send:
				conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				if err := conn.WriteJSON(env); err != nil {
					log.Error().Err(err).Str("event", env.Event).Msg("socket write failed")
					conn.Close()
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(c.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.Warn().Err(err).Str("connection_id", c.id).Msg("socket read failed")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		var env events.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Msg("dropping undecodable socket frame")
			continue
		}
		select {
		case c.inbound <- env:
		default:
			log.Warn().Str("event", env.Event).Msg("inbound buffer full, dropping frame")
		}
	}
	close(connDone)
}

// Emit queues an envelope for sending. Fails fast with ErrNotConnected while
// the socket is down rather than silently queueing.
func (c *Client) Emit(event, roomID string, data any) error {
	c.mu.Lock()
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected {
		log.Warn().Str("event", event).Msg("emit while disconnected, dropped")
		return ErrNotConnected
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	env := events.Envelope{Event: event, RoomID: roomID, Data: raw}
	select {
	case c.send <- env:
		return nil
	default:
		return fmt.Errorf("send %s: buffer full", event)
	}
}

// JoinRoom joins a room with a freshly resolved identity. Joining the room
// already held is an idempotent no-op with no duplicate emit. Joining a
// different room opens the rejoin-suppression window so a racing reconnect
// cannot resurrect membership in the old room.
func (c *Client) JoinRoom(roomID string) error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		log.Warn().Str("room_id", roomID).Msg("join-room while disconnected, ignored")
		return ErrNotConnected
	}
	if c.currentRoomID == roomID && c.joined {
		c.mu.Unlock()
		log.Debug().Str("room_id", roomID).Msg("already joined, skipping duplicate join")
		return nil
	}
	if c.currentRoomID != "" && c.currentRoomID != roomID {
		c.switchedAt = c.clock.Now()
	}
	c.currentRoomID = roomID
	c.joined = true
	c.leavingRoom = false
	c.mu.Unlock()

	id := c.identity()
	return c.Emit(events.EventJoinRoom, roomID, events.RoomIdentity{
		RoomID:   roomID,
		UserID:   id.UserID,
		UserName: id.UserName,
	})
}

// LeaveRoom leaves a room. currentRoomID is cleared only while it still
// matches the room being left, which guards against overwrite races during
// rapid room switching.
func (c *Client) LeaveRoom(roomID string) error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		log.Warn().Str("room_id", roomID).Msg("leave-room while disconnected, ignored")
		return ErrNotConnected
	}
	c.leavingRoom = true
	if c.currentRoomID == roomID {
		c.currentRoomID = ""
		c.joined = false
	}
	c.mu.Unlock()

	id := c.identity()
	return c.Emit(events.EventLeaveRoom, roomID, events.RoomIdentity{
		RoomID:   roomID,
		UserID:   id.UserID,
		UserName: id.UserName,
	})
}
