package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

const (
	opDispatch            = 0
	opHeartbeat           = 1
	opIdentify            = 2
	opResume              = 6
	opReconnect           = 7
	opInvalidSession      = 9
	opHello               = 10
	opHeartbeatAck        = 11
	dispatchReady         = "READY"
	closeAuthFailed       = 4004
	closeInvalidShard     = 4010
	closeShardingRequired = 4011
	closeInvalidVersion   = 4012
	closeInvalidIntents   = 4013
	closeDisallowedIntent = 4014

	// A session that lived this long resets the reconnect backoff.
	healthySession = time.Minute
)

// Intents the pipeline needs.
const (
	IntentGuilds                = 1 << 0
	IntentGuildMembers          = 1 << 1
	IntentGuildVoiceStates      = 1 << 7
	IntentGuildMessages         = 1 << 9
	IntentGuildMessageReactions = 1 << 10
	IntentDirectMessages        = 1 << 12
	IntentMessageContent        = 1 << 15
	IntentGuildScheduledEvents  = 1 << 16

	DefaultIntents = IntentGuilds | IntentGuildMembers | IntentGuildVoiceStates |
		IntentGuildMessages | IntentGuildMessageReactions | IntentDirectMessages |
		IntentMessageContent | IntentGuildScheduledEvents
)

var (
	errReconnect = errors.New("gateway requested reconnect")
	errZombie    = errors.New("heartbeat not acknowledged")
)

// DispatchFunc receives every dispatch in sequence order. It must not block
// for long: the read loop waits for it.
type DispatchFunc func(ctx context.Context, name string, data json.RawMessage)

type payload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s"`
	T  string          `json:"t"`
}

type outbound struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

// Gateway is a single-shard gateway session that resumes or re-identifies
// after connection loss.
type Gateway struct {
	url     string
	token   string
	intents int
	logger  *slog.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	seq       atomic.Int64
	sessionID string
	resumeURL string

	cancel context.CancelFunc
	done   chan struct{}
}

func NewGateway(url, token string, intents int, logger *slog.Logger) *Gateway {
	return &Gateway{
		url:     url,
		token:   token,
		intents: intents,
		logger:  logger.With("component", "discord_gateway"),
	}
}

// Start connects in the background and keeps the session alive until Stop.
func (g *Gateway) Start(handler DispatchFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})
	go g.run(ctx, handler)
}

// Stop closes the session and waits for the read loop to exit.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.cancel == nil {
		return nil
	}
	g.cancel()
	g.closeConn(websocket.CloseNormalClosure)

	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gateway stop: %w", ctx.Err())
	}
}

func (g *Gateway) run(ctx context.Context, handler DispatchFunc) {
	defer close(g.done)

	bo := newReconnectBackOff()
	for {
		started := time.Now()
		err := g.session(ctx, handler)
		if ctx.Err() != nil {
			return
		}
		if fatal(err) {
			g.logger.Error("GATEWAY_FATAL_CLOSE", "err", err)
			return
		}

		if time.Since(started) > healthySession {
			bo.Reset()
		}
		wait := bo.NextBackOff()
		g.logger.Warn("GATEWAY_RECONNECTING", "err", err, "wait_ms", wait.Milliseconds(), "resumable", g.sessionID != "")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// newReconnectBackOff doubles from one second up to a minute, with jitter.
func newReconnectBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.MaxInterval = time.Minute
	bo.Reset()
	return bo
}

func (g *Gateway) session(ctx context.Context, handler DispatchFunc) error {
	url := g.url
	if g.sessionID != "" && g.resumeURL != "" {
		url = g.resumeURL + "?v=10&encoding=json"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	g.writeMu.Lock()
	g.conn = conn
	g.writeMu.Unlock()
	defer g.closeConn(websocket.CloseServiceRestart)

	var hello payload
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var h struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.D, &h); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}

	if err := g.handshake(); err != nil {
		return err
	}

	sessCtx, stop := context.WithCancel(ctx)
	defer stop()

	var acked atomic.Bool
	acked.Store(true)
	go g.heartbeat(sessCtx, time.Duration(h.HeartbeatInterval)*time.Millisecond, &acked)

	for {
		var p payload
		if err := conn.ReadJSON(&p); err != nil {
			if !acked.Load() {
				return errZombie
			}
			return fmt.Errorf("read: %w", err)
		}

		switch p.Op {
		case opDispatch:
			if p.S != nil {
				g.seq.Store(*p.S)
			}
			if p.T == dispatchReady {
				g.onReady(p.D)
			}
			handler(ctx, p.T, p.D)
		case opHeartbeat:
			if err := g.send(opHeartbeat, g.lastSeq()); err != nil {
				return err
			}
		case opHeartbeatAck:
			acked.Store(true)
		case opReconnect:
			return errReconnect
		case opInvalidSession:
			var resumable bool
			_ = json.Unmarshal(p.D, &resumable)
			if !resumable {
				g.sessionID = ""
				g.seq.Store(0)
			}
			return fmt.Errorf("invalid session (resumable=%t)", resumable)
		}
	}
}

func (g *Gateway) handshake() error {
	if g.sessionID != "" {
		g.logger.Info("GATEWAY_RESUMING", "session_id", g.sessionID, "seq", g.seq.Load())
		return g.send(opResume, map[string]any{
			"token":      g.token,
			"session_id": g.sessionID,
			"seq":        g.seq.Load(),
		})
	}
	return g.send(opIdentify, map[string]any{
		"token":   g.token,
		"intents": g.intents,
		"properties": map[string]string{
			"os":      "linux",
			"browser": "discord-tracker-service",
			"device":  "discord-tracker-service",
		},
	})
}

func (g *Gateway) onReady(data json.RawMessage) {
	var r struct {
		SessionID        string `json:"session_id"`
		ResumeGatewayURL string `json:"resume_gateway_url"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		g.logger.Warn("GATEWAY_READY_MALFORMED", "err", err)
		return
	}
	g.sessionID = r.SessionID
	g.resumeURL = r.ResumeGatewayURL
	g.logger.Info("GATEWAY_READY", "session_id", r.SessionID)
}

// heartbeat closes the connection when the previous beat went unacknowledged,
// which unblocks the read loop and forces a resume.
func (g *Gateway) heartbeat(ctx context.Context, interval time.Duration, acked *atomic.Bool) {
	if interval <= 0 {
		return
	}
	// The first beat is jittered to spread reconnect storms.
	timer := time.NewTimer(time.Duration(rand.Int64N(int64(interval))))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if !acked.Swap(false) {
			g.logger.Warn("GATEWAY_HEARTBEAT_MISSED")
			g.closeConn(websocket.CloseServiceRestart)
			return
		}
		if err := g.send(opHeartbeat, g.lastSeq()); err != nil {
			g.logger.Warn("GATEWAY_HEARTBEAT_FAILED", "err", err)
			return
		}
		timer.Reset(interval)
	}
}

func (g *Gateway) lastSeq() any {
	if s := g.seq.Load(); s > 0 {
		return s
	}
	return nil
}

func (g *Gateway) send(op int, d any) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if g.conn == nil {
		return errors.New("gateway not connected")
	}
	_ = g.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := g.conn.WriteJSON(outbound{Op: op, D: d}); err != nil {
		return fmt.Errorf("write op %d: %w", op, err)
	}
	return nil
}

func (g *Gateway) closeConn(code int) {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if g.conn == nil {
		return
	}
	deadline := time.Now().Add(time.Second)
	_ = g.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
	_ = g.conn.Close()
	g.conn = nil
}

// fatal reports close codes that no reconnect can fix.
func fatal(err error) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Code {
	case closeAuthFailed, closeInvalidShard, closeShardingRequired,
		closeInvalidVersion, closeInvalidIntents, closeDisallowedIntent:
		return true
	}
	return false
}
