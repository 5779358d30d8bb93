package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/charlie/internal/protocol"
	"github.com/lox/charlie/internal/session"
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrConnClosed     = errors.New("connection closed")
)

const keepaliveNonce = "keepalive"

// Conn is one websocket connection to the house or a dealer. Everything it
// reads goes to its sink; the sink hears Lost once if the connection ends
// without Close being called.
type Conn struct {
	ws     *websocket.Conn
	sink   session.Sink
	send   chan *protocol.Message
	pongs  chan string
	logger *log.Logger
	clock  quartz.Clock
	opts   Options

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once
	pings     atomic.Uint64
}

func newConn(ws *websocket.Conn, sink session.Sink, logger *log.Logger, clock quartz.Clock, opts Options) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:     ws,
		sink:   sink,
		send:   make(chan *protocol.Message, opts.SendBuffer),
		pongs:  make(chan string, 8),
		logger: logger,
		clock:  clock,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	ws.SetPongHandler(func(appData string) error {
		select {
		case c.pongs <- appData:
		default:
		}
		return nil
	})
	return c
}

func (c *Conn) start() {
	g, gctx := errgroup.WithContext(c.ctx)
	g.Go(c.readPump)
	g.Go(func() error { return c.writePump(gctx) })
	if c.opts.Keepalive > 0 {
		g.Go(func() error { return c.keepalive(gctx) })
	}

	go func() {
		err := g.Wait()
		c.cancel()
		_ = c.ws.Close()
		close(c.done)

		if c.closing.Load() {
			return
		}
		if err == nil {
			err = ErrConnClosed
		}
		c.logger.Error("Connection lost", "error", err)
		c.sink.Lost(err)
	}()
}

// Send queues msg for the write pump. It never blocks.
func (c *Conn) Send(msg *protocol.Message) error {
	if c.closing.Load() {
		return ErrConnClosed
	}
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Ping sends a ping frame and waits for the matching pong
func (c *Conn) Ping(ctx context.Context) error {
	nonce := strconv.FormatUint(c.pings.Add(1), 10)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.opts.WriteTimeout)
	}
	if err := c.ws.WriteControl(websocket.PingMessage, []byte(nonce), deadline); err != nil {
		return fmt.Errorf("write ping: %w", err)
	}

	for {
		select {
		case got := <-c.pongs:
			if got == nonce {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrConnClosed
		}
	}
}

// Close sends a close frame and waits for the pumps to stop, giving up after
// twice the write timeout. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.cancel()
		if c.wait(c.opts.WriteTimeout, "close") {
			c.logger.Debug("Connection closed")
			return
		}
		_ = c.ws.Close()
		if !c.wait(c.opts.WriteTimeout, "abandon") {
			c.logger.Warn("Connection did not stop in time")
			return
		}
		c.logger.Debug("Connection closed")
	})
	return nil
}

// wait reports whether the pumps stopped within d
func (c *Conn) wait(d time.Duration, tag string) bool {
	timer := c.clock.NewTimer(d, "client", tag)
	defer timer.Stop()

	select {
	case <-c.done:
		return true
	case <-timer.C:
		return false
	}
}

// Done is closed once the connection has stopped
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) readPump() error {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.closing.Load() {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return fmt.Errorf("read: %w", err)
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Dropping undecodable frame", "error", err, "bytes", len(data))
			continue
		}

		c.logger.Debug("Received message", "type", msg.Type)
		c.sink.Deliver(c.ctx, &msg)
	}
}

func (c *Conn) writePump(ctx context.Context) error {
	defer func() {
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Error("Failed to write message", "type", msg.Type, "error", err)
				return fmt.Errorf("write %s: %w", msg.Type, err)
			}
			c.logger.Debug("Sent message", "type", msg.Type)

		case <-ctx.Done():
			if c.closing.Load() {
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(c.opts.WriteTimeout))
			}
			return nil
		}
	}
}

func (c *Conn) keepalive(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.opts.Keepalive, "client", "keepalive")
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, []byte(keepaliveNonce), deadline); err != nil {
				return fmt.Errorf("keepalive: %w", err)
			}
			c.logger.Debug("Keepalive ping sent")
		case <-ctx.Done():
			return nil
		}
	}
}

// WebsocketURL turns an http(s) or ws(s) address into a websocket URL with
// the given path. A path already present in raw is kept.
func WebsocketURL(raw, path string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", raw)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = path
	}
	return u.String(), nil
}
