package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/lox/charlie/internal/protocol"
	"github.com/lox/charlie/internal/session"
)

// Options tunes the websocket transport
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// Keepalive is the ping interval; zero disables keepalive pings
	Keepalive  time.Duration
	SendBuffer int
}

// DefaultOptions returns the transport defaults
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     10 * time.Second,
		Keepalive:        30 * time.Second,
		SendBuffer:       256,
	}
}

// Dialer opens websocket connections. It satisfies session.Dialer.
type Dialer struct {
	ws     websocket.Dialer
	opts   Options
	logger *log.Logger
	clock  quartz.Clock
}

// NewDialer creates a Dialer. Zero options fall back to DefaultOptions.
func NewDialer(opts Options, logger *log.Logger, clock quartz.Clock) *Dialer {
	defaults := DefaultOptions()
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaults.SendBuffer
	}
	if clock == nil {
		clock = quartz.NewReal()
	}

	return &Dialer{
		ws: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		opts:   opts,
		logger: logger.WithPrefix("client"),
		clock:  clock,
	}
}

// Dial connects to url and starts delivering its messages to sink
func (d *Dialer) Dial(ctx context.Context, url string, sink session.Sink) (session.Link, error) {
	return d.dial(ctx, url, sink)
}

func (d *Dialer) dial(ctx context.Context, url string, sink session.Sink) (*Conn, error) {
	d.logger.Info("Connecting", "url", url)

	ws, resp, err := d.ws.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w (status %s)", url, err, resp.Status)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	conn := newConn(ws, sink, d.logger.With("url", url), d.clock, d.opts)
	conn.start()

	d.logger.Info("Connected", "url", url)
	return conn, nil
}

// Login connects to the house and announces the player. The house replies
// on sink, normally with a ready message naming the dealer.
func (d *Dialer) Login(ctx context.Context, url, name, localAddr string, sink session.Sink) (*Conn, error) {
	conn, err := d.dial(ctx, url, sink)
	if err != nil {
		return nil, err
	}

	msg, err := protocol.NewLogin(name, localAddr)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.Send(msg); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send login: %w", err)
	}

	d.logger.Info("Logged in", "player", name)
	return conn, nil
}
