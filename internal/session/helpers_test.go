package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/charlie/internal/card"
	"github.com/lox/charlie/internal/hand"
	"github.com/lox/charlie/internal/protocol"
)

const dealerURL = "ws://dealer.test:9000/dealer"

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// fakeLink records what the handler sends
type fakeLink struct {
	mu      sync.Mutex
	sink    Sink
	sent    []*protocol.Message
	closed  bool
	pingErr error
	sendErr error
}

func (l *fakeLink) Send(msg *protocol.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("link closed")
	}
	if l.sendErr != nil {
		return l.sendErr
	}
	l.sent = append(l.sent, msg)
	return nil
}

func (l *fakeLink) Ping(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pingErr
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeLink) messages() []*protocol.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*protocol.Message(nil), l.sent...)
}

// push delivers ev to the handler as if the dealer had sent it
func (l *fakeLink) push(t *testing.T, ev protocol.Event) {
	t.Helper()
	msg, err := protocol.Encode(ev)
	require.NoError(t, err)
	l.sink.Deliver(context.Background(), msg)
}

// fakeDialer hands out fakeLinks. Dial errors and ping failures are
// consumed in order, one per attempt.
type fakeDialer struct {
	mu       sync.Mutex
	urls     []string
	links    []*fakeLink
	dialErrs []error
	pingErrs []error
}

func (d *fakeDialer) Dial(ctx context.Context, url string, sink Sink) (Link, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.urls = append(d.urls, url)
	if len(d.dialErrs) > 0 {
		err := d.dialErrs[0]
		d.dialErrs = d.dialErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	link := &fakeLink{sink: sink}
	if len(d.pingErrs) > 0 {
		link.pingErr = d.pingErrs[0]
		d.pingErrs = d.pingErrs[1:]
	}
	d.links = append(d.links, link)
	return link, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) link(i int) *fakeLink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.links[i]
}

func (d *fakeDialer) last() *fakeLink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.links[len(d.links)-1]
}

// recorder is a Presenter that remembers every call
type recorder struct {
	mu       sync.Mutex
	calls    []string
	failures []string
	shoeEnd  []int
	outcomes map[hand.Hid]hand.Outcome
	turns    []hand.Hid
	mine     []bool
	revealed []card.Card
}

func newRecorder() *recorder {
	return &recorder{outcomes: make(map[hand.Hid]hand.Outcome)}
}

func (r *recorder) record(format string, args ...interface{}) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) OnConnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("connected")
}

func (r *recorder) OnConnectionFailed(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("connection_failed")
	r.failures = append(r.failures, reason)
}

func (r *recorder) OnShoeStarting(hids []hand.Hid, shoeSize int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("shoe_starting %d %d", len(hids), shoeSize)
}

func (r *recorder) OnCardDealt(hid hand.Hid, c card.Card, v card.Values) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("card %s %s %d/%d", hid.Seat, c, v.Literal, v.Soft)
}

func (r *recorder) OnHoleCardRevealed(hid hand.Hid, c card.Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("revealed %s %s", hid.Seat, c)
	r.revealed = append(r.revealed, c)
}

func (r *recorder) OnTurn(hid hand.Hid, mine bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("turn %s", hid.Seat)
	r.turns = append(r.turns, hid)
	r.mine = append(r.mine, mine)
}

func (r *recorder) OnOutcome(hid hand.Hid, o hand.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("outcome %s %s", hid.Seat, o)
	r.outcomes[hid] = o
}

func (r *recorder) OnShoeEnding(shoeSize int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("shoe_ending %d", shoeSize)
	r.shoeEnd = append(r.shoeEnd, shoeSize)
}

func (r *recorder) OnNotice(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("notice %s", text)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) failureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

type harness struct {
	h      *Handler
	dialer *fakeDialer
	ui     *recorder
}

func newHarness(t *testing.T, cfg Config, clock quartz.Clock) *harness {
	t.Helper()
	dialer := &fakeDialer{}
	ui := newRecorder()
	if clock == nil {
		clock = quartz.NewReal()
	}
	h := New(cfg, dialer, ui, quietLogger(), clock)
	t.Cleanup(func() { _ = h.Close() })
	return &harness{h: h, dialer: dialer, ui: ui}
}

// connect drives the handler to Ready through a Ready event
func (hs *harness) connect(t *testing.T) *fakeLink {
	t.Helper()
	require.NoError(t, hs.h.Dispatch(protocol.Ready{Host: "dealer.test", Port: 9000}))
	require.Equal(t, Ready, hs.h.State())
	return hs.dialer.last()
}

func (hs *harness) startShoe(t *testing.T, size int, hids ...hand.Hid) {
	t.Helper()
	require.NoError(t, hs.h.Dispatch(protocol.ShoeStart{Hids: hids, ShoeSize: size}))
	require.Equal(t, InRound, hs.h.State())
}

func (hs *harness) deal(t *testing.T, hid hand.Hid, c string, literal, soft int) {
	t.Helper()
	require.NoError(t, hs.h.Dispatch(protocol.Deal{
		Hid:    hid,
		Card:   card.MustParse(c),
		Values: card.Values{Literal: literal, Soft: soft},
	}))
}

func messageTypes(msgs []*protocol.Message) []protocol.MessageType {
	out := make([]protocol.MessageType, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}
