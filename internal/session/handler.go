package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/charlie/internal/card"
	"github.com/lox/charlie/internal/hand"
	"github.com/lox/charlie/internal/protocol"
)

const houseSession = "house"

// Config bounds how hard the handler tries to reach a dealer
type Config struct {
	ConnectTimeout    time.Duration
	RequestTimeout    time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	InboxSize         int
}

// DefaultConfig allows 5s to connect and 3s for the dealer to answer a ping
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    5 * time.Second,
		RequestTimeout:    3 * time.Second,
		ReconnectAttempts: 3,
		ReconnectDelay:    time.Second,
		InboxSize:         256,
	}
}

// Stats counts what the handler dropped or flagged
type Stats struct {
	Anomalies         map[AnomalyKind]int
	Unsolicited       int
	OutcomeOverwrites int
	Sessions          int
}

type inbound struct {
	session string
	msg     *protocol.Message
	err     error
}

// Handler owns the client side of a game session. Inbound dealer events are
// applied one at a time; player intents may arrive from any goroutine.
type Handler struct {
	cfg     Config
	dialer  Dialer
	ui      Presenter
	logger  *log.Logger
	clock   quartz.Clock
	tracker *hand.Tracker
	inbox   chan inbound

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	dispatchMu sync.Mutex // one inbound event at a time
	connectMu  sync.Mutex // one session being established at a time

	mu          sync.RWMutex
	state       State
	link        Link
	sessionID   string
	dealerURL   string
	localAddr   string
	connectedAt time.Time
	lastTurn    hand.Hid
	pendingBet  hand.Hid
	ready       *signal
	closed      bool
	stats       Stats
}

// New creates a handler in the Disconnected state
func New(cfg Config, dialer Dialer, ui Presenter, logger *log.Logger, clock quartz.Clock) *Handler {
	defaults := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = 1
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaults.InboxSize
	}
	if ui == nil {
		ui = NopPresenter{}
	}
	if clock == nil {
		clock = quartz.NewReal()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		cfg:    cfg,
		dialer: dialer,
		ui:     ui,
		logger: logger.WithPrefix("session"),
		clock:  clock,
		inbox:  make(chan inbound, cfg.InboxSize),
		ctx:    ctx,
		cancel: cancel,
		ready:  newSignal(),
		stats:  Stats{Anomalies: make(map[AnomalyKind]int)},
	}
	h.tracker = hand.NewTracker(func(hid hand.Hid, c card.Card, v card.Values) {
		h.ui.OnCardDealt(hid, c, v)
	})
	return h
}

// State returns the current lifecycle state
func (h *Handler) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Hands returns a snapshot of every tracked hand
func (h *Handler) Hands() []hand.Hand {
	return h.tracker.Hands()
}

// Hand returns a snapshot of one tracked hand
func (h *Handler) Hand(hid hand.Hid) (hand.Hand, bool) {
	return h.tracker.Get(hid)
}

// ShoeSize returns the last known number of cards in the shoe
func (h *Handler) ShoeSize() int {
	return h.tracker.ShoeSize()
}

// Awaiting returns the hand the dealer most recently asked to act
func (h *Handler) Awaiting() (hand.Hid, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastTurn, !h.lastTurn.IsZero()
}

// ConnectedAt returns when the current session became usable
func (h *Handler) ConnectedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connectedAt
}

// DealerURL returns the address of the current or last dealer
func (h *Handler) DealerURL() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dealerURL
}

// SetLocalAddress records where the client can be reached
func (h *Handler) SetLocalAddress(addr string) {
	h.mu.Lock()
	h.localAddr = addr
	h.mu.Unlock()
}

// LocalAddress returns the address given to SetLocalAddress
func (h *Handler) LocalAddress() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.localAddr
}

// Stats returns a copy of the anomaly counters
func (h *Handler) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := h.stats
	out.Anomalies = make(map[AnomalyKind]int, len(h.stats.Anomalies))
	for k, v := range h.stats.Anomalies {
		out.Anomalies[k] = v
	}
	return out
}

// Ready returns a channel that is closed once the current session can be
// used. A session started after the channel closed gets a new one.
func (h *Handler) Ready() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready.done()
}

// WaitReady blocks until the current session is usable or ctx ends
func (h *Handler) WaitReady(ctx context.Context) error {
	h.mu.RLock()
	sig := h.ready
	h.mu.RUnlock()
	return sig.wait(ctx)
}

// HouseSink returns the sink for the house connection. Messages on it are
// always accepted, whichever dealer session is current.
func (h *Handler) HouseSink() Sink {
	return &sink{h: h, id: houseSession}
}

type sink struct {
	h  *Handler
	id string
}

func (s *sink) Deliver(ctx context.Context, msg *protocol.Message) {
	s.h.enqueue(ctx, inbound{session: s.id, msg: msg})
}

func (s *sink) Lost(err error) {
	if err == nil {
		err = errors.New("connection closed")
	}
	s.h.enqueue(context.Background(), inbound{session: s.id, err: err})
}

func (h *Handler) enqueue(ctx context.Context, in inbound) {
	select {
	case h.inbox <- in:
	case <-ctx.Done():
		h.logger.Debug("Dropping message from closing link", "session", in.session)
	case <-h.ctx.Done():
	}
}

// Run consumes inbound messages until ctx is done or the handler is closed
func (h *Handler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.ctx.Done():
			return nil
		case in := <-h.inbox:
			h.handleInbound(in)
		}
	}
}

func (h *Handler) handleInbound(in inbound) {
	// Wait out any session being established so its early messages are not
	// mistaken for stale ones.
	h.connectMu.Lock()
	h.mu.RLock()
	current := h.sessionID
	state := h.state
	h.mu.RUnlock()
	h.connectMu.Unlock()

	if in.session != houseSession && in.session != current {
		h.logger.Debug("Dropping message from superseded session", "session", in.session)
		return
	}

	if in.err != nil {
		h.linkLost(in.session, state, in.err)
		return
	}

	ev, err := protocol.Decode(in.msg)
	if err != nil {
		h.dispatchMu.Lock()
		defer h.dispatchMu.Unlock()
		_ = h.anomaly(AnomalyMalformed, in.msg.Type, hand.Hid{}, err)
		return
	}

	// Dispatch already logged and counted any anomaly
	_ = h.Dispatch(ev)
}

func (h *Handler) linkLost(session string, state State, err error) {
	if session == houseSession {
		h.logger.Warn("House connection lost", "error", err)
		if !state.Connected() {
			h.ui.OnConnectionFailed(fmt.Sprintf("house connection lost: %v", err))
		}
		return
	}

	h.mu.Lock()
	if h.sessionID != session {
		h.mu.Unlock()
		return
	}
	link := h.link
	h.link = nil
	h.sessionID = ""
	h.state = Disconnected
	h.lastTurn = hand.Hid{}
	h.mu.Unlock()

	if link != nil {
		_ = link.Close()
	}
	h.logger.Error("Dealer connection lost", "error", err)
	h.ui.OnConnectionFailed(fmt.Sprintf("connection lost: %v", err))
}

// Dispatch applies one dealer event. Anomalies are logged, counted and
// returned as *ProtocolError; they never stop the session.
func (h *Handler) Dispatch(ev protocol.Event) error {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	if h.isClosed() {
		return ErrClosed
	}

	switch e := ev.(type) {
	case protocol.Ready:
		return h.onReady(e)
	case protocol.ShoeStart:
		return h.onShoeStart(e)
	case protocol.Deal:
		return h.onDeal(e)
	case protocol.Turn:
		return h.onTurn(e)
	case protocol.Outcome:
		return h.onOutcome(e)
	case protocol.ShoeEnd:
		return h.onShoeEnd(e)
	case protocol.Notice:
		return h.onNotice(e)
	case protocol.Unknown:
		return h.anomaly(AnomalyUnknownType, e.Kind, hand.Hid{}, nil)
	case nil:
		return h.anomaly(AnomalyMalformed, "", hand.Hid{}, errors.New("nil event"))
	default:
		return h.anomaly(AnomalyUnknownType, ev.Type(), hand.Hid{}, fmt.Errorf("unhandled event %T", ev))
	}
}

func (h *Handler) onReady(e protocol.Ready) error {
	h.logger.Info("Received ready", "dealer", e.Addr())
	return h.Connect(h.ctx, e.URL())
}

func (h *Handler) onShoeStart(e protocol.ShoeStart) error {
	state := h.State()
	switch state {
	case Ready, RoundSettled:
	case InRound:
		h.logger.Warn("Shoe starting before the round settled", "hands", h.tracker.Len())
	default:
		return h.anomaly(AnomalyOutOfOrder, e.Type(), hand.Hid{}, nil)
	}

	h.logger.Info("Shoe starting", "shoeSize", e.ShoeSize, "hands", len(e.Hids))
	h.tracker.Reset(e.ShoeSize)

	opened := make([]hand.Hid, 0, len(e.Hids))
	for _, hid := range e.Hids {
		if err := h.tracker.Open(hid, ""); err != nil {
			_ = h.anomaly(AnomalyDuplicateHand, e.Type(), hid, err)
			continue
		}
		h.logger.Debug("Starting hand", "hid", hid)
		opened = append(opened, hid)
	}

	h.mu.Lock()
	if !h.advance(InRound) {
		h.mu.Unlock()
		h.logger.Debug("Link went away while the shoe was starting")
		return ErrNotConnected
	}
	h.lastTurn = hand.Hid{}
	h.pendingBet = hand.Hid{}
	h.mu.Unlock()

	h.ui.OnShoeStarting(opened, e.ShoeSize)
	return nil
}

func (h *Handler) onDeal(e protocol.Deal) error {
	if state := h.State(); state != InRound {
		return h.anomaly(AnomalyOutOfOrder, e.Type(), e.Hid, nil)
	}

	h.logger.Debug("Received card",
		"hid", e.Hid,
		"card", e.Card,
		"values", e.Values.String())

	if err := h.tracker.AppendCard(e.Hid, e.Card, e.Values); err != nil {
		return h.anomaly(AnomalyUnknownHand, e.Type(), e.Hid, err)
	}
	if e.Card.IsHole() {
		h.logger.Debug("Hole card dealt", "hid", e.Hid)
	}
	if size := h.tracker.ShoeSize(); size > 0 {
		h.tracker.SetShoeSize(size - 1)
	}
	return nil
}

func (h *Handler) onTurn(e protocol.Turn) error {
	if state := h.State(); state != InRound {
		return h.anomaly(AnomalyOutOfOrder, e.Type(), e.Hid, nil)
	}
	if err := h.tracker.SetPlaying(e.Hid); err != nil {
		return h.anomaly(AnomalyUnknownHand, e.Type(), e.Hid, err)
	}

	h.mu.Lock()
	h.lastTurn = e.Hid
	h.mu.Unlock()

	h.logger.Info("Turn", "hid", e.Hid)

	if current, ok := h.tracker.Get(e.Hid); ok && current.HasHoleCard() {
		revealed, err := h.tracker.Reveal(e.Hid)
		if err == nil {
			h.logger.Debug("Hole card revealed", "hid", e.Hid, "card", revealed)
			h.ui.OnHoleCardRevealed(e.Hid, revealed)
		}
	}

	h.ui.OnTurn(e.Hid, e.Hid.Seat == hand.You)
	return nil
}

func (h *Handler) onOutcome(e protocol.Outcome) error {
	state := h.State()
	if state != InRound && state != RoundSettled {
		return h.anomaly(AnomalyOutOfOrder, e.Type(), e.Hid, nil)
	}

	prev, err := h.tracker.SetOutcome(e.Hid, e.Kind)
	if err != nil {
		return h.anomaly(AnomalyUnknownHand, e.Type(), e.Hid, err)
	}

	h.logger.Info("Received outcome", "hid", e.Hid, "outcome", e.Kind)

	settled := h.tracker.Settled()

	h.mu.Lock()
	if prev != hand.None {
		h.stats.OutcomeOverwrites++
	}
	if h.lastTurn == e.Hid {
		h.lastTurn = hand.Hid{}
	}
	if settled {
		h.advance(RoundSettled)
	}
	h.mu.Unlock()

	if prev != hand.None {
		h.logger.Warn("Outcome overwritten", "hid", e.Hid, "previous", prev, "outcome", e.Kind)
	}

	h.ui.OnOutcome(e.Hid, e.Kind)
	return nil
}

func (h *Handler) onShoeEnd(e protocol.ShoeEnd) error {
	state := h.State()
	if state != InRound && state != RoundSettled {
		return h.anomaly(AnomalyOutOfOrder, e.Type(), hand.Hid{}, nil)
	}

	h.logger.Info("Shoe ending", "shoeSize", e.ShoeSize)
	h.tracker.SetShoeSize(e.ShoeSize)

	h.mu.Lock()
	if !h.advance(Ready) {
		h.mu.Unlock()
		h.logger.Debug("Link went away while the shoe was ending")
		return ErrNotConnected
	}
	h.lastTurn = hand.Hid{}
	h.mu.Unlock()

	h.ui.OnShoeEnding(e.ShoeSize)
	return nil
}

// advance moves to next unless the link was torn down while the event was
// being applied. Caller holds h.mu.
func (h *Handler) advance(next State) bool {
	if h.link == nil || !h.state.Connected() {
		return false
	}
	h.state = next
	return true
}

func (h *Handler) onNotice(e protocol.Notice) error {
	h.logger.Info("Dealer notice", "text", e.Text)
	h.ui.OnNotice(e.Text)
	return nil
}

func (h *Handler) anomaly(kind AnomalyKind, typ protocol.MessageType, hid hand.Hid, err error) error {
	h.mu.Lock()
	h.stats.Anomalies[kind]++
	state := h.state
	h.mu.Unlock()

	perr := &ProtocolError{Kind: kind, Type: typ, Hid: hid, State: state, Err: err}
	h.logger.Warn("Protocol anomaly",
		"kind", kind,
		"type", typ,
		"state", state,
		"hid", hid,
		"error", err)
	return perr
}

func (h *Handler) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Connect establishes a session with the dealer at url, superseding any
// existing one. Tracked hands are cleared so nothing leaks from the old
// session. Each attempt is bounded by the connect timeout and a liveness
// ping bounded by the request timeout.
func (h *Handler) Connect(ctx context.Context, url string) error {
	h.connectMu.Lock()
	defer h.connectMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	old := h.link
	oldID := h.sessionID
	h.link = nil
	h.sessionID = ""
	h.state = Connecting
	h.dealerURL = url
	h.lastTurn = hand.Hid{}
	h.pendingBet = hand.Hid{}
	if h.ready.fired() {
		h.ready = newSignal()
	}
	sig := h.ready
	h.mu.Unlock()

	h.tracker.Reset(0)

	if old != nil {
		h.logger.Info("Superseding dealer session", "session", oldID)
		if err := old.Close(); err != nil {
			h.logger.Debug("Error closing superseded link", "error", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= h.cfg.ReconnectAttempts; attempt++ {
		if attempt > 1 {
			if err := h.sleep(ctx, h.cfg.ReconnectDelay); err != nil {
				lastErr = err
				break
			}
		}

		id := uuid.NewString()
		link, err := h.dialOnce(ctx, url, id)
		if err != nil {
			lastErr = err
			h.logger.Warn("Dealer connection attempt failed",
				"url", url,
				"attempt", attempt,
				"of", h.cfg.ReconnectAttempts,
				"error", err)
			continue
		}

		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			_ = link.Close()
			return ErrClosed
		}
		h.link = link
		h.sessionID = id
		h.state = Ready
		h.connectedAt = h.clock.Now()
		h.stats.Sessions++
		h.mu.Unlock()

		h.logger.Info("Connected to dealer", "url", url, "session", id)
		sig.fire()
		h.ui.OnConnected()
		return nil
	}

	h.mu.Lock()
	if h.state == Connecting {
		h.state = Disconnected
	}
	h.mu.Unlock()

	cerr := &ConnectError{Addr: url, Attempts: h.cfg.ReconnectAttempts, Err: lastErr}
	h.logger.Error("Cannot reach dealer", "url", url, "error", lastErr)
	h.ui.OnConnectionFailed(cerr.Error())
	return cerr
}

func (h *Handler) dialOnce(ctx context.Context, url, id string) (Link, error) {
	dialCtx, cancel := context.WithTimeout(ctx, h.cfg.ConnectTimeout)
	defer cancel()

	link, err := h.dialer.Dial(dialCtx, url, &sink{h: h, id: id})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancelPing()

	if err := link.Ping(pingCtx); err != nil {
		_ = link.Close()
		return nil, fmt.Errorf("dealer inactive: %w", err)
	}
	return link, nil
}

func (h *Handler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := h.clock.NewTimer(d, "session", "reconnect")
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return ErrClosed
	}
}

// Disconnect tears down the current dealer link, if any. Tracked hands are
// left as they were.
func (h *Handler) Disconnect() error {
	h.mu.Lock()
	link := h.link
	h.link = nil
	h.sessionID = ""
	h.state = Disconnected
	h.lastTurn = hand.Hid{}
	h.mu.Unlock()

	if link == nil {
		return nil
	}
	h.logger.Info("Disconnecting from dealer")
	return link.Close()
}

// Close disconnects and stops Run. It is safe to call from any state and
// more than once.
func (h *Handler) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		h.cancel()
		err = h.Disconnect()
	})
	return err
}
