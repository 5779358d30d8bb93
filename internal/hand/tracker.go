package hand

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lox/charlie/internal/card"
)

var (
	ErrDuplicateHand  = errors.New("hand already open")
	ErrUnknownHand    = errors.New("hand not open")
	ErrInvalidOutcome = errors.New("invalid outcome")
	ErrNoHoleCard     = errors.New("hand has no concealed card")
)

// Hand is the client's record of one hand: the cards in deal order, the
// totals the dealer last reported and the outcome once it is known.
type Hand struct {
	Hid     Hid
	Name    string
	Cards   []card.Card
	Values  card.Values
	Outcome Outcome
	Playing bool

	hole int // index of the concealed card, -1 when none
}

// Text renders "NAME: value" using the effective total
func (h Hand) Text() string {
	return fmt.Sprintf("%s: %d", h.Name, h.Values.Effective())
}

// IsBroke reports whether the hand has busted
func (h Hand) IsBroke() bool {
	return h.Values.IsBust()
}

// HasHoleCard reports whether one of the cards is still face down
func (h Hand) HasHoleCard() bool {
	return h.hole >= 0
}

func (h Hand) clone() Hand {
	h.Cards = append([]card.Card(nil), h.Cards...)
	return h
}

// CardListener is told about every card the tracker records
type CardListener func(hid Hid, c card.Card, v card.Values)

// Tracker records the hands of the current shoe. It never computes hand
// values itself; the dealer is authoritative for those.
type Tracker struct {
	mu       sync.RWMutex
	hands    map[Hid]*Hand
	order    []Hid
	shoeSize int
	onCard   CardListener
}

// NewTracker creates an empty tracker. listener may be nil.
func NewTracker(listener CardListener) *Tracker {
	return &Tracker{
		hands:  make(map[Hid]*Hand),
		onCard: listener,
	}
}

// Open creates an empty record for hid. Opening a hid twice in one shoe is
// an error and leaves the existing record untouched.
func (t *Tracker) Open(hid Hid, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.hands[hid]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHand, hid)
	}
	if name == "" {
		name = hid.Seat.String()
	}
	t.hands[hid] = &Hand{Hid: hid, Name: name, hole: -1}
	t.order = append(t.order, hid)
	return nil
}

// AppendCard adds a dealt card to hid and replaces its totals with the
// dealer's values.
func (t *Tracker) AppendCard(hid Hid, c card.Card, v card.Values) error {
	t.mu.Lock()
	h, ok := t.hands[hid]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownHand, hid)
	}
	if c.IsHole() {
		h.hole = len(h.Cards)
	}
	h.Cards = append(h.Cards, c)
	h.Values = v
	listener := t.onCard
	t.mu.Unlock()

	if listener != nil {
		listener(hid, c, v)
	}
	return nil
}

// Reveal turns the concealed card of hid face up in place and returns it
func (t *Tracker) Reveal(hid Hid) (card.Card, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.hands[hid]
	if !ok {
		return card.Card{}, fmt.Errorf("%w: %s", ErrUnknownHand, hid)
	}
	if h.hole < 0 {
		return card.Card{}, fmt.Errorf("%w: %s", ErrNoHoleCard, hid)
	}
	revealed := h.Cards[h.hole].Revealed()
	h.Cards[h.hole] = revealed
	h.hole = -1
	return revealed, nil
}

// SetOutcome records the terminal result for hid and returns the outcome it
// replaced. A second call overwrites the first; callers decide whether that
// matters.
func (t *Tracker) SetOutcome(hid Hid, o Outcome) (Outcome, error) {
	if o == None {
		return None, ErrInvalidOutcome
	}
	if _, ok := outcomeNames[o]; !ok {
		return None, fmt.Errorf("%w: %d", ErrInvalidOutcome, int(o))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.hands[hid]
	if !ok {
		return None, fmt.Errorf("%w: %s", ErrUnknownHand, hid)
	}
	prev := h.Outcome
	h.Outcome = o
	h.Playing = false
	return prev, nil
}

// SetPlaying marks hid as the hand whose action is expected
func (t *Tracker) SetPlaying(hid Hid) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.hands[hid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHand, hid)
	}
	for _, other := range t.hands {
		other.Playing = false
	}
	h.Playing = true
	return nil
}

// Reset forgets every hand and records the shoe size
func (t *Tracker) Reset(shoeSize int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.hands = make(map[Hid]*Hand)
	t.order = nil
	t.shoeSize = shoeSize
}

// ClearSeat forgets every hand played from seat and returns how many there
// were. The shoe size is kept.
func (t *Tracker) ClearSeat(seat Seat) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.order[:0]
	removed := 0
	for _, hid := range t.order {
		if hid.Seat == seat {
			delete(t.hands, hid)
			removed++
			continue
		}
		kept = append(kept, hid)
	}
	t.order = kept
	return removed
}

// SetShoeSize records the number of cards left in the shoe
func (t *Tracker) SetShoeSize(n int) {
	t.mu.Lock()
	t.shoeSize = n
	t.mu.Unlock()
}

// ShoeSize returns the last known shoe size
func (t *Tracker) ShoeSize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.shoeSize
}

// Has reports whether hid is open
func (t *Tracker) Has(hid Hid) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.hands[hid]
	return ok
}

// Get returns a copy of the record for hid
func (t *Tracker) Get(hid Hid) (Hand, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.hands[hid]
	if !ok {
		return Hand{}, false
	}
	return h.clone(), true
}

// Hands returns copies of every open hand in the order they were opened
func (t *Tracker) Hands() []Hand {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Hand, 0, len(t.order))
	for _, hid := range t.order {
		out = append(out, t.hands[hid].clone())
	}
	return out
}

// Len returns the number of open hands
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Settled reports whether every non-dealer hand has an outcome. The dealer's
// own hand never receives one. A tracker with no player hands is not settled.
func (t *Tracker) Settled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	players := 0
	for _, hid := range t.order {
		if hid.Seat == Dealer {
			continue
		}
		players++
		if t.hands[hid].Outcome == None {
			return false
		}
	}
	return players > 0
}
