package session

import (
	"context"

	"github.com/lox/charlie/internal/card"
	"github.com/lox/charlie/internal/hand"
	"github.com/lox/charlie/internal/protocol"
)

// Presenter is whatever shows the game to the player. The handler calls it
// at the moment a change happens; it must not mutate handler state.
type Presenter interface {
	OnConnected()
	OnConnectionFailed(reason string)
	OnShoeStarting(hids []hand.Hid, shoeSize int)
	OnCardDealt(hid hand.Hid, c card.Card, v card.Values)
	OnHoleCardRevealed(hid hand.Hid, c card.Card)
	OnTurn(hid hand.Hid, mine bool)
	OnOutcome(hid hand.Hid, o hand.Outcome)
	OnShoeEnding(shoeSize int)
	OnNotice(text string)
}

// Sink receives everything a link reads, plus the error that ended it.
// Deliver may block while the handler is busy; it gives up once ctx ends.
type Sink interface {
	Deliver(ctx context.Context, msg *protocol.Message)
	Lost(err error)
}

// Link is an open connection to a dealer
type Link interface {
	// Send queues msg without waiting for the dealer
	Send(msg *protocol.Message) error
	// Ping returns nil once the dealer has proven it is alive
	Ping(ctx context.Context) error
	Close() error
}

// Dialer opens links
type Dialer interface {
	Dial(ctx context.Context, url string, sink Sink) (Link, error)
}

// NopPresenter ignores every notification
type NopPresenter struct{}

func (NopPresenter) OnConnected()                                 {}
func (NopPresenter) OnConnectionFailed(string)                    {}
func (NopPresenter) OnShoeStarting([]hand.Hid, int)               {}
func (NopPresenter) OnCardDealt(hand.Hid, card.Card, card.Values) {}
func (NopPresenter) OnHoleCardRevealed(hand.Hid, card.Card)       {}
func (NopPresenter) OnTurn(hand.Hid, bool)                        {}
func (NopPresenter) OnOutcome(hand.Hid, hand.Outcome)             {}
func (NopPresenter) OnShoeEnding(int)                             {}
func (NopPresenter) OnNotice(string)                              {}
