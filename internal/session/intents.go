package session

import (
	"fmt"

	"github.com/lox/charlie/internal/hand"
	"github.com/lox/charlie/internal/protocol"
)

// Bet opens a new hand for the player's seat with the given wager and
// returns its id. The dealer answers later with a ShoeStart listing it.
// Between rounds the player's previous hands are forgotten once the bet is
// sent.
func (h *Handler) Bet(amount int) (hand.Hid, error) {
	if amount <= 0 {
		return hand.Hid{}, ErrInvalidBet
	}

	h.mu.Lock()
	if !h.state.Connected() || h.link == nil {
		h.mu.Unlock()
		return hand.Hid{}, ErrNotConnected
	}
	link := h.link
	betweenRounds := h.state != InRound
	hid := hand.NewHid(hand.You, float64(amount))
	h.pendingBet = hid
	h.mu.Unlock()

	msg, err := protocol.NewBet(hid, amount)
	if err != nil {
		return hand.Hid{}, err
	}
	if err := link.Send(msg); err != nil {
		return hand.Hid{}, fmt.Errorf("send bet: %w", err)
	}

	if betweenRounds {
		if n := h.tracker.ClearSeat(hand.You); n > 0 {
			h.logger.Debug("Cleared previous hands", "seat", hand.You, "hands", n)
		}
	}

	h.logger.Info("Bet placed", "hid", hid, "amount", amount)
	return hid, nil
}

// Hit asks the dealer for another card on hid
func (h *Handler) Hit(hid hand.Hid) error {
	return h.play(protocol.TypeHit, hid, protocol.NewHit)
}

// Stand ends play on hid
func (h *Handler) Stand(hid hand.Hid) error {
	return h.play(protocol.TypeStand, hid, protocol.NewStand)
}

// DoubleDown doubles the wager on hid for exactly one more card
func (h *Handler) DoubleDown(hid hand.Hid) error {
	return h.play(protocol.TypeDoubleDown, hid, protocol.NewDoubleDown)
}

// PendingBet returns the id minted by the last Bet that no ShoeStart has
// consumed yet
func (h *Handler) PendingBet() (hand.Hid, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pendingBet, !h.pendingBet.IsZero()
}

// play forwards an in-round action. Whose turn it is remains the dealer's
// call; an action for a hand that was not offered a turn is sent anyway and
// counted as unsolicited.
func (h *Handler) play(typ protocol.MessageType, hid hand.Hid, build func(hand.Hid) (*protocol.Message, error)) error {
	if hid.IsZero() {
		return ErrNoHand
	}

	h.mu.Lock()
	switch {
	case !h.state.Connected() || h.link == nil:
		h.mu.Unlock()
		return ErrNotConnected
	case h.state != InRound:
		h.mu.Unlock()
		return ErrNotInRound
	}
	link := h.link
	unsolicited := h.lastTurn != hid
	if unsolicited {
		h.stats.Unsolicited++
	}
	h.mu.Unlock()

	if unsolicited {
		h.logger.Warn("Unsolicited action", "action", typ, "hid", hid)
	}

	msg, err := build(hid)
	if err != nil {
		return err
	}
	if err := link.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}

	h.logger.Debug("Sent action", "action", typ, "hid", hid)
	return nil
}
