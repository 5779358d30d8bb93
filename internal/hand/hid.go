package hand

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Seat identifies a position at the blackjack table
type Seat int

const (
	NoSeat Seat = iota
	You
	Dealer
	Right
	Left
)

func (s Seat) String() string {
	switch s {
	case You:
		return "YOU"
	case Dealer:
		return "DEALER"
	case Right:
		return "RIGHT"
	case Left:
		return "LEFT"
	default:
		return "NONE"
	}
}

func (s Seat) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Seat) UnmarshalText(b []byte) error {
	seat, err := ParseSeat(string(b))
	if err != nil {
		return err
	}
	*s = seat
	return nil
}

// ParseSeat parses a seat name, case-insensitively
func ParseSeat(s string) (Seat, error) {
	switch strings.ToUpper(s) {
	case "YOU":
		return You, nil
	case "DEALER":
		return Dealer, nil
	case "RIGHT":
		return Right, nil
	case "LEFT":
		return Left, nil
	case "NONE", "":
		return NoSeat, nil
	}
	return NoSeat, fmt.Errorf("invalid seat: %q", s)
}

// Hid identifies one hand for its whole lifetime. Two Hids are the same
// hand iff every field matches, so the dealer must echo them unchanged.
type Hid struct {
	Seat Seat    `json:"seat"`
	Amt  float64 `json:"amt"`
	Key  string  `json:"key,omitempty"`
}

// NewHid mints a hand id for a fresh wager at the given seat
func NewHid(seat Seat, amt float64) Hid {
	return Hid{Seat: seat, Amt: amt, Key: uuid.NewString()}
}

func (h Hid) String() string {
	key := h.Key
	if len(key) > 8 {
		key = key[:8]
	}
	if key == "" {
		return fmt.Sprintf("%s/%.2f", h.Seat, h.Amt)
	}
	return fmt.Sprintf("%s/%.2f/%s", h.Seat, h.Amt, key)
}

// IsZero reports whether the id was never set
func (h Hid) IsZero() bool {
	return h == Hid{}
}
