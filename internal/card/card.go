package card

import (
	"fmt"
	"strings"
)

// Suit represents a card suit
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// String returns the symbol for a suit
func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	default:
		return "?"
	}
}

// Letter returns the single-letter wire form of a suit
func (s Suit) Letter() string {
	switch s {
	case Spades:
		return "S"
	case Hearts:
		return "H"
	case Diamonds:
		return "D"
	case Clubs:
		return "C"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

func (s Suit) MarshalText() ([]byte, error) {
	if s < Spades || s > Clubs {
		return nil, fmt.Errorf("invalid suit: %d", int(s))
	}
	return []byte(s.Letter()), nil
}

func (s *Suit) UnmarshalText(b []byte) error {
	suit, err := ParseSuit(string(b))
	if err != nil {
		return err
	}
	*s = suit
	return nil
}

// ParseSuit accepts either the letter (S, H, D, C) or the symbol form
func ParseSuit(s string) (Suit, error) {
	switch strings.ToUpper(s) {
	case "S", "♠":
		return Spades, nil
	case "H", "♥":
		return Hearts, nil
	case "D", "♦":
		return Diamonds, nil
	case "C", "♣":
		return Clubs, nil
	}
	return 0, fmt.Errorf("invalid suit: %q", s)
}

// Rank represents a card rank. Aces are low; the dealer decides soft totals.
type Rank int

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// String returns the string representation of a rank
func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	}
	if r >= Two && r <= Ten {
		return fmt.Sprintf("%d", int(r))
	}
	return "?"
}

func (r Rank) MarshalText() ([]byte, error) {
	if r < Ace || r > King {
		return nil, fmt.Errorf("invalid rank: %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Rank) UnmarshalText(b []byte) error {
	rank, err := ParseRank(string(b))
	if err != nil {
		return err
	}
	*r = rank
	return nil
}

// ParseRank parses A, 2-10 (or T), J, Q, K
func ParseRank(s string) (Rank, error) {
	switch strings.ToUpper(s) {
	case "A":
		return Ace, nil
	case "T", "10":
		return Ten, nil
	case "J":
		return Jack, nil
	case "Q":
		return Queen, nil
	case "K":
		return King, nil
	}
	if len(s) == 1 && s[0] >= '2' && s[0] <= '9' {
		return Rank(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("invalid rank: %q", s)
}

// Card represents a playing card. A hole card is dealt face down: the
// client knows it is there but must not show its face until it is revealed.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
	Hole bool `json:"hole,omitempty"`
}

// New creates a face-up card
func New(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// NewHole creates a face-down card
func NewHole(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit, Hole: true}
}

// String returns the string representation of a card (e.g., "A♠").
// Hole cards render as "??".
func (c Card) String() string {
	if c.Hole {
		return "??"
	}
	return c.Rank.String() + c.Suit.String()
}

// IsHole reports whether the card was dealt face down
func (c Card) IsHole() bool {
	return c.Hole
}

// Revealed returns the face-up version of the card
func (c Card) Revealed() Card {
	c.Hole = false
	return c
}

// IsRed returns true if the card is red
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// IsAce returns true if the card is an Ace
func (c Card) IsAce() bool {
	return c.Rank == Ace
}

// IsFaceCard returns true if the card is a face card (J, Q, K)
func (c Card) IsFaceCard() bool {
	return c.Rank >= Jack && c.Rank <= King
}

// Parse parses a card like "AS", "10D", "T♦" or "K♣". A trailing "*" marks
// a hole card ("9C*").
func Parse(s string) (Card, error) {
	s = strings.TrimSpace(s)
	hole := strings.HasSuffix(s, "*")
	s = strings.TrimSuffix(s, "*")

	runes := []rune(s)
	if len(runes) < 2 {
		return Card{}, fmt.Errorf("invalid card: %q", s)
	}

	rank, err := ParseRank(string(runes[:len(runes)-1]))
	if err != nil {
		return Card{}, err
	}
	suit, err := ParseSuit(string(runes[len(runes)-1]))
	if err != nil {
		return Card{}, err
	}
	return Card{Rank: rank, Suit: suit, Hole: hole}, nil
}

// MustParse parses a card and panics on error. Intended for tests.
func MustParse(s string) Card {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}
