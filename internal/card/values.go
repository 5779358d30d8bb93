package card

import (
	"encoding/json"
	"fmt"
)

// Blackjack is the highest total a hand can hold without breaking
const Blackjack = 21

// Values is the pair of totals the dealer reports with every card: the
// literal total counts aces as one, the soft total counts one ace as
// eleven. Soft is never below Literal.
type Values struct {
	Literal int
	Soft    int
}

// Effective returns the soft total when it does not break, else the literal total
func (v Values) Effective() int {
	if v.Soft <= Blackjack {
		return v.Soft
	}
	return v.Literal
}

// IsBust reports whether the effective total is over 21
func (v Values) IsBust() bool {
	return v.Effective() > Blackjack
}

func (v Values) String() string {
	if v.Soft != v.Literal && v.Soft <= Blackjack {
		return fmt.Sprintf("%d/%d", v.Literal, v.Soft)
	}
	return fmt.Sprintf("%d", v.Effective())
}

// MarshalJSON encodes the pair as [literal, soft]
func (v Values) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{v.Literal, v.Soft})
}

func (v *Values) UnmarshalJSON(b []byte) error {
	var pair []int
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("hand values: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("hand values: want [literal, soft], got %d values", len(pair))
	}
	v.Literal, v.Soft = pair[0], pair[1]
	return nil
}
