package hand

import (
	"fmt"
	"strings"
)

// Outcome is the terminal result of a hand
type Outcome int

const (
	None Outcome = iota
	Blackjack
	Win
	Push
	Loose
	Charlie
	Bust
)

var outcomeNames = map[Outcome]string{
	None:      "none",
	Blackjack: "blackjack",
	Win:       "win",
	Push:      "push",
	Loose:     "loose",
	Charlie:   "charlie",
	Bust:      "bust",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// IsWin reports whether the outcome pays the player
func (o Outcome) IsWin() bool {
	return o == Blackjack || o == Win || o == Charlie
}

// IsLoss reports whether the outcome takes the wager
func (o Outcome) IsLoss() bool {
	return o == Loose || o == Bust
}

func (o Outcome) MarshalText() ([]byte, error) {
	if _, ok := outcomeNames[o]; !ok {
		return nil, fmt.Errorf("invalid outcome: %d", int(o))
	}
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	parsed, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOutcome parses an outcome kind. "lose" is accepted for "loose".
func ParseOutcome(s string) (Outcome, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "lose" {
		return Loose, nil
	}
	for o, name := range outcomeNames {
		if name == s {
			return o, nil
		}
	}
	return None, fmt.Errorf("invalid outcome: %q", s)
}
