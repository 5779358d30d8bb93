package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/charlie/internal/card"
	"github.com/lox/charlie/internal/hand"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr string
	}{
		{"bet 10", Command{Action: ActionBet, Amount: 10}, ""},
		{"b $25", Command{Action: ActionBet, Amount: 25}, ""},
		{"bet", Command{Action: ActionBet, Amount: 5}, ""},
		{"  HIT  ", Command{Action: ActionHit}, ""},
		{"h", Command{Action: ActionHit}, ""},
		{"stand", Command{Action: ActionStand}, ""},
		{"stay", Command{Action: ActionStand}, ""},
		{"dd", Command{Action: ActionDouble}, ""},
		{"double", Command{Action: ActionDouble}, ""},
		{"hands", Command{Action: ActionHands}, ""},
		{"?", Command{Action: ActionHelp}, ""},
		{"q", Command{Action: ActionQuit}, ""},
		{"bet ten", Command{}, "invalid amount: ten"},
		{"bet -3", Command{}, "bet must be positive"},
		{"split", Command{}, "unknown command: split"},
		{"", Command{}, "empty command"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line, 5)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPresenterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPresenter(&buf, false)
	you := hand.Hid{Seat: hand.You, Amt: 10, Key: "k1"}
	dealer := hand.Hid{Seat: hand.Dealer}

	p.OnConnected()
	p.OnShoeStarting([]hand.Hid{you, dealer}, 52)
	p.OnCardDealt(you, card.MustParse("AS"), card.Values{Literal: 1, Soft: 11})
	p.OnCardDealt(dealer, card.MustParse("7C*"), card.Values{Literal: 10, Soft: 10})
	p.OnTurn(you, true)
	p.OnTurn(dealer, false)
	p.OnHoleCardRevealed(dealer, card.MustParse("7C"))
	p.OnOutcome(you, hand.Blackjack)
	p.OnShoeEnding(48)
	p.OnNotice("table closing soon")
	p.OnConnectionFailed("dealer inactive")

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "no ANSI escapes without color")
	for _, want := range []string{
		"Connected to dealer",
		"New round, 52 cards in the shoe",
		"Seats: YOU DEALER",
		"YOU    A♠  1/11",
		"DEALER ??  ?",
		"Your turn ($10): hit, stand or double",
		"DEALER is playing",
		"DEALER reveals 7♣",
		"YOU    BLACKJACK",
		"48 cards left",
		"Dealer: table closing soon",
		"Connection failed: dealer inactive",
	} {
		assert.Contains(t, out, want)
	}
}

func TestShowHands(t *testing.T) {
	var buf bytes.Buffer
	p := NewPresenter(&buf, false)

	p.ShowHands(nil)
	assert.Contains(t, buf.String(), "No hands in play")

	buf.Reset()
	p.ShowHands([]hand.Hand{
		{
			Name:    "YOU",
			Cards:   []card.Card{card.MustParse("10H"), card.MustParse("QS")},
			Values:  card.Values{Literal: 20, Soft: 20},
			Playing: true,
		},
		{
			Name:    "DEALER",
			Cards:   []card.Card{card.MustParse("9D"), card.MustParse("KC")},
			Values:  card.Values{Literal: 19, Soft: 19},
			Outcome: hand.Win,
		},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "YOU: 20 [10♥ Q♠] <", lines[0])
	assert.Equal(t, "DEALER: 19 [9♦ K♣] WIN", lines[1])
}

// fakeTable records intents
type fakeTable struct {
	awaiting hand.Hid
	calls    []string
	betErr   error
}

func (f *fakeTable) Bet(amount int) (hand.Hid, error) {
	f.calls = append(f.calls, "bet")
	if f.betErr != nil {
		return hand.Hid{}, f.betErr
	}
	return hand.Hid{Seat: hand.You, Amt: float64(amount), Key: "minted"}, nil
}

func (f *fakeTable) Hit(hid hand.Hid) error        { f.calls = append(f.calls, "hit "+hid.Key); return nil }
func (f *fakeTable) Stand(hid hand.Hid) error      { f.calls = append(f.calls, "stand "+hid.Key); return nil }
func (f *fakeTable) DoubleDown(hid hand.Hid) error { f.calls = append(f.calls, "double "+hid.Key); return nil }

func (f *fakeTable) Awaiting() (hand.Hid, bool) {
	return f.awaiting, !f.awaiting.IsZero()
}

func (f *fakeTable) Hands() []hand.Hand { return nil }

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func TestExecute(t *testing.T) {
	t.Run("in-round actions need a turn", func(t *testing.T) {
		table := &fakeTable{}
		p := NewPresenter(io.Discard, false)
		err := Execute(Command{Action: ActionHit}, table, p)
		assert.EqualError(t, err, "not your turn")
		assert.Empty(t, table.calls)
	})

	t.Run("another seat's turn is not ours", func(t *testing.T) {
		table := &fakeTable{awaiting: hand.Hid{Seat: hand.Right, Key: "r"}}
		err := Execute(Command{Action: ActionStand}, table, NewPresenter(io.Discard, false))
		assert.EqualError(t, err, "not your turn")
	})

	t.Run("actions target the awaited hand", func(t *testing.T) {
		table := &fakeTable{awaiting: hand.Hid{Seat: hand.You, Key: "mine"}}
		p := NewPresenter(io.Discard, false)
		require.NoError(t, Execute(Command{Action: ActionHit}, table, p))
		require.NoError(t, Execute(Command{Action: ActionStand}, table, p))
		require.NoError(t, Execute(Command{Action: ActionDouble}, table, p))
		assert.Equal(t, []string{"hit mine", "stand mine", "double mine"}, table.calls)
	})

	t.Run("bet reports the new hand", func(t *testing.T) {
		var buf bytes.Buffer
		table := &fakeTable{}
		require.NoError(t, Execute(Command{Action: ActionBet, Amount: 15}, table, NewPresenter(&buf, false)))
		assert.Contains(t, buf.String(), "Bet $15 placed (hand minted)")
	})

	t.Run("quit", func(t *testing.T) {
		assert.ErrorIs(t, Execute(Command{Action: ActionQuit}, &fakeTable{}, NewPresenter(io.Discard, false)), ErrQuit)
	})
}

func TestLoop(t *testing.T) {
	var buf bytes.Buffer
	table := &fakeTable{
		awaiting: hand.Hid{Seat: hand.You, Key: "mine"},
		betErr:   nil,
	}
	in := strings.NewReader("bet 10\n\nfold\nhit\nquit\nstand\n")

	err := Loop(context.Background(), in, table, NewPresenter(&buf, false), 5, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"bet", "hit mine"}, table.calls, "nothing runs after quit")
	assert.Contains(t, buf.String(), "unknown command: fold")
}

func TestLoopReportsIntentErrors(t *testing.T) {
	var buf bytes.Buffer
	table := &fakeTable{betErr: errors.New("not connected to a dealer")}

	err := Loop(context.Background(), strings.NewReader("bet\n"), table, NewPresenter(&buf, false), 5, quietLogger())
	require.NoError(t, err, "end of input ends the loop")
	assert.Contains(t, buf.String(), "not connected to a dealer")
}

func TestLoopStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, w := io.Pipe()
	defer w.Close()

	err := Loop(ctx, r, &fakeTable{}, NewPresenter(io.Discard, false), 5, quietLogger())
	assert.ErrorIs(t, err, context.Canceled)
}
