package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/lox/charlie/internal/card"
	"github.com/lox/charlie/internal/hand"
)

// Presenter prints game events as lines of text. It satisfies
// session.Presenter.
type Presenter struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
}

// NewPresenter writes to out, with or without ANSI color
func NewPresenter(out io.Writer, color bool) *Presenter {
	return &Presenter{out: out, styles: NewStyles(out, color)}
}

func (p *Presenter) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, line)
}

// Printf writes an informational line
func (p *Presenter) Printf(format string, args ...interface{}) {
	p.println(p.styles.Info.Render(fmt.Sprintf(format, args...)))
}

// Errorf writes an error line
func (p *Presenter) Errorf(format string, args ...interface{}) {
	p.println(p.styles.Error.Render(fmt.Sprintf(format, args...)))
}

func (p *Presenter) OnConnected() {
	p.println(p.styles.Info.Render("Connected to dealer"))
}

func (p *Presenter) OnConnectionFailed(reason string) {
	p.println(p.styles.Error.Render("Connection failed: " + reason))
}

func (p *Presenter) OnShoeStarting(hids []hand.Hid, shoeSize int) {
	seats := make([]string, 0, len(hids))
	for _, hid := range hids {
		seats = append(seats, hid.Seat.String())
	}
	p.println(p.styles.Header.Render(fmt.Sprintf(" New round, %d cards in the shoe ", shoeSize)))
	if len(seats) > 0 {
		p.println(p.styles.Info.Render("Seats: " + strings.Join(seats, " ")))
	}
}

func (p *Presenter) OnCardDealt(hid hand.Hid, c card.Card, v card.Values) {
	value := v.String()
	if c.IsHole() {
		// The values sent with a hole card describe the visible cards only
		value = "?"
	}
	p.println(fmt.Sprintf("%s %s  %s", p.seat(hid), p.FormatCard(c), value))
}

func (p *Presenter) OnHoleCardRevealed(hid hand.Hid, c card.Card) {
	p.println(fmt.Sprintf("%s reveals %s", p.seat(hid), p.FormatCard(c)))
}

func (p *Presenter) OnTurn(hid hand.Hid, mine bool) {
	if mine {
		p.println(p.styles.Prompt.Render(fmt.Sprintf("Your turn ($%g): hit, stand or double", hid.Amt)))
		return
	}
	p.println(p.styles.Info.Render(hid.Seat.String() + " is playing"))
}

func (p *Presenter) OnOutcome(hid hand.Hid, o hand.Outcome) {
	label := strings.ToUpper(o.String())
	style := p.styles.Push
	switch {
	case o.IsWin():
		style = p.styles.Win
	case o.IsLoss():
		style = p.styles.Loss
	}
	p.println(fmt.Sprintf("%s %s", p.seat(hid), style.Render(label)))
}

func (p *Presenter) OnShoeEnding(shoeSize int) {
	p.println(p.styles.Info.Render(fmt.Sprintf("Round over, %d cards left. Place a bet to play again.", shoeSize)))
}

func (p *Presenter) OnNotice(text string) {
	p.println(p.styles.Warning.Render("Dealer: " + text))
}

// ShowHands prints every hand with its cards and effective value
func (p *Presenter) ShowHands(hands []hand.Hand) {
	if len(hands) == 0 {
		p.Printf("No hands in play")
		return
	}
	for _, h := range hands {
		cards := make([]string, 0, len(h.Cards))
		for _, c := range h.Cards {
			cards = append(cards, p.FormatCard(c))
		}

		line := fmt.Sprintf("%s [%s]", h.Text(), strings.Join(cards, " "))
		if h.Playing {
			line += " <"
		}
		if h.Outcome != hand.None {
			line += " " + strings.ToUpper(h.Outcome.String())
		}
		p.println(line)
	}
}

// FormatCard renders a card in its suit color
func (p *Presenter) FormatCard(c card.Card) string {
	switch {
	case c.IsHole():
		return p.styles.HoleCard.Render(c.String())
	case c.IsRed():
		return p.styles.RedCard.Render(c.String())
	default:
		return p.styles.BlackCard.Render(c.String())
	}
}

func (p *Presenter) seat(hid hand.Hid) string {
	return p.styles.Seat.Render(fmt.Sprintf("%-6s", hid.Seat.String()))
}
