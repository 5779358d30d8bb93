package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lox/charlie/internal/hand"
)

// ErrQuit is returned by Loop when the player types quit
var ErrQuit = errors.New("quit")

// Action is something the player typed
type Action int

const (
	ActionBet Action = iota
	ActionHit
	ActionStand
	ActionDouble
	ActionHands
	ActionHelp
	ActionQuit
)

// Command is a parsed line of input
type Command struct {
	Action Action
	Amount int
}

// Parse reads one line of player input. A bet without an amount uses
// defaultBet.
func Parse(line string, defaultBet int) (Command, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	action, args := fields[0], fields[1:]
	switch action {
	case "b", "bet":
		amount := defaultBet
		if len(args) > 0 {
			n, err := strconv.Atoi(strings.TrimPrefix(args[0], "$"))
			if err != nil {
				return Command{}, fmt.Errorf("invalid amount: %s", args[0])
			}
			amount = n
		}
		if amount <= 0 {
			return Command{}, fmt.Errorf("bet must be positive")
		}
		return Command{Action: ActionBet, Amount: amount}, nil
	case "h", "hit":
		return Command{Action: ActionHit}, nil
	case "s", "stand", "stay":
		return Command{Action: ActionStand}, nil
	case "d", "dd", "double":
		return Command{Action: ActionDouble}, nil
	case "hands", "show":
		return Command{Action: ActionHands}, nil
	case "?", "help":
		return Command{Action: ActionHelp}, nil
	case "q", "quit", "exit":
		return Command{Action: ActionQuit}, nil
	default:
		return Command{}, fmt.Errorf("unknown command: %s", action)
	}
}

// Table is the player's side of the session
type Table interface {
	Bet(amount int) (hand.Hid, error)
	Hit(hid hand.Hid) error
	Stand(hid hand.Hid) error
	DoubleDown(hid hand.Hid) error
	Awaiting() (hand.Hid, bool)
	Hands() []hand.Hand
}

// Help lists the commands Loop understands
const Help = `Commands:
  bet [amount]  place a bet (b)
  hit           take a card (h)
  stand         keep your hand (s)
  double        double down (d)
  hands         show the table
  quit          leave (q)`

// Loop reads commands from in and applies them to table until in is
// exhausted, ctx ends or the player quits.
func Loop(ctx context.Context, in io.Reader, table Table, p *Presenter, defaultBet int, logger *log.Logger) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if strings.TrimSpace(line) == "" {
				continue
			}

			cmd, err := Parse(line, defaultBet)
			if err != nil {
				p.Errorf("%v (type help for commands)", err)
				continue
			}
			if err := Execute(cmd, table, p); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				logger.Debug("Command failed", "command", line, "error", err)
				p.Errorf("%v", err)
			}
		}
	}
}

// Execute applies one command. In-round actions target the hand the dealer
// is waiting on.
func Execute(cmd Command, table Table, p *Presenter) error {
	switch cmd.Action {
	case ActionBet:
		hid, err := table.Bet(cmd.Amount)
		if err != nil {
			return err
		}
		p.Printf("Bet $%d placed (hand %s)", cmd.Amount, hid.Key)
		return nil
	case ActionHit, ActionStand, ActionDouble:
		hid, ok := table.Awaiting()
		if !ok || hid.Seat != hand.You {
			return fmt.Errorf("not your turn")
		}
		switch cmd.Action {
		case ActionHit:
			return table.Hit(hid)
		case ActionStand:
			return table.Stand(hid)
		default:
			return table.DoubleDown(hid)
		}
	case ActionHands:
		p.ShowHands(table.Hands())
		return nil
	case ActionHelp:
		p.Printf("%s", Help)
		return nil
	case ActionQuit:
		return ErrQuit
	}
	return fmt.Errorf("unsupported command")
}
