package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/lox/charlie/internal/card"
	"github.com/lox/charlie/internal/hand"
)

// ErrMalformed wraps payloads that do not decode into their declared type
var ErrMalformed = errors.New("malformed message")

// Event is the closed set of things a dealer can tell the client. The
// concrete types are Ready, ShoeStart, Deal, Turn, Outcome, ShoeEnd, Notice
// and Unknown.
type Event interface {
	Type() MessageType
	event()
}

// Ready names the dealer's address once the house has seated the player
type Ready struct {
	Host   string
	Port   int
	Path   string
	Scheme string
}

// ShoeStart opens a round with the listed hands
type ShoeStart struct {
	Hids     []hand.Hid
	ShoeSize int
}

// Deal delivers one card to one hand
type Deal struct {
	Hid    hand.Hid
	Card   card.Card
	Values card.Values
}

// Turn tells the client which hand may act
type Turn struct {
	Hid hand.Hid
}

// Outcome settles a hand
type Outcome struct {
	Hid  hand.Hid
	Kind hand.Outcome
}

// ShoeEnd closes the shoe
type ShoeEnd struct {
	ShoeSize int
}

// Notice is dealer text meant for the player
type Notice struct {
	Text string
}

// Unknown is any message type this client does not understand
type Unknown struct {
	Kind MessageType
}

func (Ready) Type() MessageType     { return TypeReady }
func (ShoeStart) Type() MessageType { return TypeShoeStart }
func (Deal) Type() MessageType      { return TypeDeal }
func (Turn) Type() MessageType      { return TypeTurn }
func (Outcome) Type() MessageType   { return TypeOutcome }
func (ShoeEnd) Type() MessageType   { return TypeShoeEnd }
func (Notice) Type() MessageType    { return TypeNotice }
func (u Unknown) Type() MessageType { return u.Kind }

func (Ready) event()     {}
func (ShoeStart) event() {}
func (Deal) event()      {}
func (Turn) event()      {}
func (Outcome) event()   {}
func (ShoeEnd) event()   {}
func (Notice) event()    {}
func (Unknown) event()   {}

// Addr returns host:port
func (r Ready) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// URL returns the websocket URL of the dealer
func (r Ready) URL() string {
	path := r.Path
	if path == "" {
		path = "/dealer"
	}
	scheme := r.Scheme
	if scheme == "" {
		scheme = "ws"
	}
	u := url.URL{Scheme: scheme, Host: r.Addr(), Path: path}
	return u.String()
}

// Decode turns an inbound envelope into an Event. Unrecognised types decode
// to Unknown without error; known types with bad payloads return ErrMalformed.
func Decode(msg *Message) (Event, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformed)
	}

	switch msg.Type {
	case TypeReady:
		var data ReadyData
		if err := decodeData(msg, &data); err != nil {
			return nil, err
		}
		if data.Host == "" || data.Port <= 0 || data.Port > 65535 {
			return nil, fmt.Errorf("%w: ready: bad address %q:%d", ErrMalformed, data.Host, data.Port)
		}
		switch data.Scheme {
		case "", "ws", "wss":
		default:
			return nil, fmt.Errorf("%w: ready: unsupported scheme %q", ErrMalformed, data.Scheme)
		}
		return Ready{Host: data.Host, Port: data.Port, Path: data.Path, Scheme: data.Scheme}, nil

	case TypeShoeStart:
		var data ShoeStartData
		if err := decodeData(msg, &data); err != nil {
			return nil, err
		}
		return ShoeStart{Hids: data.Hids, ShoeSize: data.ShoeSize}, nil

	case TypeDeal:
		var data DealData
		if err := decodeData(msg, &data); err != nil {
			return nil, err
		}
		return Deal{Hid: data.Hid, Card: data.Card, Values: data.Values}, nil

	case TypeTurn:
		var data TurnData
		if err := decodeData(msg, &data); err != nil {
			return nil, err
		}
		return Turn{Hid: data.Hid}, nil

	case TypeOutcome:
		var data OutcomeData
		if err := decodeData(msg, &data); err != nil {
			return nil, err
		}
		if data.Kind == hand.None {
			return nil, fmt.Errorf("%w: outcome: missing kind", ErrMalformed)
		}
		return Outcome{Hid: data.Hid, Kind: data.Kind}, nil

	case TypeShoeEnd:
		var data ShoeEndData
		if err := decodeData(msg, &data); err != nil {
			return nil, err
		}
		return ShoeEnd{ShoeSize: data.ShoeSize}, nil

	case TypeNotice:
		var data NoticeData
		if err := decodeData(msg, &data); err != nil {
			return nil, err
		}
		return Notice{Text: data.Text}, nil
	}

	return Unknown{Kind: msg.Type}, nil
}

func decodeData(msg *Message, v interface{}) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%w: %s: empty payload", ErrMalformed, msg.Type)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, msg.Type, err)
	}
	return nil
}

// Encode wraps an Event in an envelope. Dealers and tests use it to speak
// to the client.
func Encode(ev Event) (*Message, error) {
	switch e := ev.(type) {
	case Ready:
		return NewMessage(TypeReady, ReadyData{Host: e.Host, Port: e.Port, Path: e.Path, Scheme: e.Scheme})
	case ShoeStart:
		return NewMessage(TypeShoeStart, ShoeStartData{Hids: e.Hids, ShoeSize: e.ShoeSize})
	case Deal:
		return NewMessage(TypeDeal, DealData{Hid: e.Hid, Card: e.Card, Values: e.Values})
	case Turn:
		return NewMessage(TypeTurn, TurnData{Hid: e.Hid})
	case Outcome:
		return NewMessage(TypeOutcome, OutcomeData{Hid: e.Hid, Kind: e.Kind})
	case ShoeEnd:
		return NewMessage(TypeShoeEnd, ShoeEndData{ShoeSize: e.ShoeSize})
	case Notice:
		return NewMessage(TypeNotice, NoticeData{Text: e.Text})
	case Unknown:
		return &Message{Type: e.Kind}, nil
	}
	return nil, fmt.Errorf("cannot encode %T", ev)
}
