package protocol

import (
	"encoding/json"
	"time"

	"github.com/lox/charlie/internal/card"
	"github.com/lox/charlie/internal/hand"
)

// Message is the envelope for every frame exchanged with the house and the dealer
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// MessageType identifies the payload carried by a Message
type MessageType string

// Client -> Dealer
const (
	TypeLogin      MessageType = "login"
	TypeBet        MessageType = "bet"
	TypeHit        MessageType = "hit"
	TypeStand      MessageType = "stand"
	TypeDoubleDown MessageType = "double_down"
)

// Dealer -> Client
const (
	TypeReady     MessageType = "ready"
	TypeShoeStart MessageType = "shoe_start"
	TypeDeal      MessageType = "deal"
	TypeTurn      MessageType = "turn"
	TypeOutcome   MessageType = "outcome"
	TypeShoeEnd   MessageType = "shoe_end"
	TypeNotice    MessageType = "notice"
)

// LoginData announces the player to the house
type LoginData struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// BetData opens a hand with a wager
type BetData struct {
	Hid    hand.Hid `json:"hid"`
	Amount int      `json:"amount"`
}

// PlayData carries hit, stand and double-down requests
type PlayData struct {
	Hid hand.Hid `json:"hid"`
}

// ReadyData names the dealer the client should talk to
type ReadyData struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Path   string `json:"path,omitempty"`
	Scheme string `json:"scheme,omitempty"` // ws or wss, default ws
}

// ShoeStartData lists the hands opened for the round
type ShoeStartData struct {
	Hids     []hand.Hid `json:"hids"`
	ShoeSize int        `json:"shoe_size"`
}

// DealData is one card dealt to one hand, with the dealer's totals
type DealData struct {
	Hid    hand.Hid    `json:"hid"`
	Card   card.Card   `json:"card"`
	Values card.Values `json:"values"`
}

// TurnData names the hand whose action is expected
type TurnData struct {
	Hid hand.Hid `json:"hid"`
}

// OutcomeData is the terminal result of a hand
type OutcomeData struct {
	Hid  hand.Hid     `json:"hid"`
	Kind hand.Outcome `json:"kind"`
}

// ShoeEndData reports the cards left when the shoe closes
type ShoeEndData struct {
	ShoeSize int `json:"shoe_size"`
}

// NoticeData is free-form text from the dealer
type NoticeData struct {
	Text string `json:"text"`
}

// NewMessage creates a new message with the given type and data
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      msgType,
		Data:      jsonData,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewBet builds a bet request
func NewBet(hid hand.Hid, amount int) (*Message, error) {
	return NewMessage(TypeBet, BetData{Hid: hid, Amount: amount})
}

// NewHit builds a hit request
func NewHit(hid hand.Hid) (*Message, error) {
	return NewMessage(TypeHit, PlayData{Hid: hid})
}

// NewStand builds a stand request
func NewStand(hid hand.Hid) (*Message, error) {
	return NewMessage(TypeStand, PlayData{Hid: hid})
}

// NewDoubleDown builds a double-down request
func NewDoubleDown(hid hand.Hid) (*Message, error) {
	return NewMessage(TypeDoubleDown, PlayData{Hid: hid})
}

// NewLogin builds the house login message
func NewLogin(name, address string) (*Message, error) {
	return NewMessage(TypeLogin, LoginData{Name: name, Address: address})
}
