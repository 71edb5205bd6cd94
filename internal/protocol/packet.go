// Package protocol defines the game messages exchanged over the data channel.
package protocol

import "github.com/1ureka/janken/internal/rules"

// Wire type tags.
const (
	TypeHandSelected = "handSelected" // a player picked a hand for a round
	TypeNewGame      = "newGame"      // the host starts the next round
)

// Message is one of HandSelected, NewGame or Unknown.
type Message interface {
	messageType() string
}

// HandSelected announces the sender's hand for the round identified by RoundID.
type HandSelected struct {
	Hand    rules.Hand
	RoundID string
}

// NewGame tells the receiver to clear its round state.
type NewGame struct{}

// Unknown is a well-formed message with a type this version does not know.
// Receivers ignore it.
type Unknown struct {
	Type string
}

func (HandSelected) messageType() string { return TypeHandSelected }
func (NewGame) messageType() string      { return TypeNewGame }
func (m Unknown) messageType() string    { return m.Type }

// wireMessage is the JSON shape on the channel.
type wireMessage struct {
	Type   string `json:"type"`
	Hand   string `json:"hand,omitempty"`
	GameID string `json:"gameId,omitempty"`
}
