package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/1ureka/janken/internal/rules"
)

// Encode serializes a message for DataChannel transmission.
func Encode(msg Message) ([]byte, error) {
	var w wireMessage

	switch m := msg.(type) {
	case HandSelected:
		if !m.Hand.Valid() {
			return nil, fmt.Errorf("cannot send hand %q", m.Hand)
		}
		if m.RoundID == "" {
			return nil, errors.New("handSelected requires a round id")
		}
		w = wireMessage{Type: TypeHandSelected, Hand: string(m.Hand), GameID: m.RoundID}
	case NewGame:
		w = wireMessage{Type: TypeNewGame}
	default:
		return nil, fmt.Errorf("unsupported message %T", msg)
	}

	return json.Marshal(w)
}

// Decode parses a DataChannel payload. A payload with an unrecognized type
// decodes to Unknown without error.
func Decode(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}

	switch w.Type {
	case TypeHandSelected:
		hand, err := rules.ParseHand(w.Hand)
		if err != nil {
			return nil, err
		}
		if w.GameID == "" {
			return nil, errors.New("handSelected without gameId")
		}
		return HandSelected{Hand: hand, RoundID: w.GameID}, nil
	case TypeNewGame:
		return NewGame{}, nil
	case "":
		return nil, errors.New("message without type")
	default:
		return Unknown{Type: w.Type}, nil
	}
}
