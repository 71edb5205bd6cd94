// Package signaling carries negotiation packets between two players without
// a signaling server: as a link, as a QR code of that link, or as raw JSON
// pasted by hand.
package signaling

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/janken/internal/codec"
)

// Kind identifies which half of the exchange a packet is.
type Kind string

const (
	KindOffer  Kind = "offer"
	KindAnswer Kind = "answer"
)

var (
	// ErrInvalidURL means the text is not a parseable link.
	ErrInvalidURL = errors.New("invalid link")

	// ErrMissingPacket means the link carries neither an offer nor an answer.
	ErrMissingPacket = errors.New("link carries no offer or answer")

	// ErrWrongKind means an offer arrived where an answer was expected, or the
	// other way round.
	ErrWrongKind = errors.New("unexpected negotiation kind")
)

// Valid reports whether k is KindOffer or KindAnswer.
func (k Kind) Valid() bool {
	return k == KindOffer || k == KindAnswer
}

// KindOf derives the kind from the packet's description type.
func KindOf(pkt codec.Packet) (Kind, error) {
	switch pkt.Description.Type {
	case webrtc.SDPTypeOffer:
		return KindOffer, nil
	case webrtc.SDPTypeAnswer:
		return KindAnswer, nil
	default:
		return "", fmt.Errorf("%w: description type %s", ErrWrongKind, pkt.Description.Type)
	}
}

// expect checks that pkt is of kind want.
func expect(pkt codec.Packet, want Kind) error {
	got, err := KindOf(pkt)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: got %s, want %s", ErrWrongKind, got, want)
	}
	return nil
}
