// Package codec turns a negotiation packet into a compact URL-safe string and back.
package codec

import (
	"github.com/pion/webrtc/v4"
)

// Packet is one side's negotiation snapshot: its local description plus every
// ICE candidate gathered for it. Both fields are handed to the peer connection
// verbatim and never inspected beyond basic presence checks.
type Packet struct {
	Description webrtc.SessionDescription `json:"description"`
	Candidates  []webrtc.ICECandidateInit `json:"candidates"`
}

// validate rejects packets that cannot possibly be applied to a session.
func (p *Packet) validate() error {
	switch p.Description.Type {
	case webrtc.SDPTypeOffer, webrtc.SDPTypeAnswer, webrtc.SDPTypePranswer:
	default:
		return errMissingDescription
	}
	if p.Description.SDP == "" {
		return errMissingDescription
	}
	return nil
}
