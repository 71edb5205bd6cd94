package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/janken/internal/util"
)

// DefaultSTUNServers are used for ICE candidate gathering when nothing else
// is configured. No TURN: the game is direct P2P with zero infrastructure cost.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// channelLabel names the game's message channel.
const channelLabel = "game"

// peerConn is the subset of *webrtc.PeerConnection a session drives.
type peerConn interface {
	OnICECandidate(func(*webrtc.ICECandidate))
	OnICEConnectionStateChange(func(webrtc.ICEConnectionState))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	OnDataChannel(func(dataChannel))
	CreateDataChannel(label string, init *webrtc.DataChannelInit) (dataChannel, error)
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	LocalDescription() *webrtc.SessionDescription
	Close() error
}

// dataChannel is the subset of *webrtc.DataChannel a session drives.
type dataChannel interface {
	OnOpen(func())
	OnClose(func())
	OnMessage(func(webrtc.DataChannelMessage))
	Send([]byte) error
	Close() error
}

var _ dataChannel = (*webrtc.DataChannel)(nil)

// peerFactory creates the peer connection for one session generation.
type peerFactory func() (peerConn, error)

// pionPeer adapts *webrtc.PeerConnection to peerConn.
type pionPeer struct {
	*webrtc.PeerConnection
}

func (p pionPeer) CreateDataChannel(label string, init *webrtc.DataChannelInit) (dataChannel, error) {
	dc, err := p.PeerConnection.CreateDataChannel(label, init)
	if err != nil {
		return nil, err
	}
	return dc, nil
}

func (p pionPeer) OnDataChannel(fn func(dataChannel)) {
	p.PeerConnection.OnDataChannel(func(dc *webrtc.DataChannel) { fn(dc) })
}

// newPionFactory returns a factory for PeerConnections configured with the
// given STUN servers. pion's own logging goes through the process logger.
func newPionFactory(stunServers []string, includeLoopback bool) peerFactory {
	return func() (peerConn, error) {
		se := webrtc.SettingEngine{LoggerFactory: util.PionLoggerFactory{}}
		if includeLoopback {
			se.SetIncludeLoopbackCandidate(true)
		}
		api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

		config := webrtc.Configuration{}
		if len(stunServers) > 0 {
			config.ICEServers = []webrtc.ICEServer{{URLs: stunServers}}
		}

		pc, err := api.NewPeerConnection(config)
		if err != nil {
			return nil, err
		}
		return pionPeer{pc}, nil
	}
}
