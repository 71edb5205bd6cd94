package app

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/janken/internal/codec"
	"github.com/1ureka/janken/internal/transport"
)

// fakeSession is an in-memory Session. Two linked fakes connect when the
// offerer completes negotiation with the answer its peer produced.
type fakeSession struct {
	name string
	peer *fakeSession

	mu       sync.Mutex
	role     transport.Role
	state    transport.State
	local    *codec.Packet
	remote   *codec.Packet
	msgFns   []func([]byte)
	stateFns []func(transport.State)
	closed   bool

	inbox chan []byte
}

var _ Session = (*fakeSession)(nil)

func newFakePair() (*fakeSession, *fakeSession) {
	a := &fakeSession{name: "a", inbox: make(chan []byte, 64)}
	b := &fakeSession{name: "b", inbox: make(chan []byte, 64)}
	a.peer, b.peer = b, a
	go a.pump()
	go b.pump()
	return a, b
}

// pump delivers queued messages in order, like the session event loop.
func (s *fakeSession) pump() {
	for data := range s.inbox {
		s.mu.Lock()
		fns := s.msgFns
		s.mu.Unlock()
		for _, fn := range fns {
			fn(data)
		}
	}
}

func (s *fakeSession) packet(t webrtc.SDPType) *codec.Packet {
	return &codec.Packet{
		Description: webrtc.SessionDescription{Type: t, SDP: "v=0\r\no=- " + s.name + " 1 IN IP4 0.0.0.0\r\n"},
		Candidates:  []webrtc.ICECandidateInit{{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host"}},
	}
}

func (s *fakeSession) setState(state transport.State) {
	s.mu.Lock()
	s.state = state
	fns := s.stateFns
	s.mu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

func (s *fakeSession) Initialize(role transport.Role) error {
	s.mu.Lock()
	s.role, s.local, s.remote = role, nil, nil
	s.mu.Unlock()
	s.setState(transport.StateGathering)
	return nil
}

func (s *fakeSession) CreateOffer() error {
	s.mu.Lock()
	if s.role != transport.RoleOfferer || s.local != nil {
		s.mu.Unlock()
		return transport.ErrInvalidState
	}
	s.local = s.packet(webrtc.SDPTypeOffer)
	s.mu.Unlock()
	s.setState(transport.StateNegotiating)
	return nil
}

func (s *fakeSession) CreateAnswer(remote codec.Packet) error {
	s.mu.Lock()
	if s.role != transport.RoleAnswerer || s.remote != nil {
		s.mu.Unlock()
		return transport.ErrInvalidState
	}
	s.remote = &remote
	s.local = s.packet(webrtc.SDPTypeAnswer)
	s.mu.Unlock()
	s.setState(transport.StateNegotiating)
	return nil
}

func (s *fakeSession) CompleteNegotiation(remote codec.Packet) error {
	s.mu.Lock()
	if s.role != transport.RoleOfferer || s.remote != nil || s.local == nil {
		s.mu.Unlock()
		return transport.ErrInvalidState
	}
	s.remote = &remote
	s.mu.Unlock()

	p := s.peer
	p.mu.Lock()
	matches := p.local != nil && p.local.Description.SDP == remote.Description.SDP
	p.mu.Unlock()
	if !matches {
		return errors.New("answer does not belong to the peer")
	}

	s.setState(transport.StateConnected)
	p.setState(transport.StateConnected)
	return nil
}

func (s *fakeSession) WaitPacket(ctx context.Context) (codec.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		return codec.Packet{}, transport.ErrNotReady
	}
	return *s.local, nil
}

func (s *fakeSession) Send(data []byte) error {
	if s.State() != transport.StateConnected {
		return transport.ErrNotConnected
	}
	s.peer.inbox <- append([]byte(nil), data...)
	return nil
}

func (s *fakeSession) OnMessage(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgFns = append(s.msgFns, fn)
}

func (s *fakeSession) OnStateChange(fn func(transport.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateFns = append(s.stateFns, fn)
}

func (s *fakeSession) State() transport.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) Reset() {
	s.mu.Lock()
	s.role, s.local, s.remote = transport.RoleNone, nil, nil
	s.mu.Unlock()
	s.setState(transport.StateIdle)
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.inbox)
	}
	return nil
}
