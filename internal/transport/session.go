// Package transport owns the lifecycle of one negotiated peer-to-peer
// connection: offer/answer exchange without a signaling server, candidate
// gathering, state transitions, and the reliable message channel on top.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/janken/internal/codec"
	"github.com/1ureka/janken/internal/util"
)

// eventQueueSize bounds the queue between pion callbacks and the session loop.
const eventQueueSize = 256

// Session wraps one PeerConnection + DataChannel pair at a time.
//
// pion invokes its callbacks on its own goroutines. Every callback is turned
// into an event on a bounded queue consumed by a single loop goroutine; the
// loop applies the resulting mutations and runs the registered handlers, so
// handlers never run concurrently and see messages in arrival order.
//
// Its lifecycle is governed by the DataChannel: the channel-open event declares
// the session connected. The PeerConnection state only drives the move to
// disconnected or failed.
type Session struct {
	newPeer peerFactory

	// opMu serializes the public negotiation operations.
	opMu sync.Mutex

	mu                sync.Mutex
	gen               uint64
	role              Role
	state             State
	pc                peerConn
	dc                dataChannel
	local             *webrtc.SessionDescription
	remote            *webrtc.SessionDescription
	candidates        []webrtc.ICECandidateInit
	gatheringComplete bool
	ready             chan struct{}
	readyClosed       bool
	skipped           []*CandidateError
	sender            *sender
	genCtx            context.Context
	genCancel         context.CancelFunc

	msgHandlers   []func([]byte)
	stateHandlers []func(State)

	events   chan event
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// Option configures a Session.
type Option func(*options)

type options struct {
	stunServers     []string
	includeLoopback bool
	factory         peerFactory
}

// WithSTUNServers replaces the default STUN server list.
func WithSTUNServers(urls []string) Option {
	return func(o *options) { o.stunServers = urls }
}

// WithLoopbackCandidates also gathers loopback candidates, which lets two
// sessions in one process connect without any network interface.
func WithLoopbackCandidates() Option {
	return func(o *options) { o.includeLoopback = true }
}

func withPeerFactory(f peerFactory) Option {
	return func(o *options) { o.factory = f }
}

// NewSession creates an idle session and starts its event loop. Call Close to
// release it.
func NewSession(opts ...Option) *Session {
	o := options{stunServers: DefaultSTUNServers}
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		o.factory = newPionFactory(o.stunServers, o.includeLoopback)
	}

	ctx, cancel := context.WithCancel(context.Background())
	genCtx, genCancel := context.WithCancel(ctx)

	s := &Session{
		newPeer:   o.factory,
		state:     StateIdle,
		ready:     make(chan struct{}),
		genCtx:    genCtx,
		genCancel: genCancel,
		events:    make(chan event, eventQueueSize),
		ctx:       ctx,
		cancel:    cancel,
		loopDone:  make(chan struct{}),
	}

	go s.loop()

	return s
}

// ---------------------------------------------------------------------------
// Observers
// ---------------------------------------------------------------------------

// OnMessage registers a handler invoked once per received message, in arrival order.
func (s *Session) OnMessage(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgHandlers = append(s.msgHandlers, fn)
}

// OnStateChange registers a handler invoked after every state transition.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateHandlers = append(s.stateHandlers, fn)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Role returns the role chosen at the last Initialize.
func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// CandidateErrors returns the remote candidates skipped in this generation.
func (s *Session) CandidateErrors() []*CandidateError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*CandidateError(nil), s.skipped...)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Initialize discards any previous connection and starts a fresh one in the
// given role. The session moves to gathering; candidates are collected in
// the background as soon as a local description exists.
func (s *Session) Initialize(role Role) error {
	if role != RoleOfferer && role != RoleAnswerer {
		return fmt.Errorf("%w: cannot initialize as %s", ErrInvalidState, role)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	gen := s.resetLocked(role)

	pc, err := s.newPeer()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			s.post(event{gen: gen, kind: evGatheringDone})
			return
		}
		s.post(event{gen: gen, kind: evCandidate, candidate: c.ToJSON()})
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		util.LogDebug("ICE connection state: %s", state.String())
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.post(event{gen: gen, kind: evPeerState, peerState: state})
	})

	if role == RoleAnswerer {
		// The offerer opens the channel; capture it when it arrives.
		pc.OnDataChannel(func(dc dataChannel) {
			s.wireChannel(gen, dc)
			s.post(event{gen: gen, kind: evChannel, channel: dc})
		})
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		pc.Close()
		return fmt.Errorf("%w: session was reset during initialization", ErrInvalidState)
	}
	s.pc = pc
	s.state = StateGathering
	s.mu.Unlock()

	util.LogDebug("session initialized as %s", role)
	s.post(event{gen: gen, kind: evStateChanged, state: StateGathering})

	return nil
}

// Reset closes the current connection and returns the session to idle.
func (s *Session) Reset() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	gen := s.resetLocked(RoleNone)
	s.post(event{gen: gen, kind: evStateChanged, state: StateIdle})
}

// Close shuts down the connection and stops the event loop.
func (s *Session) Close() error {
	s.opMu.Lock()
	s.mu.Lock()
	pc, dc := s.pc, s.dc
	s.pc, s.dc, s.sender = nil, nil, nil
	s.gen++
	s.genCancel()
	s.mu.Unlock()
	s.opMu.Unlock()

	s.cancel()
	<-s.loopDone

	return closePeer(pc, dc)
}

// resetLocked starts a new generation: events from the previous connection are
// ignored from here on. The caller holds opMu.
func (s *Session) resetLocked(role Role) uint64 {
	s.mu.Lock()
	pc, dc := s.pc, s.dc

	s.gen++
	s.genCancel()
	s.genCtx, s.genCancel = context.WithCancel(s.ctx)

	s.role = role
	s.state = StateIdle
	s.pc, s.dc, s.sender = nil, nil, nil
	s.local, s.remote = nil, nil
	s.candidates = nil
	s.gatheringComplete = false
	s.ready = make(chan struct{})
	s.readyClosed = false
	s.skipped = nil
	gen := s.gen
	s.mu.Unlock()

	if err := closePeer(pc, dc); err != nil {
		util.LogDebug("closing previous connection: %v", err)
	}

	return gen
}

func closePeer(pc peerConn, dc dataChannel) error {
	var errs []error
	if dc != nil {
		errs = append(errs, dc.Close())
	}
	if pc != nil {
		errs = append(errs, pc.Close())
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Negotiation
// ---------------------------------------------------------------------------

// CreateOffer opens the reliable ordered message channel and commits a local
// offer. The channel is created first so the offer advertises it. Gathering
// continues in the background.
func (s *Session) CreateOffer() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	pc, gen := s.pc, s.gen
	if s.role != RoleOfferer || s.state != StateGathering || s.local != nil || pc == nil {
		err := fmt.Errorf("%w: cannot create offer as %s in state %s", ErrInvalidState, s.role, s.state)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	ordered := true
	dc, err := pc.CreateDataChannel(channelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return fmt.Errorf("%w: create data channel: %v", ErrTransportUnavailable, err)
	}
	s.wireChannel(gen, dc)

	s.mu.Lock()
	s.dc = dc
	s.mu.Unlock()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		s.dropChannel(dc)
		return fmt.Errorf("%w: create offer: %v", ErrTransportUnavailable, err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		s.dropChannel(dc)
		return fmt.Errorf("%w: set local description: %v", ErrTransportUnavailable, err)
	}

	s.commitLocal(gen, offer)
	return nil
}

// dropChannel closes a channel created for an offer that was never committed,
// so a retry starts without it.
func (s *Session) dropChannel(dc dataChannel) {
	s.mu.Lock()
	if s.dc == dc {
		s.dc = nil
	}
	s.mu.Unlock()

	if err := dc.Close(); err != nil {
		util.LogDebug("failed to close abandoned channel: %v", err)
	}
}

// CreateAnswer applies the offerer's packet, replays its candidates and
// commits a local answer.
func (s *Session) CreateAnswer(remote codec.Packet) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	pc, gen := s.pc, s.gen
	if s.role != RoleAnswerer || s.state != StateGathering || s.remote != nil || pc == nil {
		err := fmt.Errorf("%w: cannot create answer as %s in state %s", ErrInvalidState, s.role, s.state)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := s.applyRemote(pc, gen, remote); err != nil {
		return err
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("%w: create answer: %v", ErrTransportUnavailable, err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("%w: set local description: %v", ErrTransportUnavailable, err)
	}

	s.commitLocal(gen, answer)
	return nil
}

// CompleteNegotiation applies the answerer's packet on the offerer side.
// The remote description can be set only once per generation.
func (s *Session) CompleteNegotiation(remote codec.Packet) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	pc, gen := s.pc, s.gen
	var err error
	switch {
	case s.role != RoleOfferer:
		err = fmt.Errorf("%w: only the offerer completes negotiation (role %s)", ErrInvalidState, s.role)
	case s.remote != nil:
		err = fmt.Errorf("%w: remote description already set", ErrInvalidState)
	case s.local == nil || pc == nil:
		err = fmt.Errorf("%w: no local offer yet", ErrInvalidState)
	case s.state.Terminal():
		err = fmt.Errorf("%w: session is %s", ErrInvalidState, s.state)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.applyRemote(pc, gen, remote)
}

// applyRemote sets the remote description and replays the peer's candidates
// one at a time. A failing candidate is logged and skipped.
func (s *Session) applyRemote(pc peerConn, gen uint64, remote codec.Packet) error {
	if err := pc.SetRemoteDescription(remote.Description); err != nil {
		return fmt.Errorf("failed to apply remote description: %w", err)
	}

	desc := remote.Description
	var skipped []*CandidateError

	for i, c := range remote.Candidates {
		if err := pc.AddICECandidate(c); err != nil {
			ce := &CandidateError{Index: i, Candidate: c, Err: err}
			util.LogWarning("skipping %v", ce)
			util.Stats.AddCandidateSkipped()
			skipped = append(skipped, ce)
		}
	}

	s.mu.Lock()
	if s.gen == gen {
		s.remote = &desc
		s.skipped = append(s.skipped, skipped...)
	}
	s.mu.Unlock()

	util.LogDebug("applied remote %s with %d candidates (%d skipped)",
		desc.Type, len(remote.Candidates), len(skipped))

	return nil
}

// commitLocal records the local description and re-evaluates readiness.
func (s *Session) commitLocal(gen uint64, desc webrtc.SessionDescription) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.local = &desc
	changed := s.checkReadyLocked()
	state := s.state
	s.mu.Unlock()

	if changed {
		s.post(event{gen: gen, kind: evStateChanged, state: state})
	}
}

// checkReadyLocked releases WaitPacket once gathering is complete and a local
// description exists, and makes the observational move to negotiating.
func (s *Session) checkReadyLocked() bool {
	if !s.gatheringComplete || s.local == nil || s.readyClosed {
		return false
	}
	s.readyClosed = true
	close(s.ready)
	return s.advanceLocked(StateNegotiating)
}

// Packet returns the local description and every candidate gathered so far.
// It fails with ErrNotReady until gathering is complete.
func (s *Session) Packet() (codec.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.gatheringComplete || s.local == nil {
		return codec.Packet{}, ErrNotReady
	}

	desc := *s.local
	if s.pc != nil {
		// After gathering, the current description also lists the candidates.
		if ld := s.pc.LocalDescription(); ld != nil {
			desc = webrtc.SessionDescription{Type: ld.Type, SDP: ld.SDP}
		}
	}

	candidates := make([]webrtc.ICECandidateInit, len(s.candidates))
	copy(candidates, s.candidates)

	return codec.Packet{Description: desc, Candidates: candidates}, nil
}

// WaitPacket blocks until the negotiation packet is ready. No timeout is
// applied beyond ctx.
func (s *Session) WaitPacket(ctx context.Context) (codec.Packet, error) {
	s.mu.Lock()
	ready, genCtx := s.ready, s.genCtx
	s.mu.Unlock()

	select {
	case <-ready:
		return s.Packet()
	case <-genCtx.Done():
		return codec.Packet{}, fmt.Errorf("%w: session was reset", ErrInvalidState)
	case <-ctx.Done():
		return codec.Packet{}, ctx.Err()
	}
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// Send enqueues a message on the open channel. Messages are delivered in
// order. While the channel is not open the message is dropped and
// ErrNotConnected is returned.
func (s *Session) Send(data []byte) error {
	s.mu.Lock()
	snd, state, ctx := s.sender, s.state, s.genCtx
	s.mu.Unlock()

	if state != StateConnected || snd == nil {
		util.Stats.AddDropped()
		return ErrNotConnected
	}

	return snd.send(ctx, data)
}

// wireChannel registers the channel callbacks for one generation. It must run
// before the channel can deliver anything.
func (s *Session) wireChannel(gen uint64, dc dataChannel) {
	dc.OnOpen(func() {
		s.post(event{gen: gen, kind: evChannelOpen, channel: dc})
	})
	dc.OnClose(func() {
		s.post(event{gen: gen, kind: evChannelClose})
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		data := make([]byte, len(msg.Data))
		copy(data, msg.Data)
		s.post(event{gen: gen, kind: evMessage, channel: dc, data: data})
	})
}
