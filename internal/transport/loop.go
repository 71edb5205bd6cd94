package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/janken/internal/util"
)

type eventKind int

const (
	evCandidate     eventKind = iota // a local candidate was gathered
	evGatheringDone                  // local gathering finished
	evChannel                        // the answerer received the offerer's channel
	evChannelOpen
	evChannelClose
	evMessage
	evPeerState    // PeerConnection state changed
	evStateChanged // an operation changed the state; notify handlers
)

type event struct {
	gen       uint64
	kind      eventKind
	candidate webrtc.ICECandidateInit
	channel   dataChannel
	data      []byte
	peerState webrtc.PeerConnectionState
	state     State
}

// post enqueues an event for the loop. It blocks while the queue is full and
// drops the event once the session is closed.
func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// loop is the single consumer of session events.
func (s *Session) loop() {
	defer close(s.loopDone)

	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case <-s.ctx.Done():
			return
		}
	}
}

// handle applies one event under the lock, then runs handlers without it.
func (s *Session) handle(ev event) {
	s.mu.Lock()
	if ev.gen != s.gen {
		s.mu.Unlock()
		return
	}

	notify := false
	var message []byte

	switch ev.kind {
	case evCandidate:
		s.candidates = append(s.candidates, ev.candidate)
		util.LogDebug("gathered candidate #%d: %s", len(s.candidates), ev.candidate.Candidate)

	case evGatheringDone:
		s.gatheringComplete = true
		util.LogDebug("candidate gathering complete (%d candidates)", len(s.candidates))
		notify = s.checkReadyLocked()

	case evChannel:
		if s.dc == nil {
			s.dc = ev.channel
			util.LogDebug("received message channel from offerer")
		}

	case evChannelOpen:
		notify = s.openLocked(ev.channel)

	case evChannelClose:
		util.LogDebug("message channel closed")
		if s.state == StateConnected {
			notify = s.advanceLocked(StateDisconnected)
		}

	case evPeerState:
		util.LogDebug("PeerConnection state: %s", ev.peerState.String())
		switch ev.peerState {
		case webrtc.PeerConnectionStateDisconnected:
			notify = s.advanceLocked(StateDisconnected)
		case webrtc.PeerConnectionStateFailed:
			notify = s.advanceLocked(StateFailed)
		}

	case evMessage:
		// A delivered message proves the channel is open even if its open
		// event is still queued behind it.
		if s.state != StateConnected {
			notify = s.openLocked(ev.channel)
		}
		if s.state == StateConnected {
			message = ev.data
			util.Stats.AddRecv(len(ev.data))
		}

	case evStateChanged:
		notify = s.state == ev.state
	}

	state := s.state
	stateHandlers := s.stateHandlers
	msgHandlers := s.msgHandlers
	s.mu.Unlock()

	if notify {
		for _, fn := range stateHandlers {
			fn(state)
		}
	}

	if message != nil {
		for _, fn := range msgHandlers {
			fn(message)
		}
	}
}

// openLocked declares the session connected and starts the writer.
func (s *Session) openLocked(dc dataChannel) bool {
	if s.dc != nil && dc != s.dc {
		return false
	}
	if !s.advanceLocked(StateConnected) {
		return false
	}
	if s.dc == nil {
		s.dc = dc
	}
	if s.sender == nil {
		s.sender = newSender(s.genCtx, s.dc)
	}
	return true
}

// advanceLocked moves the state forward if the transition rules allow it.
func (s *Session) advanceLocked(to State) bool {
	if !canAdvance(s.state, to) {
		return false
	}
	util.LogDebug("session state: %s -> %s", s.state, to)
	s.state = to
	return true
}
