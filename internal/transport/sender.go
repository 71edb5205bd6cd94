package transport

import (
	"context"

	"github.com/1ureka/janken/internal/util"
)

// sendBufferSize is the outgoing message channel capacity.
const sendBufferSize = 64

// sender is a goroutine-based message writer that serializes all writes to a
// single open DataChannel, preserving enqueue order.
type sender struct {
	inbox chan []byte
}

// newSender creates a sender for an open channel and starts the background
// loop. The loop exits when ctx is cancelled.
func newSender(ctx context.Context, dc dataChannel) *sender {
	s := &sender{inbox: make(chan []byte, sendBufferSize)}
	go s.loop(ctx, dc)
	return s
}

// loop is the single-writer goroutine.
func (s *sender) loop(ctx context.Context, dc dataChannel) {
	for {
		select {
		case data := <-s.inbox:
			if err := dc.Send(data); err != nil {
				util.LogError("failed to send message (%d bytes): %v", len(data), err)
				util.Stats.AddDropped()
				continue
			}
			util.Stats.AddSent(len(data))
		case <-ctx.Done():
			return
		}
	}
}

// send enqueues a message for transmission. It blocks if the internal buffer
// is full and reports ErrNotConnected once ctx is cancelled.
func (s *sender) send(ctx context.Context, data []byte) error {
	select {
	case s.inbox <- data:
		return nil
	case <-ctx.Done():
		util.Stats.AddDropped()
		return ErrNotConnected
	}
}
