package app

import (
	"github.com/1ureka/janken/internal/config"
	"github.com/1ureka/janken/internal/game"
	"github.com/1ureka/janken/internal/rules"
)

// Snapshot is the observable state of a room.
type Snapshot struct {
	Role   config.Role `json:"role,omitempty"`
	State  string      `json:"state"`
	RoomID string      `json:"roomId,omitempty"`
	Link   string      `json:"link,omitempty"`
	Manual string      `json:"manual,omitempty"`
	Round  *RoundView  `json:"round,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// RoundView is a round as shown to the local player.
type RoundView struct {
	ID           string        `json:"id,omitempty"`
	MyHand       rules.Hand    `json:"myHand,omitempty"`
	OpponentHand rules.Hand    `json:"opponentHand,omitempty"`
	Outcome      rules.Outcome `json:"outcome,omitempty"`
	Waiting      bool          `json:"waiting"`
	CanRematch   bool          `json:"canRematch"`
}

func viewRound(g *game.Game) *RoundView {
	if g == nil {
		return nil
	}
	rd := g.Round()
	return &RoundView{
		ID:           rd.ID,
		MyHand:       rd.MyHand,
		OpponentHand: rd.OpponentHand,
		Outcome:      rd.Outcome,
		Waiting:      rd.Waiting(),
		CanRematch:   g.Host() && rd.Decided(),
	}
}

// Snapshot returns the current state of the room.
func (r *Room) Snapshot() Snapshot {
	state := r.sess.State()

	r.mu.Lock()
	snap := Snapshot{
		Role:   r.role,
		State:  state.String(),
		RoomID: r.roomID,
		Error:  r.lastErr,
	}
	if r.invitation != nil {
		snap.Link = r.invitation.URL
		snap.Manual = r.invitation.Manual
	}
	g := r.game
	r.mu.Unlock()

	snap.Round = viewRound(g)
	return snap
}

// Subscribe returns a channel that always holds the latest snapshot, starting
// with the current one. Intermediate snapshots may be skipped by a slow
// reader. Call cancel to unsubscribe.
func (r *Room) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	ch <- r.Snapshot()

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// publish pushes the current snapshot to every subscriber, replacing any
// snapshot the subscriber has not read yet.
func (r *Room) publish() {
	r.pmu.Lock()
	defer r.pmu.Unlock()

	snap := r.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
