// Package game runs rock-paper-scissors rounds over a connected message
// channel. Given a ready Transport, it dispatches incoming protocol messages
// into the current Round and sends the local player's moves.
package game

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/1ureka/janken/internal/protocol"
	"github.com/1ureka/janken/internal/rules"
	"github.com/1ureka/janken/internal/util"
)

var (
	// ErrAlreadySelected rejects a second hand in the same round.
	ErrAlreadySelected = errors.New("hand already selected for this round")

	// ErrNotHost rejects a rematch request from the guest.
	ErrNotHost = errors.New("only the host can start a new game")

	// ErrRoundInProgress rejects a rematch before the current round has an outcome.
	ErrRoundInProgress = errors.New("round has no outcome yet")
)

// Transport is the message channel a game runs on. *transport.Session
// satisfies it.
type Transport interface {
	Send(data []byte) error
	OnMessage(fn func([]byte))
}

// Option configures a Game.
type Option func(*Game)

// WithIDFunc replaces the round id generator.
func WithIDFunc(fn func() string) Option {
	return func(g *Game) { g.newID = fn }
}

// Game holds the round state of one side of a connected pair.
type Game struct {
	tr    Transport
	host  bool
	newID func() string

	mu       sync.Mutex
	round    Round
	retired  map[string]struct{}
	handlers []func(Round)
}

// New starts an empty round on tr. host marks the side allowed to start a
// rematch.
func New(tr Transport, host bool, opts ...Option) *Game {
	g := &Game{
		tr:      tr,
		host:    host,
		newID:   uuid.NewString,
		retired: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	tr.OnMessage(g.Receive)

	return g
}

// Host reports whether this side may start a new game.
func (g *Game) Host() bool { return g.host }

// Round returns a copy of the current round.
func (g *Game) Round() Round {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.round
}

// OnChange registers a handler that receives a copy of the round after every change.
func (g *Game) OnChange(fn func(Round)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers = append(g.handlers, fn)
}

// Select records the local hand and announces it to the opponent. The first
// side to pick in a round mints its id.
//
// The hand stays selected even if the announcement cannot be sent; the send
// error is returned.
func (g *Game) Select(hand rules.Hand) error {
	if !hand.Valid() {
		return fmt.Errorf("invalid hand: %q", hand)
	}

	g.mu.Lock()
	if g.round.MyHand != rules.Unset {
		g.mu.Unlock()
		return ErrAlreadySelected
	}
	if g.round.ID == "" {
		g.round.ID = g.newID()
	}
	g.round.MyHand = hand
	g.round.settle()
	msg := protocol.HandSelected{Hand: hand, RoundID: g.round.ID}
	round, handlers := g.round, g.handlers
	g.mu.Unlock()

	notify(handlers, round)
	util.LogDebug("[%s] selected %s", shortID(round.ID), hand)

	return g.send(msg)
}

// StartNewGame clears a decided round and tells the opponent to do the same.
func (g *Game) StartNewGame() error {
	if !g.host {
		return ErrNotHost
	}

	g.mu.Lock()
	if !g.round.Decided() {
		g.mu.Unlock()
		return ErrRoundInProgress
	}
	g.resetLocked()
	round, handlers := g.round, g.handlers
	g.mu.Unlock()

	notify(handlers, round)
	util.LogDebug("new game started")

	return g.send(protocol.NewGame{})
}

// Receive handles one payload from the channel. Malformed payloads and
// unknown message types are logged and ignored.
func (g *Game) Receive(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		util.LogWarning("ignoring game message: %v", err)
		return
	}

	switch m := msg.(type) {
	case protocol.HandSelected:
		g.receiveHand(m)
	case protocol.NewGame:
		g.mu.Lock()
		g.resetLocked()
		round, handlers := g.round, g.handlers
		g.mu.Unlock()

		util.LogDebug("opponent started a new game")
		notify(handlers, round)
	case protocol.Unknown:
		util.LogDebug("ignoring unknown message type %q", m.Type)
	}
}

func (g *Game) receiveHand(m protocol.HandSelected) {
	g.mu.Lock()

	if _, ok := g.retired[m.RoundID]; ok {
		g.mu.Unlock()
		util.LogDebug("[%s] discarding hand for a finished round", shortID(m.RoundID))
		return
	}
	if g.round.OpponentHand != rules.Unset {
		g.mu.Unlock()
		util.LogDebug("[%s] discarding duplicate opponent hand", shortID(m.RoundID))
		return
	}

	switch {
	case g.round.ID == "":
		g.round.ID = m.RoundID
	case g.round.ID != m.RoundID:
		// Both sides picked before hearing from each other and minted
		// different ids. Each side keeps the smaller one.
		if m.RoundID < g.round.ID {
			g.retired[g.round.ID] = struct{}{}
			g.round.ID = m.RoundID
		} else {
			g.retired[m.RoundID] = struct{}{}
		}
	}

	g.round.OpponentHand = m.Hand
	g.round.settle()
	round, handlers := g.round, g.handlers
	g.mu.Unlock()

	if round.Decided() {
		util.LogDebug("[%s] %s vs %s: %s", shortID(round.ID), round.MyHand, round.OpponentHand, round.Outcome)
	}
	notify(handlers, round)
}

// resetLocked retires the current id and empties the round.
func (g *Game) resetLocked() {
	if g.round.ID != "" {
		g.retired[g.round.ID] = struct{}{}
	}
	g.round = Round{}
}

func (g *Game) send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := g.tr.Send(data); err != nil {
		return fmt.Errorf("failed to send %T: %w", msg, err)
	}
	return nil
}

func notify(handlers []func(Round), r Round) {
	for _, fn := range handlers {
		fn(r)
	}
}

// shortID trims a round id for log lines.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
