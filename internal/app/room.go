// Package app contains the top-level orchestration of one game room: it
// drives the transport session through negotiation for the host or the
// guest, hands the connected channel to a game, and publishes snapshots of
// the whole room to observers.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/1ureka/janken/internal/codec"
	"github.com/1ureka/janken/internal/config"
	"github.com/1ureka/janken/internal/game"
	"github.com/1ureka/janken/internal/rules"
	"github.com/1ureka/janken/internal/signaling"
	"github.com/1ureka/janken/internal/transport"
	"github.com/1ureka/janken/internal/util"
)

var (
	// ErrNoInvitation means no share link has been produced yet.
	ErrNoInvitation = errors.New("no invitation yet")

	// ErrRoomBusy rejects a new negotiation while a game is connected, or an
	// offer link while this side is waiting for its guest.
	ErrRoomBusy = errors.New("room is busy")

	// ErrNoGame means the channel is not connected yet.
	ErrNoGame = errors.New("no game in progress")

	// ErrDisconnected is reported by WaitConnected when the session fails.
	ErrDisconnected = errors.New("connection lost")
)

// Session is the transport a room drives. *transport.Session satisfies it.
type Session interface {
	Initialize(role transport.Role) error
	CreateOffer() error
	CreateAnswer(remote codec.Packet) error
	CompleteNegotiation(remote codec.Packet) error
	WaitPacket(ctx context.Context) (codec.Packet, error)
	Send(data []byte) error
	OnMessage(fn func([]byte))
	OnStateChange(fn func(transport.State))
	State() transport.State
	Reset()
	Close() error
}

// Invitation is what one player hands to the other.
type Invitation struct {
	Kind   signaling.Kind
	URL    string // link carrier; also the QR code content
	Manual string // manual carrier JSON
	RoomID string
}

// Room owns one session and, once connected, one game.
type Room struct {
	cfg  config.Config
	sess Session

	mu         sync.Mutex
	role       config.Role
	invitation *Invitation
	roomID     string
	game       *game.Game
	lastErr    string
	connected  chan struct{}
	failed     chan struct{}
	restarted  chan struct{} // closed when connected and failed are replaced
	subs       map[int]chan Snapshot
	nextSub    int

	// pmu orders snapshot publication.
	pmu sync.Mutex

	// hmu guards deliver, the current game's message handler.
	hmu     sync.Mutex
	deliver func([]byte)
}

// NewRoom wires a room to sess. The room takes ownership of the session.
func NewRoom(cfg config.Config, sess Session) *Room {
	r := &Room{
		cfg:       cfg,
		sess:      sess,
		connected: make(chan struct{}),
		failed:    make(chan struct{}),
		restarted: make(chan struct{}),
		subs:      make(map[int]chan Snapshot),
	}

	sess.OnMessage(r.onMessage)
	sess.OnStateChange(r.onStateChange)

	return r
}

// ---------------------------------------------------------------------------
// Negotiation
// ---------------------------------------------------------------------------

// Create starts a room as host and returns the offer invitation once
// candidate gathering is complete.
func (r *Room) Create(ctx context.Context) (Invitation, error) {
	if err := r.begin(config.RoleHost); err != nil {
		return Invitation{}, err
	}

	if err := r.sess.Initialize(transport.RoleOfferer); err != nil {
		return Invitation{}, r.fail(fmt.Errorf("failed to initialize session: %w", err))
	}
	if err := r.sess.CreateOffer(); err != nil {
		return Invitation{}, r.fail(fmt.Errorf("failed to create offer: %w", err))
	}

	pkt, err := r.sess.WaitPacket(ctx)
	if err != nil {
		return Invitation{}, r.fail(fmt.Errorf("failed to gather offer: %w", err))
	}

	return r.invite(signaling.KindOffer, pkt, util.RoomIDFromSDP(pkt.Description.SDP))
}

// Join answers the host's invitation, given as a link, a bare code or manual
// JSON, and returns the answer invitation. Malformed text leaves the room
// untouched.
func (r *Room) Join(ctx context.Context, text string) (Invitation, error) {
	kind, offer, err := signaling.ParseAny(text)
	if err != nil {
		return Invitation{}, err
	}
	if kind != signaling.KindOffer {
		return Invitation{}, fmt.Errorf("%w: expected an offer, got an %s", signaling.ErrWrongKind, kind)
	}
	return r.JoinPacket(ctx, offer)
}

// JoinPacket is Join for an already decoded offer, e.g. from a QR scan.
func (r *Room) JoinPacket(ctx context.Context, offer codec.Packet) (Invitation, error) {
	if kind, err := signaling.KindOf(offer); err != nil || kind != signaling.KindOffer {
		return Invitation{}, fmt.Errorf("%w: expected an offer", signaling.ErrWrongKind)
	}
	if err := r.begin(config.RoleGuest); err != nil {
		return Invitation{}, err
	}

	roomID := util.RoomIDFromSDP(offer.Description.SDP)
	r.mu.Lock()
	r.roomID = roomID
	r.mu.Unlock()

	if err := r.sess.Initialize(transport.RoleAnswerer); err != nil {
		return Invitation{}, r.fail(fmt.Errorf("failed to initialize session: %w", err))
	}
	if err := r.sess.CreateAnswer(offer); err != nil {
		return Invitation{}, r.fail(fmt.Errorf("failed to answer offer: %w", err))
	}

	pkt, err := r.sess.WaitPacket(ctx)
	if err != nil {
		return Invitation{}, r.fail(fmt.Errorf("failed to gather answer: %w", err))
	}

	return r.invite(signaling.KindAnswer, pkt, roomID)
}

// Accept completes the host's negotiation with the guest's answer. Malformed
// text leaves the session untouched.
func (r *Room) Accept(text string) error {
	kind, answer, err := signaling.ParseAny(text)
	if err != nil {
		return err
	}
	if kind != signaling.KindAnswer {
		return fmt.Errorf("%w: expected an answer, got an %s", signaling.ErrWrongKind, kind)
	}
	return r.AcceptPacket(answer)
}

// AcceptPacket is Accept for an already decoded answer.
func (r *Room) AcceptPacket(answer codec.Packet) error {
	if kind, err := signaling.KindOf(answer); err != nil || kind != signaling.KindAnswer {
		return fmt.Errorf("%w: expected an answer", signaling.ErrWrongKind)
	}
	if err := r.sess.CompleteNegotiation(answer); err != nil {
		return fmt.Errorf("failed to apply answer: %w", err)
	}
	util.LogInfo("answer applied, waiting for the channel to open")
	r.publish()
	return nil
}

// Consume handles a link opened on the local page: an offer link joins the
// room as guest, an answer link completes the host's negotiation.
func (r *Room) Consume(ctx context.Context, link string) error {
	kind, pkt, err := signaling.ParseURL(link)
	if err != nil {
		r.setError(err)
		return err
	}

	switch kind {
	case signaling.KindOffer:
		if r.hosting() {
			err = fmt.Errorf("%w: waiting for the answer to this room's offer", ErrRoomBusy)
			break
		}
		_, err = r.JoinPacket(ctx, pkt)
	case signaling.KindAnswer:
		err = r.AcceptPacket(pkt)
	}
	if err != nil {
		r.setError(err)
	}
	return err
}

// hosting reports whether this side has shared an offer and is still waiting
// for its guest.
func (r *Room) hosting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.role != config.RoleHost || r.invitation == nil || r.game != nil {
		return false
	}
	select {
	case <-r.failed:
		return false
	default:
		return true
	}
}

// begin resets the room for a new negotiation in the given role.
func (r *Room) begin(role config.Role) error {
	r.mu.Lock()
	if r.game != nil && r.sess.State() == transport.StateConnected {
		r.mu.Unlock()
		return ErrRoomBusy
	}
	r.role = role
	r.invitation = nil
	r.roomID = ""
	r.game = nil
	r.lastErr = ""
	r.restartLocked()
	r.mu.Unlock()

	r.setDeliver(nil)
	return nil
}

// restartLocked replaces the lifecycle channels and wakes WaitConnected
// callers still holding the old ones.
func (r *Room) restartLocked() {
	r.connected = make(chan struct{})
	r.failed = make(chan struct{})
	close(r.restarted)
	r.restarted = make(chan struct{})
}

func (r *Room) invite(kind signaling.Kind, pkt codec.Packet, roomID string) (Invitation, error) {
	link, err := signaling.BuildURL(r.cfg.BaseURL, kind, pkt)
	if err != nil {
		return Invitation{}, r.fail(err)
	}
	manual, err := signaling.ManualText(pkt)
	if err != nil {
		return Invitation{}, r.fail(err)
	}

	inv := Invitation{Kind: kind, URL: link, Manual: manual, RoomID: roomID}

	r.mu.Lock()
	r.invitation = &inv
	r.roomID = roomID
	r.mu.Unlock()

	util.LogDebug("room %s: %s ready (%d bytes)", roomID, kind, len(link))
	r.publish()

	return inv, nil
}

// fail records err for observers and returns it.
func (r *Room) fail(err error) error {
	r.setError(err)
	return err
}

func (r *Room) setError(err error) {
	r.mu.Lock()
	r.lastErr = err.Error()
	r.mu.Unlock()
	r.publish()
}

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

func (r *Room) onStateChange(state transport.State) {
	switch state {
	case transport.StateConnected:
		r.mu.Lock()
		host := r.role == config.RoleHost
		if r.game == nil {
			g := game.New(roomTransport{r}, host)
			g.OnChange(func(game.Round) { r.publish() })
			r.game = g
		}
		select {
		case <-r.connected:
		default:
			close(r.connected)
		}
		roomID := r.roomID
		r.mu.Unlock()

		util.LogSuccess("room %s connected", roomID)

	case transport.StateDisconnected, transport.StateFailed:
		r.mu.Lock()
		select {
		case <-r.failed:
		default:
			close(r.failed)
		}
		r.mu.Unlock()

		util.LogWarning("connection %s", state)
	}

	r.publish()
}

// WaitConnected blocks until the current negotiation connects and returns its
// game. A negotiation started while waiting replaces the one waited on.
func (r *Room) WaitConnected(ctx context.Context) (*game.Game, error) {
	for {
		r.mu.Lock()
		connected, failed, restarted := r.connected, r.failed, r.restarted
		r.mu.Unlock()

		select {
		case <-connected:
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.game, nil
		case <-failed:
			return nil, ErrDisconnected
		case <-restarted:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Failed is closed when the current connection is lost.
func (r *Room) Failed() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// Game returns the connected game, or nil before the channel opens.
func (r *Room) Game() *game.Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game
}

// Select plays a hand in the current round.
func (r *Room) Select(hand rules.Hand) error {
	g := r.Game()
	if g == nil {
		return ErrNoGame
	}
	return g.Select(hand)
}

// StartNewGame starts the next round. Only the host may do so.
func (r *Room) StartNewGame() error {
	g := r.Game()
	if g == nil {
		return ErrNoGame
	}
	return g.StartNewGame()
}

// Invitation returns the latest invitation this side produced.
func (r *Room) Invitation() (Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invitation == nil {
		return Invitation{}, ErrNoInvitation
	}
	return *r.invitation, nil
}

// QRCode renders the invitation link as a PNG.
func (r *Room) QRCode() ([]byte, error) {
	inv, err := r.Invitation()
	if err != nil {
		return nil, err
	}
	return signaling.RenderPNG(inv.URL, r.cfg.QRSize)
}

// CopyInvitation puts the invitation link on the clipboard.
func (r *Room) CopyInvitation(cb signaling.Clipboard) error {
	inv, err := r.Invitation()
	if err != nil {
		return err
	}
	return cb.WriteText(inv.URL)
}

// Reset drops the connection and returns the room to its initial state.
func (r *Room) Reset() {
	r.mu.Lock()
	r.role = ""
	r.invitation = nil
	r.roomID = ""
	r.game = nil
	r.lastErr = ""
	r.restartLocked()
	r.mu.Unlock()

	r.setDeliver(nil)
	r.sess.Reset()
	r.publish()
}

// Close shuts the session down and ends every subscription.
func (r *Room) Close() error {
	err := r.sess.Close()

	r.mu.Lock()
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	r.mu.Unlock()

	return err
}

// ---------------------------------------------------------------------------
// Game channel
// ---------------------------------------------------------------------------

// roomTransport hands the session's channel to a game.
type roomTransport struct {
	r *Room
}

func (t roomTransport) Send(data []byte) error { return t.r.sess.Send(data) }

func (t roomTransport) OnMessage(fn func([]byte)) { t.r.setDeliver(fn) }

func (r *Room) setDeliver(fn func([]byte)) {
	r.hmu.Lock()
	defer r.hmu.Unlock()
	r.deliver = fn
}

func (r *Room) onMessage(data []byte) {
	r.hmu.Lock()
	fn := r.deliver
	r.hmu.Unlock()

	if fn == nil {
		util.LogDebug("dropping message received before the game started")
		return
	}
	fn(data)
}
