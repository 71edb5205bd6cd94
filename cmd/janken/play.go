package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/janken/internal/app"
	"github.com/1ureka/janken/internal/codec"
	"github.com/1ureka/janken/internal/config"
	"github.com/1ureka/janken/internal/game"
	"github.com/1ureka/janken/internal/rules"
	"github.com/1ureka/janken/internal/signaling"
	"github.com/1ureka/janken/internal/transport"
	"github.com/1ureka/janken/internal/util"
	"github.com/1ureka/janken/internal/web"
)

// scanInterval is the delay between two reads of the scanned image files.
const scanInterval = time.Second

// player drives one room from the terminal.
type player struct {
	cfg   config.Config
	room  *app.Room
	lines <-chan string
	clip  signaling.Clipboard
	out   io.Writer // carrier text the user copies
}

// run executes the chosen role until the game ends or ctx is cancelled.
func run(ctx context.Context, cfg config.Config) error {
	opts := []transport.Option{transport.WithSTUNServers(cfg.STUNServers)}
	if cfg.IncludeLoopback {
		opts = append(opts, transport.WithLoopbackCandidates())
	}

	room := app.NewRoom(cfg, transport.NewSession(opts...))
	defer room.Close()

	if cfg.UIAddr != "" {
		srv := web.New(ctx, room)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.UIAddr); err != nil {
				util.LogWarning("display page unavailable: %v", err)
			}
		}()
		util.LogInfo("display page: http://%s/", cfg.UIAddr)
	}

	p := &player{
		cfg:   cfg,
		room:  room,
		lines: readLines(os.Stdin),
		clip:  signaling.SystemClipboard{},
		out:   os.Stdout,
	}

	var err error
	if cfg.Role == config.RoleHost {
		err = p.host(ctx)
	} else {
		err = p.join(ctx)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ---------------------------------------------------------------------------
// Negotiation
// ---------------------------------------------------------------------------

func (p *player) host(ctx context.Context) error {
	spinner, _ := pterm.DefaultSpinner.Start("Gathering network candidates...")
	inv, err := p.room.Create(ctx)
	if err != nil {
		spinner.Fail("Could not create a room")
		return err
	}
	spinner.Success(fmt.Sprintf("Room %s created", inv.RoomID))

	p.share(inv, "Send this invitation to your opponent")
	pterm.Info.Println("Paste their answer here (link, code or JSON), or open their answer link on this computer.")

	stopScan := p.scan(ctx, signaling.KindAnswer, func(pkt codec.Packet) {
		if err := p.room.AcceptPacket(pkt); err != nil {
			util.LogWarning("%v", err)
		}
	})
	defer stopScan()

	connected := p.waitConnected(ctx)
	for {
		select {
		case res := <-connected:
			if res.err != nil {
				return res.err
			}
			stopScan()
			return p.play(ctx, res.game)

		case text, ok := <-p.lines:
			if !ok {
				p.lines = nil
				continue
			}
			if err := p.room.Accept(text); err != nil {
				util.LogWarning("%v", err)
				continue
			}
			util.LogInfo("Answer accepted, connecting...")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *player) join(ctx context.Context) error {
	var (
		inv app.Invitation
		err error
	)
	if p.cfg.Link != "" {
		inv, err = p.answer(ctx, p.cfg.Link)
	} else {
		inv, err = p.awaitOffer(ctx)
	}
	if err != nil {
		return err
	}

	p.share(inv, "Send this answer back to the host")
	pterm.Info.Println("Waiting for the host to apply the answer...")

	connected := p.waitConnected(ctx)
	for {
		select {
		case res := <-connected:
			if res.err != nil {
				return res.err
			}
			return p.play(ctx, res.game)
		case _, ok := <-p.lines:
			if !ok {
				p.lines = nil
				continue
			}
			util.LogInfo("Still waiting for the host...")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// awaitOffer waits for the host's offer from whichever carrier delivers it
// first: pasted text, a scanned QR code or a link opened on the display page.
func (p *player) awaitOffer(ctx context.Context) (app.Invitation, error) {
	pterm.Info.Println("Paste the host's invitation here (link, code or JSON), or open their link on this computer.")

	scanned := make(chan codec.Packet, 1)
	stopScan := p.scan(ctx, signaling.KindOffer, func(pkt codec.Packet) { scanned <- pkt })
	defer stopScan()

	updates, cancel := p.room.Subscribe()
	defer cancel()

	for {
		select {
		case text, ok := <-p.lines:
			if !ok {
				p.lines = nil
				continue
			}
			inv, err := p.answer(ctx, text)
			if err != nil {
				util.LogWarning("%v", err)
				continue
			}
			return inv, nil

		case pkt := <-scanned:
			spinner, _ := pterm.DefaultSpinner.Start("Answering the scanned invitation...")
			inv, err := p.room.JoinPacket(ctx, pkt)
			if err != nil {
				spinner.Fail(err.Error())
				continue
			}
			spinner.Success(fmt.Sprintf("Joined room %s", inv.RoomID))
			return inv, nil

		case <-updates:
			// The display page consumed an offer link.
			if inv, err := p.room.Invitation(); err == nil && inv.Kind == signaling.KindAnswer {
				return inv, nil
			}

		case <-ctx.Done():
			return app.Invitation{}, ctx.Err()
		}
	}
}

func (p *player) answer(ctx context.Context, text string) (app.Invitation, error) {
	spinner, _ := pterm.DefaultSpinner.Start("Answering the invitation...")
	inv, err := p.room.Join(ctx, text)
	if err != nil {
		spinner.Fail("Invalid invitation")
		return app.Invitation{}, err
	}
	spinner.Success(fmt.Sprintf("Joined room %s", inv.RoomID))
	return inv, nil
}

// share prints the invitation through every configured carrier.
func (p *player) share(inv app.Invitation, title string) {
	pterm.DefaultSection.WithWriter(p.out).Println(title)

	if qr, err := signaling.RenderTerminal(inv.URL); err == nil {
		pterm.Fprintln(p.out, qr)
	} else {
		util.LogDebug("terminal QR code: %v", err)
	}

	pterm.Fprintln(p.out, inv.URL)
	pterm.Fprintln(p.out)

	pterm.DefaultSection.WithWriter(p.out).WithLevel(2).Println("Or paste this " + string(inv.Kind) + " as text")
	pterm.Fprintln(p.out, inv.Manual)
	pterm.Fprintln(p.out)

	if p.cfg.QRPath != "" {
		if png, err := signaling.RenderPNG(inv.URL, p.cfg.QRSize); err != nil {
			util.LogWarning("could not render QR code: %v", err)
		} else if err := os.WriteFile(p.cfg.QRPath, png, 0o644); err != nil {
			util.LogWarning("could not write QR code: %v", err)
		} else {
			util.LogInfo("QR code written to %s", p.cfg.QRPath)
		}
	}

	if p.cfg.Clipboard {
		if err := p.room.CopyInvitation(p.clip); err != nil {
			util.LogWarning("could not copy the link: %v", err)
		} else {
			util.LogSuccess("Link copied to the clipboard")
		}
	}
}

// scan watches the configured image files for the peer's QR code. The
// returned function stops the scan and may be called more than once.
func (p *player) scan(ctx context.Context, kind signaling.Kind, onResult func(codec.Packet)) func() {
	if len(p.cfg.ScanFiles) == 0 {
		return func() {}
	}

	sc := signaling.NewScanner(signaling.NewFileFrames(scanInterval, p.cfg.ScanFiles...), kind)
	err := sc.Start(ctx, onResult, func(err error) {
		util.LogWarning("scanned QR code is not a valid %s: %v", kind, err)
	})
	if err != nil {
		util.LogWarning("could not start QR scan: %v", err)
		return func() {}
	}
	util.LogInfo("Scanning %s for the %s QR code", strings.Join(p.cfg.ScanFiles, ", "), kind)

	return sc.Stop
}

type connectResult struct {
	game *game.Game
	err  error
}

func (p *player) waitConnected(ctx context.Context) <-chan connectResult {
	out := make(chan connectResult, 1)
	go func() {
		g, err := p.room.WaitConnected(ctx)
		out <- connectResult{game: g, err: err}
	}()
	return out
}

// ---------------------------------------------------------------------------
// Game
// ---------------------------------------------------------------------------

// play runs rounds until the player quits, the connection drops or ctx ends.
func (p *player) play(ctx context.Context, g *game.Game) error {
	changes := make(chan game.Round, 16)
	g.OnChange(func(r game.Round) {
		select {
		case changes <- r:
		default:
		}
	})

	util.LogSuccess("Connected! Let's play.")
	showRound(g.Round(), g.Host())

	failed := p.room.Failed()
	for {
		select {
		case r := <-changes:
			showRound(r, g.Host())

		case text, ok := <-p.lines:
			if !ok {
				return nil
			}
			quit, err := handleInput(g, text)
			if err != nil {
				util.LogWarning("%v", err)
			}
			if quit {
				return nil
			}

		case <-failed:
			util.LogError("Connection to your opponent was lost")
			return transport.ErrTransportFailure

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleInput applies one line typed during a game.
func handleInput(g *game.Game, text string) (quit bool, err error) {
	input := strings.ToLower(strings.TrimSpace(text))
	for _, h := range rules.Hands {
		if input == string(h) || input == string(h)[:1] {
			return false, g.Select(h)
		}
	}

	switch input {
	case "n", "new":
		return false, g.StartNewGame()
	case "q", "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown input %q: type %s", text, handKeys())
	}
}

// handKeys lists the shortcut of every hand, e.g. "r, p or s".
func handKeys() string {
	keys := make([]string, len(rules.Hands))
	for i, h := range rules.Hands {
		keys[i] = string(h)[:1]
	}
	return strings.Join(keys[:len(keys)-1], ", ") + " or " + keys[len(keys)-1]
}

// handChoices lists every hand with its shortcut, e.g. "r (rock)".
func handChoices() string {
	choices := make([]string, len(rules.Hands))
	for i, h := range rules.Hands {
		choices[i] = fmt.Sprintf("%s (%s)", string(h)[:1], h)
	}
	return strings.Join(choices[:len(choices)-1], ", ") + " or " + choices[len(choices)-1]
}

var handIcons = map[rules.Hand]string{
	rules.Rock:     "✊ rock",
	rules.Paper:    "✋ paper",
	rules.Scissors: "✌ scissors",
}

func showRound(r game.Round, host bool) {
	switch {
	case r.Decided():
		body := fmt.Sprintf("You: %s\nOpponent: %s", handIcons[r.MyHand], handIcons[r.OpponentHand])
		title := map[rules.Outcome]string{rules.Win: "You win!", rules.Lose: "You lose", rules.Draw: "Draw"}[r.Outcome]
		pterm.DefaultBox.WithTitle(title).Println(body)
		if host {
			pterm.Info.Println("Type n for a new game, q to quit.")
		} else {
			pterm.Info.Println("Waiting for the host to start a new game (q to quit).")
		}
	case r.Waiting():
		pterm.Info.Println(fmt.Sprintf("You picked %s. Waiting for your opponent...", handIcons[r.MyHand]))
	case r.OpponentHand != rules.Unset:
		pterm.Info.Println("Your opponent has picked. Your move: " + handKeys() + ".")
	default:
		pterm.DefaultSection.Println("New round")
		pterm.Info.Println("Pick a hand: " + handChoices() + ".")
	}
}

// readLines delivers stdin line by line. A pasted JSON block spanning several
// lines is delivered as one item.
func readLines(r io.Reader) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 1<<20)

		var block strings.Builder
		for sc.Scan() {
			line := sc.Text()

			if block.Len() > 0 || strings.HasPrefix(strings.TrimSpace(line), "{") {
				block.WriteString(line)
				block.WriteByte('\n')
				if json.Valid([]byte(block.String())) {
					out <- block.String()
					block.Reset()
				}
				continue
			}

			if text := strings.TrimSpace(line); text != "" {
				out <- text
			}
		}
	}()

	return out
}
