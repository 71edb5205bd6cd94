package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/janken/internal/app"
	"github.com/1ureka/janken/internal/codec"
	"github.com/1ureka/janken/internal/config"
	"github.com/1ureka/janken/internal/game"
	"github.com/1ureka/janken/internal/rules"
	"github.com/1ureka/janken/internal/signaling"
)

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("JANKEN_QR_SIZE", "300")
	t.Setenv("JANKEN_BASE_URL", "https://janken.example/")
	t.Setenv("JANKEN_LOOPBACK", "true")

	cfg := config.Default()
	cmd := newCmd(&cfg)
	require.NotNil(t, cmd)

	assert.Equal(t, 300, cfg.QRSize)
	assert.Equal(t, "https://janken.example/", cfg.BaseURL)
	assert.True(t, cfg.IncludeLoopback)
	assert.Equal(t, config.DefaultSTUNServers, cfg.STUNServers)
}

func TestSubcommands(t *testing.T) {
	cfg := config.Default()
	cmd := newCmd(&cfg)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"host", "join"})
}

func TestReadLines(t *testing.T) {
	input := "  r  \n\n{\n  \"description\": {\"type\": \"offer\"},\n  \"candidates\": []\n}\nhttp://localhost:8787/?offer=abc\n"

	var got []string
	for line := range readLines(strings.NewReader(input)) {
		got = append(got, line)
	}

	require.Len(t, got, 3)
	assert.Equal(t, "r", got[0])
	assert.True(t, strings.HasPrefix(got[1], "{"))
	assert.Contains(t, got[1], `"candidates": []`)
	assert.Equal(t, "http://localhost:8787/?offer=abc", got[2])
}

// sink records sent messages and never receives any.
type sink struct{ sent [][]byte }

func (s *sink) Send(data []byte) error   { s.sent = append(s.sent, data); return nil }
func (s *sink) OnMessage(func([]byte)) {}

func TestHandleInput(t *testing.T) {
	tr := &sink{}
	g := game.New(tr, true, game.WithIDFunc(func() string { return "g1" }))

	quit, err := handleInput(g, "P")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, rules.Paper, g.Round().MyHand)
	assert.Len(t, tr.sent, 1)

	_, err = handleInput(g, "rock")
	assert.ErrorIs(t, err, game.ErrAlreadySelected)

	_, err = handleInput(g, "n")
	assert.ErrorIs(t, err, game.ErrRoundInProgress)

	_, err = handleInput(g, "lizard")
	assert.Error(t, err)

	quit, err = handleInput(g, "q")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestHandleInputHandNames(t *testing.T) {
	for _, h := range rules.Hands {
		g := game.New(&sink{}, false)

		_, err := handleInput(g, " "+strings.ToUpper(string(h))+" ")
		require.NoError(t, err)
		assert.Equal(t, h, g.Round().MyHand)
	}

	_, err := handleInput(game.New(&sink{}, false), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "r, p or s")
	assert.Equal(t, "r (rock), p (paper) or s (scissors)", handChoices())
}

func TestShareIncludesManualText(t *testing.T) {
	pkt := codec.Packet{
		Description: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\n"},
		Candidates: []webrtc.ICECandidateInit{
			{Candidate: "candidate:1 1 udp 2130706431 192.168.1.10 50000 typ host"},
		},
	}
	link, err := signaling.BuildURL(config.DefaultBaseURL, signaling.KindOffer, pkt)
	require.NoError(t, err)
	manual, err := signaling.ManualText(pkt)
	require.NoError(t, err)

	var out bytes.Buffer
	p := &player{cfg: config.Default(), out: &out}
	p.share(app.Invitation{Kind: signaling.KindOffer, URL: link, Manual: manual, RoomID: "abc123"}, "Send this")

	text := out.String()
	assert.Contains(t, text, link)

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	require.True(t, start >= 0 && end > start, "no JSON in output:\n%s", text)
	got, err := signaling.ParseManual(text[start : end+1])
	require.NoError(t, err)
	assert.Equal(t, pkt.Description, got.Description)
	assert.Equal(t, pkt.Candidates, got.Candidates)
}
