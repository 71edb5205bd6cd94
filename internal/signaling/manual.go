package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/1ureka/janken/internal/codec"
)

// ManualText renders pkt as indented JSON for copy and paste.
func ManualText(pkt codec.Packet) (string, error) {
	data, err := codec.Marshal(pkt)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", fmt.Errorf("failed to format packet: %w", err)
	}
	return buf.String(), nil
}

// ParseManual parses JSON produced by ManualText.
func ParseManual(text string) (codec.Packet, error) {
	return codec.Unmarshal([]byte(text))
}

// ParseAny accepts whatever a player pasted: a link, a bare encoded value, or
// manual JSON. The kind of a bare value or of JSON comes from its description.
func ParseAny(text string) (Kind, codec.Packet, error) {
	text = strings.TrimSpace(text)

	var (
		pkt codec.Packet
		err error
	)
	switch {
	case strings.HasPrefix(text, "{"):
		pkt, err = ParseManual(text)
	case strings.Contains(text, "?"), strings.Contains(text, string(KindOffer)+"="), strings.Contains(text, string(KindAnswer)+"="):
		return ParseURL(text)
	default:
		pkt, err = codec.Decode(text)
	}
	if err != nil {
		return "", codec.Packet{}, err
	}

	kind, err := KindOf(pkt)
	if err != nil {
		return "", codec.Packet{}, err
	}
	return kind, pkt, nil
}
