package signaling

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/1ureka/janken/internal/codec"
)

// BuildURL encodes pkt as the kind query parameter of base. Any offer or
// answer already on base is replaced; other parameters are kept.
func BuildURL(base string, kind Kind, pkt codec.Packet) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrWrongKind, kind)
	}
	if err := expect(pkt, kind); err != nil {
		return "", err
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	value, err := codec.Encode(pkt)
	if err != nil {
		return "", err
	}

	var params []string
	for _, p := range splitQuery(u.RawQuery) {
		if name, _, _ := strings.Cut(p, "="); name != string(KindOffer) && name != string(KindAnswer) {
			params = append(params, p)
		}
	}
	params = append(params, string(kind)+"="+value)
	u.RawQuery = strings.Join(params, "&")
	u.Fragment = ""

	return u.String(), nil
}

// ParseURL extracts and decodes the packet a link carries. An offer parameter
// wins over an answer parameter. A bare query string ("?offer=...") is
// accepted too.
func ParseURL(raw string) (Kind, codec.Packet, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", codec.Packet{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	values := map[Kind]string{}
	for _, p := range splitQuery(u.RawQuery) {
		name, value, _ := strings.Cut(p, "=")
		kind := Kind(name)
		if _, seen := values[kind]; kind.Valid() && !seen {
			values[kind] = value
		}
	}

	for _, kind := range []Kind{KindOffer, KindAnswer} {
		value, ok := values[kind]
		if !ok {
			continue
		}
		// The value is handed over still escaped so '+' keeps its meaning.
		pkt, err := codec.Decode(value)
		if err != nil {
			return "", codec.Packet{}, fmt.Errorf("%s link: %w", kind, err)
		}
		if err := expect(pkt, kind); err != nil {
			return "", codec.Packet{}, err
		}
		return kind, pkt, nil
	}

	return "", codec.Packet{}, ErrMissingPacket
}

// ParseURLFor is ParseURL restricted to one kind.
func ParseURLFor(raw string, want Kind) (codec.Packet, error) {
	kind, pkt, err := ParseURL(raw)
	if err != nil {
		return codec.Packet{}, err
	}
	if kind != want {
		return codec.Packet{}, fmt.Errorf("%w: got %s link, want %s", ErrWrongKind, kind, want)
	}
	return pkt, nil
}

func splitQuery(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, "&") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
