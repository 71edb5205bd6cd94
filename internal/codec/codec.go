package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/1ureka/janken/internal/util"
)

// maxInflated bounds the decompressed size of a packet. A real offer with a
// few dozen candidates stays well below this.
const maxInflated = 1 << 20

// Encode serializes a packet for a URL query value:
// JSON -> zlib -> base64 -> percent-encoding.
func Encode(pkt Packet) (string, error) {
	data, err := Marshal(pkt)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", fmt.Errorf("failed to create compressor: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("failed to compress packet: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to compress packet: %w", err)
	}

	util.Stats.AddEncoded()
	return url.QueryEscape(base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// Decode reverses Encode. Every failure is a *DecodeError.
//
// The unescape stage uses path semantics so a literal '+' survives: callers may
// pass either the raw query value or one already unescaped by url.Values.
func Decode(s string) (Packet, error) {
	pkt, err := decode(strings.TrimSpace(s))
	if err != nil {
		util.Stats.AddDecodeError()
		return Packet{}, err
	}
	util.Stats.AddDecoded()
	return pkt, nil
}

func decode(s string) (Packet, error) {
	unescaped, err := url.PathUnescape(s)
	if err != nil {
		return Packet{}, decodeErr(StageUnescape, err)
	}

	compressed, err := base64.StdEncoding.DecodeString(unescaped)
	if err != nil {
		return Packet{}, decodeErr(StageBase64, err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return Packet{}, decodeErr(StageInflate, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(io.LimitReader(zr, maxInflated+1))
	if err != nil {
		return Packet{}, decodeErr(StageInflate, err)
	}
	if len(data) > maxInflated {
		return Packet{}, decodeErr(StageInflate, fmt.Errorf("packet exceeds %d bytes", maxInflated))
	}

	return unmarshal(data)
}

// Marshal returns the plain JSON form of a packet, as used by the manual carrier.
func Marshal(pkt Packet) ([]byte, error) {
	data, err := json.Marshal(pkt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal packet: %w", err)
	}
	return data, nil
}

// Unmarshal parses the plain JSON form of a packet. Every failure is a *DecodeError.
func Unmarshal(data []byte) (Packet, error) {
	pkt, err := unmarshal(bytes.TrimSpace(data))
	if err != nil {
		util.Stats.AddDecodeError()
		return Packet{}, err
	}
	util.Stats.AddDecoded()
	return pkt, nil
}

func unmarshal(data []byte) (Packet, error) {
	var pkt Packet
	if err := json.Unmarshal(data, &pkt); err != nil {
		return Packet{}, decodeErr(StageJSON, err)
	}
	if err := pkt.validate(); err != nil {
		return Packet{}, decodeErr(StageValidation, err)
	}
	return pkt, nil
}
