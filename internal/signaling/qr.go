package signaling

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"
)

// ErrNoQRCode means an image holds no readable QR code.
var ErrNoQRCode = errors.New("no QR code found")

// Negotiation links are long; the lowest recovery level leaves the most room.
const qrLevel = qrcode.Low

// RenderPNG draws link as a QR code PNG of roughly size x size pixels.
func RenderPNG(link string, size int) ([]byte, error) {
	png, err := qrcode.Encode(link, qrLevel, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	return png, nil
}

// RenderTerminal draws link as a QR code made of half-block characters.
func RenderTerminal(link string) (string, error) {
	q, err := qrcode.New(link, qrLevel)
	if err != nil {
		return "", fmt.Errorf("failed to render QR code: %w", err)
	}
	return q.ToSmallString(false), nil
}

// DecodeImage returns the text of the QR code in img.
func DecodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoQRCode, err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := zxingqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoQRCode, err)
	}
	return res.GetText(), nil
}
