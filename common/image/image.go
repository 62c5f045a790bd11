// Package image inspects inline image payloads exchanged with the model
// provider. WebP is registered alongside the stdlib decoders because the
// Converse API accepts png, jpeg, gif and webp inline images.
package image

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/Laisky/errors/v2"
	_ "golang.org/x/image/webp"
)

// SniffFormat detects the image format of raw bytes by decoding the header.
// It returns one of "png", "jpeg", "gif" or "webp".
func SniffFormat(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "decode image header")
	}
	return format, nil
}

// Size returns the pixel dimensions of raw image bytes.
func Size(data []byte) (width int, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, errors.Wrap(err, "decode image header")
	}
	return cfg.Width, cfg.Height, nil
}
