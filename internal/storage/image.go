package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
	// Phones upload webp; imaging only registers the stdlib formats plus bmp and tiff.
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageBytes caps profile image uploads.
	MaxImageBytes = 5 << 20
	profileSide   = 512
)

var (
	ErrNotImage      = errors.New("file is not a supported image")
	ErrImageTooLarge = fmt.Errorf("image exceeds %d MiB", MaxImageBytes>>20)
)

// PrepareProfileImage decodes data, fits it inside 512x512 keeping the
// aspect ratio and re-encodes it as JPEG.
func PrepareProfileImage(data []byte) ([]byte, error) {
	if len(data) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrNotImage
	}
	fitted := imaging.Fit(img, profileSide, profileSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode profile image: %w", err)
	}
	return buf.Bytes(), nil
}
