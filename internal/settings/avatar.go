package settings

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"golang.org/x/image/draw"
)

const (
	AvatarMaxSide    = 400
	AvatarMaxBytes   = 950 * 1024
	MaxUploadBytes   = 10 << 20
	avatarQuality    = 70
	avatarMinQuality = 30
	dataURLPrefix    = "data:image/jpeg;base64,"
)

var (
	ErrAvatarTooLarge = errors.New("avatar is too large after compression")
	ErrUploadTooLarge = errors.New("upload exceeds 10 MB")
	ErrInvalidImage   = errors.New("unsupported or corrupt image")
)

// EncodeAvatar decodes a JPEG, PNG or GIF, scales it to fit AvatarMaxSide
// and returns it as a JPEG data URL no larger than AvatarMaxBytes.
func EncodeAvatar(r io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if len(raw) > MaxUploadBytes {
		return "", ErrUploadTooLarge
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	img := scale(src, AvatarMaxSide)

	for q := avatarQuality; q >= avatarMinQuality; q -= 10 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return "", fmt.Errorf("encoding avatar: %w", err)
		}
		url := dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes())
		if len(url) <= AvatarMaxBytes {
			return url, nil
		}
	}
	return "", ErrAvatarTooLarge
}

// CheckAvatarURL accepts only image data URLs within AvatarMaxBytes.
func CheckAvatarURL(dataURL string) error {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return fmt.Errorf("%w: avatar must be an image data URL", ErrInvalidImage)
	}
	if len(dataURL) > AvatarMaxBytes {
		return ErrAvatarTooLarge
	}
	return nil
}

// scale shrinks src so its longer side is at most side. Smaller images are
// returned unchanged.
func scale(src image.Image, side int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= side && h <= side {
		return src
	}

	if w >= h {
		h = h * side / w
		w = side
	} else {
		w = w * side / h
		h = side
	}
	w, h = max(w, 1), max(h, 1)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
