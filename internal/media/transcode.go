// Package media recompresses inbound images and persists attachments so
// messages can reference them by URL.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoders
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when bytes cannot be decoded as a supported image.
var ErrNotImage = errors.New("unsupported or corrupt image")

// Transcoder downsizes images to MaxWidth (keeping aspect ratio) and
// re-encodes them as JPEG at Quality.
//
// MaxPixels bounds width*height as declared in the image header. The header
// is read before any pixel data, so a small file announcing huge dimensions
// is rejected without allocating its canvas.
type Transcoder struct {
	MaxWidth  int
	Quality   int
	MaxPixels int64
}

// DefaultTranscoder matches what the messaging providers render well.
var DefaultTranscoder = Transcoder{MaxWidth: 1024, Quality: 80, MaxPixels: 40_000_000}

// JPEG decodes data, scales it down when wider than MaxWidth and returns the
// JPEG encoding. Images are never upscaled. Images whose header declares more
// than MaxPixels pixels fail with ErrTooLarge.
func (t Transcoder) JPEG(data []byte) ([]byte, error) {
	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	limit := t.MaxPixels
	if limit <= 0 {
		limit = DefaultTranscoder.MaxPixels
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrNotImage, hdr.Width, hdr.Height)
	}
	if int64(hdr.Width)*int64(hdr.Height) > limit {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, hdr.Width, hdr.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	maxW := t.MaxWidth
	if maxW <= 0 {
		maxW = DefaultTranscoder.MaxWidth
	}
	q := t.Quality
	if q <= 0 || q > 100 {
		q = DefaultTranscoder.Quality
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxW {
		h = h * maxW / w
		if h < 1 {
			h = 1
		}
		w = maxW
	}

	// Always draw onto an opaque canvas: JPEG has no alpha and transparent
	// PNG pixels would otherwise turn black.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
