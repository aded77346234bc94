package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestTranscoder_DownscalesWideImages(t *testing.T) {
	out, err := Transcoder{MaxWidth: 100, Quality: 80}.JPEG(pngOf(t, 400, 200))
	if err != nil {
		t.Fatalf("JPEG: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not jpeg: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("size = %dx%d; want 100x50", cfg.Width, cfg.Height)
	}
}

func TestTranscoder_NeverUpscales(t *testing.T) {
	out, err := DefaultTranscoder.JPEG(pngOf(t, 40, 30))
	if err != nil {
		t.Fatalf("JPEG: %v", err)
	}
	cfg, _ := jpeg.DecodeConfig(bytes.NewReader(out))
	if cfg.Width != 40 || cfg.Height != 30 {
		t.Fatalf("size = %dx%d; want 40x30", cfg.Width, cfg.Height)
	}
}

func TestTranscoder_RejectsNonImages(t *testing.T) {
	if _, err := DefaultTranscoder.JPEG([]byte("%PDF-1.7")); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
}

// hugePNG returns a tiny grayscale PNG whose IHDR claims w x h pixels.
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	b := buf.Bytes()
	// signature(8) | length(4) | "IHDR" | width(4) height(4) ... | crc(4)
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}

func TestTranscoder_RejectsHugeDimensions(t *testing.T) {
	data := hugePNG(t, 20000, 20000)
	if len(data) > 1024 {
		t.Fatalf("fixture should be tiny, got %d bytes", len(data))
	}
	_, err := DefaultTranscoder.JPEG(data)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	if _, err := (Transcoder{MaxPixels: 100}).JPEG(pngOf(t, 20, 20)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("custom budget: expected ErrTooLarge, got %v", err)
	}
	if _, err := (Transcoder{MaxPixels: 400}).JPEG(pngOf(t, 20, 20)); err != nil {
		t.Fatalf("image at the budget should pass: %v", err)
	}
}

func TestPipeline_RejectsHugeDimensionsBeforeSaving(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "/media")
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	p := &Pipeline{Transcoder: DefaultTranscoder, Store: store, MaxBytes: 16 << 20}

	if _, err := p.Persist(context.Background(), "image", hugePNG(t, 20000, 20000), "image/png", "bomb.png"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("nothing should be stored, found %d files", len(entries))
	}
}

func TestDiskStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	s, err := NewDiskStore(dir, "/media/")
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	url, err := s.Save(context.Background(), []byte("pdf"), "application/pdf", "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(url, "/media/") || !strings.HasSuffix(url, ".pdf") {
		t.Fatalf("url = %q", url)
	}
	b, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/media/")))
	if err != nil || string(b) != "pdf" {
		t.Fatalf("stored bytes = %q,%v", b, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Save(ctx, []byte("x"), "", "a.txt"); err == nil {
		t.Fatalf("cancelled context should abort save")
	}
}

func TestPipeline_Persist(t *testing.T) {
	s, _ := NewDiskStore(t.TempDir(), "/m")
	p := &Pipeline{Transcoder: Transcoder{MaxWidth: 50, Quality: 70}, Store: s}

	att, err := p.Persist(context.Background(), "image", pngOf(t, 100, 100), "image/png", "foto.png")
	if err != nil {
		t.Fatalf("Persist image: %v", err)
	}
	if att.Type != "image" || att.Mime != "image/jpeg" || att.Filename != "foto.jpg" || !strings.HasSuffix(att.URL, ".jpg") {
		t.Fatalf("unexpected attachment: %+v", att)
	}

	att, err = p.Persist(context.Background(), "document", []byte("%PDF"), "application/pdf", "cv.pdf")
	if err != nil || att.Mime != "application/pdf" || att.Filename != "cv.pdf" {
		t.Fatalf("Persist document = %+v,%v", att, err)
	}

	if _, err := p.Persist(context.Background(), "image", []byte("nope"), "image/png", ""); err == nil {
		t.Fatalf("corrupt image should fail")
	}
	if _, err := p.Persist(context.Background(), "document", nil, "", ""); err == nil {
		t.Fatalf("empty data should fail")
	}
}

func TestPipeline_RejectsOversized(t *testing.T) {
	s, _ := NewDiskStore(t.TempDir(), "/m")
	p := &Pipeline{Store: s, MaxBytes: 4}

	if _, err := p.Persist(context.Background(), "document", []byte("12345"), "text/plain", "a.txt"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	if _, err := p.Persist(context.Background(), "document", []byte("1234"), "text/plain", "a.txt"); err != nil {
		t.Fatalf("at the cap: %v", err)
	}
}
