package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0x40, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestThumbnailBoundsWidth(t *testing.T) {
	data := encodePNG(t, 1280, 720)

	thumb, err := Thumbnail(data)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if got := img.Bounds().Dx(); got != 320 {
		t.Fatalf("thumbnail width = %d, want 320", got)
	}
	if got := img.Bounds().Dy(); got != 180 {
		t.Fatalf("thumbnail height = %d, want 180", got)
	}
}

func TestThumbnailSmallImagePassesThrough(t *testing.T) {
	data := encodePNG(t, 100, 60)

	thumb, err := Thumbnail(data)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if got := img.Bounds().Dx(); got != 100 {
		t.Fatalf("thumbnail width = %d, want 100", got)
	}
}

func TestThumbnailRejectsGarbage(t *testing.T) {
	if _, err := Thumbnail([]byte("not an image")); err == nil {
		t.Fatal("expected error for non-image data")
	}
}

func TestObjectKeyShape(t *testing.T) {
	key := ObjectKey("images", "conv-1", ".jpg")
	if len(key) == 0 {
		t.Fatal("empty key")
	}
	const prefix = "images/conv-1/"
	if key[:len(prefix)] != prefix {
		t.Fatalf("key %q does not start with %q", key, prefix)
	}
	if key[len(key)-4:] != ".jpg" {
		t.Fatalf("key %q does not end with .jpg", key)
	}
	if key == ObjectKey("images", "conv-1", ".jpg") {
		t.Fatal("keys should be unique per call")
	}
}
