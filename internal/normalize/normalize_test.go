package normalize

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func TestTargetSize(t *testing.T) {
	cases := []struct {
		w, h         int
		wantW, wantH int
		wantResize   bool
	}{
		{960, 600, 960, 600, false},
		{1200, 600, 960, 480, true},
		{600, 1200, 480, 960, true},
		{960, 960, 960, 960, false},
		{961, 961, 960, 960, true},
		{1000, 333, 960, 319, true},
		{500, 500, 500, 500, false},
		{10000, 1, 960, 1, true},
		{1, 10000, 1, 960, true},
	}
	for _, c := range cases {
		w, h, resize := TargetSize(c.w, c.h, DefaultMaxDimension)
		if w != c.wantW || h != c.wantH || resize != c.wantResize {
			t.Fatalf("TargetSize(%d,%d)=(%d,%d,%v) want (%d,%d,%v)", c.w, c.h, w, h, resize, c.wantW, c.wantH, c.wantResize)
		}
	}
}

func writeImage(t *testing.T, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	return path
}

func decodedSize(t *testing.T, path string) (int, int, string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return cfg.Width, cfg.Height, format
}

func TestNormalizeResizesLargeImage(t *testing.T) {
	path := writeImage(t, "wide.jpg", 1200, 600)

	res, err := Normalize(path, DefaultMaxDimension)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !res.Resized || res.Width != 960 || res.Height != 480 {
		t.Fatalf("unexpected result: %+v", res)
	}
	w, h, format := decodedSize(t, path)
	if w != 960 || h != 480 || format != "jpeg" {
		t.Fatalf("file on disk is %dx%d %s", w, h, format)
	}
}

func TestNormalizeKeepsThinStripVisible(t *testing.T) {
	path := writeImage(t, "strip.png", 10000, 1)

	res, err := Normalize(path, DefaultMaxDimension)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	w, h, _ := decodedSize(t, path)
	if w != 960 || h != 1 || res.Width != w || res.Height != h {
		t.Fatalf("file %dx%d, result %+v", w, h, res)
	}
}

func TestNormalizeKeepsPNGFormat(t *testing.T) {
	path := writeImage(t, "tall.png", 600, 1200)

	if _, err := Normalize(path, DefaultMaxDimension); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	w, h, format := decodedSize(t, path)
	if w != 480 || h != 960 || format != "png" {
		t.Fatalf("file on disk is %dx%d %s", w, h, format)
	}
}

func TestNormalizeLeavesSmallImageUntouched(t *testing.T) {
	path := writeImage(t, "x.jpg", 500, 500)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	res, err := Normalize(path, DefaultMaxDimension)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Resized || res.Width != 500 || res.Height != 500 {
		t.Fatalf("unexpected result: %+v", res)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("expected file bytes unchanged")
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jpg")
	if err := os.WriteFile(path, []byte("not an image"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Normalize(path, DefaultMaxDimension); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if _, err := Normalize(path, 0); !errors.Is(err, ErrInvalidDimension) {
		t.Fatalf("expected ErrInvalidDimension, got %v", err)
	}
}
