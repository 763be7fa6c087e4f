// Package normalize bounds staged images to a maximum dimension before they
// are handed to the compute binary.
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"

	fileutil "svmmapper/internal/file"
)

// DefaultMaxDimension is the largest side length the compute binary is fed.
const DefaultMaxDimension = 960

var (
	ErrDecode            = errors.New("decode image")
	ErrInvalidDimension  = errors.New("max dimension must be positive")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Result describes the image left on disk after Normalize.
type Result struct {
	Width   int
	Height  int
	Resized bool
}

// TargetSize returns the dimensions an image of w x h should be scaled to so
// that neither side exceeds maxDim. Images already within bounds, including
// those exactly at maxDim, are left alone. The shorter side never drops
// below one pixel.
func TargetSize(w, h, maxDim int) (int, int, bool) {
	if w <= maxDim && h <= maxDim {
		return w, h, false
	}
	if w > h {
		return maxDim, max(1, maxDim*h/w), true
	}
	return max(1, maxDim*w/h), maxDim, true
}

// Normalize rewrites the image at path in place when it is larger than maxDim
// on either axis, keeping aspect ratio and the original encoding format.
func Normalize(path string, maxDim int) (Result, error) {
	if maxDim < 1 {
		return Result{}, ErrInvalidDimension
	}
	width, height, formatName, err := dimensions(path)
	if err != nil {
		return Result{}, err
	}
	newWidth, newHeight, resize := TargetSize(width, height, maxDim)
	if !resize {
		return Result{Width: width, Height: height}, nil
	}

	format, err := encodingFormat(path, formatName)
	if err != nil {
		return Result{}, err
	}
	img, err := imaging.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	resized := imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)

	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, resized, format); err != nil {
		return Result{}, fmt.Errorf("encode image: %w", err)
	}
	if err := fileutil.CopyAtomic(path, &encoded); err != nil {
		return Result{}, fmt.Errorf("write resized image: %w", err)
	}
	return Result{Width: newWidth, Height: newHeight, Resized: true}, nil
}

func dimensions(path string) (int, int, string, error) {
	f, err := os.Open(path) //nolint:gosec // staged path is built by the pipeline
	if err != nil {
		return 0, 0, "", fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()
	cfg, formatName, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return cfg.Width, cfg.Height, formatName, nil
}

// encodingFormat prefers the file extension and falls back to the sniffed
// format when the staged name carries no recognised extension.
func encodingFormat(path, sniffed string) (imaging.Format, error) {
	if format, err := imaging.FormatFromFilename(path); err == nil {
		return format, nil
	}
	if format, err := imaging.FormatFromExtension(sniffed); err == nil {
		return format, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, sniffed)
}
