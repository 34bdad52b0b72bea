// Package thumbnail shrinks inlined listing images for feed payloads.
package thumbnail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

var (
	// ErrEmptyPayload is returned for blank image data
	ErrEmptyPayload = errors.New("thumbnail: empty image payload")
	// ErrImageTooLarge is returned before decoding images above the pixel budget
	ErrImageTooLarge = errors.New("thumbnail: image dimensions exceed limit")
)

const (
	defaultQuality = 70
	// DefaultMaxPixels caps decoded images at 4096x4096
	DefaultMaxPixels = 4096 * 4096
)

// Optimizer turns inlined image payloads into small thumbnails
type Optimizer interface {
	// IsURL reports whether value references an image instead of carrying it
	IsURL(value string) bool
	// CreateThumbnail returns a data URI of the image scaled to fit size×size
	CreateThumbnail(data string, size int) (string, error)
}

// ImagingOptimizer implements Optimizer with the imaging library
type ImagingOptimizer struct {
	Quality   int
	MaxPixels int
}

// NewImagingOptimizer creates an optimizer that encodes JPEG at quality 70
// and refuses images larger than DefaultMaxPixels
func NewImagingOptimizer() *ImagingOptimizer {
	return &ImagingOptimizer{Quality: defaultQuality, MaxPixels: DefaultMaxPixels}
}

// IsURL reports whether value is an http(s) URL
func (o *ImagingOptimizer) IsURL(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://")
}

// CreateThumbnail decodes a base64 payload (with or without a data: prefix),
// fits it into size×size without upscaling and re-encodes it as JPEG.
func (o *ImagingOptimizer) CreateThumbnail(data string, size int) (string, error) {
	raw, err := decodePayload(data)
	if err != nil {
		return "", err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("thumbnail: decode image header: %w", err)
	}
	maxPixels := o.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("thumbnail: decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > size || b.Dy() > size {
		img = imaging.Fit(img, size, size, imaging.Lanczos)
	}

	quality := o.Quality
	if quality <= 0 {
		quality = defaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("thumbnail: encode jpeg: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodePayload strips an optional "data:<mime>;base64," header and decodes the rest
func decodePayload(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		idx := strings.Index(data, ",")
		if idx < 0 {
			return nil, fmt.Errorf("thumbnail: malformed data URI")
		}
		data = data[idx+1:]
	}
	if data == "" {
		return nil, ErrEmptyPayload
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		// Some clients send unpadded or URL-safe base64
		if raw, err = base64.RawStdEncoding.DecodeString(data); err != nil {
			if raw, err = base64.URLEncoding.DecodeString(data); err != nil {
				return nil, fmt.Errorf("thumbnail: decode base64: %w", err)
			}
		}
	}
	return raw, nil
}
