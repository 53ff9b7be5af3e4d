package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrInvalidImage indicates the upload is not a decodable image.
var ErrInvalidImage = errors.New("invalid image")

const (
	// jpegQuality is used when a downscaled JPEG is re-encoded.
	jpegQuality = 90

	// DefaultMaxPixels caps the decoded size of an upload (about 40 MP).
	DefaultMaxPixels = 40_000_000
)

var contentTypes = map[imaging.Format]string{
	imaging.JPEG: "image/jpeg",
	imaging.PNG:  "image/png",
	imaging.GIF:  "image/gif",
	imaging.TIFF: "image/tiff",
	imaging.BMP:  "image/bmp",
}

// ProcessedImage is a validated upload ready to be stored.
type ProcessedImage struct {
	Data        []byte
	Ext         string // lower-case, with leading dot
	ContentType string
	Width       int
	Height      int
}

// ImageLimits bounds what ProcessImage accepts and stores.
type ImageLimits struct {
	// MaxDimension is the longest stored side; larger images are
	// downscaled. 0 keeps originals.
	MaxDimension int
	// MaxPixels rejects images whose header claims more pixels.
	// 0 means DefaultMaxPixels.
	MaxPixels int
}

func (l ImageLimits) maxPixels() int64 {
	if l.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return int64(l.MaxPixels)
}

// ProcessImage validates data as an image and, when limits.MaxDimension > 0,
// downscales it to fit a MaxDimension square. The original bytes are
// kept when no resize is needed. Dimensions are checked from the header
// before the pixel data is decoded.
func ProcessImage(data []byte, filename string, limits ImageLimits) (*ProcessedImage, error) {
	cfg, detected, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > limits.maxPixels() {
		return nil, ErrInvalidImage
	}

	format, err := imaging.FormatFromExtension(detected)
	if err != nil {
		return nil, ErrInvalidImage
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrInvalidImage
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if f, err := imaging.FormatFromFilename(filename); err != nil || f != format {
		ext = "." + strings.ToLower(format.String())
		if format == imaging.JPEG {
			ext = ".jpg"
		}
	}

	out := &ProcessedImage{
		Data:        data,
		Ext:         ext,
		ContentType: contentTypes[format],
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
	}

	if maxDim := limits.MaxDimension; maxDim > 0 && (out.Width > maxDim || out.Height > maxDim) {
		resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(jpegQuality)); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		out.Data = buf.Bytes()
		out.Width = resized.Bounds().Dx()
		out.Height = resized.Bounds().Dy()
	}

	return out, nil
}
