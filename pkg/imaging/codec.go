// Package imaging converts downloaded payloads into the canonical output
// format.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"

	errs "fvdownloader/pkg/errors"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// DefaultMaxPixels caps the decoded size of a single image
const DefaultMaxPixels = 100_000_000

// Codec decodes any supported payload and re-encodes it as Format
type Codec struct {
	Format  string
	Quality int
	// MaxPixels rejects images whose header declares more pixels
	MaxPixels int64
}

// NewCodec validates format and returns a Codec for it
func NewCodec(format string, quality int) (*Codec, error) {
	switch format {
	case FormatPNG, FormatJPEG:
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if quality < 1 || quality > 100 {
		quality = 95
	}
	return &Codec{Format: format, Quality: quality, MaxPixels: DefaultMaxPixels}, nil
}

// Ext returns the file extension written for the codec's format
func (c *Codec) Ext() string {
	if c.Format == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// Decode parses data with whichever registered decoder matches its header
func (c *Codec) Decode(data []byte, sourceURL string) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", errs.New(errs.KindDecode, "decode", sourceURL, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); c.MaxPixels > 0 && pixels > c.MaxPixels {
		return nil, "", errs.New(errs.KindDecode, "decode", sourceURL,
			fmt.Errorf("image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, c.MaxPixels))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errs.New(errs.KindDecode, "decode", sourceURL, err)
	}
	return img, format, nil
}

// Encode writes img to w in the codec's format. JPEG output has any alpha
// flattened onto white.
func (c *Codec) Encode(w io.Writer, img image.Image) error {
	switch c.Format {
	case FormatJPEG:
		return jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: c.Quality})
	default:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		return enc.Encode(w, img)
	}
}

func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
