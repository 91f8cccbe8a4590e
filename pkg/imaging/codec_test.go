package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	errs "fvdownloader/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(alpha uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: alpha})
		}
	}
	return img
}

func encodeWith(t *testing.T, enc func(*bytes.Buffer) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, enc(&buf))
	return buf.Bytes()
}

func TestDecodeAcceptsCommonFormats(t *testing.T) {
	c, err := NewCodec(FormatPNG, 0)
	require.NoError(t, err)

	inputs := map[string][]byte{
		"png":  encodeWith(t, func(b *bytes.Buffer) error { return png.Encode(b, sample(255)) }),
		"jpeg": encodeWith(t, func(b *bytes.Buffer) error { return jpeg.Encode(b, sample(255), nil) }),
		"gif":  encodeWith(t, func(b *bytes.Buffer) error { return gif.Encode(b, sample(255), nil) }),
	}

	for want, data := range inputs {
		t.Run(want, func(t *testing.T) {
			img, format, err := c.Decode(data, "u")
			require.NoError(t, err)
			assert.Equal(t, want, format)
			assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
		})
	}
}

func TestDecodeGarbageIsDecodeError(t *testing.T) {
	c, _ := NewCodec(FormatPNG, 0)
	_, _, err := c.Decode([]byte("<html>not an image</html>"), "https://x/1.jpg")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDecode))
	assert.False(t, errs.IsRetryable(err))
}

func TestDecodeRejectsOversizedImages(t *testing.T) {
	c, _ := NewCodec(FormatPNG, 0)
	c.MaxPixels = 10
	data := encodeWith(t, func(b *bytes.Buffer) error { return png.Encode(b, sample(255)) })

	_, _, err := c.Decode(data, "https://x/huge.png")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDecode))
	assert.Contains(t, err.Error(), "4x3")
}

func TestDecodeRejectsOversizedHeaderWithoutDecoding(t *testing.T) {
	c, _ := NewCodec(FormatPNG, 0)
	// GIF logical screen of 65535x65535 and no image data at all
	header := []byte{'G', 'I', 'F', '8', '9', 'a', 0xff, 0xff, 0xff, 0xff, 0, 0, 0}

	_, _, err := c.Decode(header, "u")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDecode))
	assert.Contains(t, err.Error(), "pixel limit")
}

func TestEncodePNGRoundTrip(t *testing.T) {
	c, _ := NewCodec(FormatPNG, 0)
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, sample(128)))

	out, format, err := image.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	_, _, _, a := out.At(0, 0).RGBA()
	assert.NotEqual(t, uint32(0xffff), a, "png keeps transparency")
	assert.Equal(t, "png", c.Ext())
}

func TestEncodeJPEGFlattensOnWhite(t *testing.T) {
	c, _ := NewCodec(FormatJPEG, 90)
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, sample(0)))

	out, format, err := image.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	r, g, b, _ := out.At(1, 1).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
	assert.Equal(t, "jpg", c.Ext())
}

func TestNewCodecRejectsUnknownFormat(t *testing.T) {
	_, err := NewCodec("bmp", 90)
	assert.Error(t, err)
}
