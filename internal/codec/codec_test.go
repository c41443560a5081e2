package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 140, A: 255})
		}
	}
	return img
}

func encodeTestPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeConfig(t *testing.T) {
	data := encodeTestPNG(t, testImage(60, 40))

	cfg, err := DecodeConfig(data)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Width)
	assert.Equal(t, 40, cfg.Height)
	assert.Equal(t, "png", cfg.Format)
	assert.Equal(t, 1, cfg.Orientation)
}

func TestDecodeConfigRejectsGarbage(t *testing.T) {
	_, err := DecodeConfig([]byte("definitely not an image"))
	assert.ErrorIs(t, err, domain.ErrDecodeFailure)

	_, err = DecodeConfig(nil)
	assert.ErrorIs(t, err, domain.ErrDecodeFailure)
}

func TestDecode(t *testing.T) {
	src := testImage(30, 20)
	img, err := Decode(encodeTestPNG(t, src))
	require.NoError(t, err)

	assert.Equal(t, 30, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())

	_, err = Decode([]byte{0x89, 'P', 'N', 'G'})
	assert.ErrorIs(t, err, domain.ErrDecodeFailure)
}

// grayTIFF builds an uncompressed little-endian 8-bit grayscale TIFF with the
// given Orientation tag in IFD0.
func grayTIFF(w, h, orientation int, pix []byte) []byte {
	type field struct {
		tag, typ uint16
		value    uint32
	}
	const (
		typeShort = 3
		typeLong  = 4
	)
	fields := []field{
		{256, typeShort, uint32(w)},
		{257, typeShort, uint32(h)},
		{258, typeShort, 8},
		{259, typeShort, 1},
		{262, typeShort, 1},
		{273, typeLong, 0},
		{274, typeShort, uint32(orientation)},
		{277, typeShort, 1},
		{278, typeShort, uint32(h)},
		{279, typeLong, uint32(len(pix))},
	}
	dataOffset := uint32(8 + 2 + 12*len(fields) + 4)
	fields[5].value = dataOffset

	le := binary.LittleEndian
	buf := []byte{'I', 'I', 42, 0}
	buf = le.AppendUint32(buf, 8)
	buf = le.AppendUint16(buf, uint16(len(fields)))
	for _, f := range fields {
		buf = le.AppendUint16(buf, f.tag)
		buf = le.AppendUint16(buf, f.typ)
		buf = le.AppendUint32(buf, 1)
		buf = le.AppendUint32(buf, f.value)
	}
	buf = le.AppendUint32(buf, 0)
	return append(buf, pix...)
}

func grayAt(img image.Image, x, y int) uint8 {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}

func TestOrientedTIFFConfigMatchesDecode(t *testing.T) {
	data := grayTIFF(4, 2, 6, []byte{
		10, 20, 30, 40,
		50, 60, 70, 80,
	})

	cfg, err := DecodeConfig(data)
	require.NoError(t, err)
	assert.Equal(t, "tiff", cfg.Format)
	assert.Equal(t, 6, cfg.Orientation)
	assert.Equal(t, 2, cfg.Width)
	assert.Equal(t, 4, cfg.Height)

	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.Width, img.Bounds().Dx())
	assert.Equal(t, cfg.Height, img.Bounds().Dy())

	// Orientation 6 is a clockwise quarter turn: the left column, read
	// bottom up, becomes the top row.
	assert.Equal(t, uint8(50), grayAt(img, 0, 0))
	assert.Equal(t, uint8(10), grayAt(img, 1, 0))
	assert.Equal(t, uint8(80), grayAt(img, 0, 3))
	assert.Equal(t, uint8(40), grayAt(img, 1, 3))
}

func TestUnorientedTIFFDecodesAsStored(t *testing.T) {
	data := grayTIFF(4, 2, 1, []byte{
		10, 20, 30, 40,
		50, 60, 70, 80,
	})

	cfg, err := DecodeConfig(data)
	require.NoError(t, err)
	img, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Width)
	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
	assert.Equal(t, uint8(20), grayAt(img, 1, 0))
}

func TestOrient(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 2))
	copy(src.Pix, []byte{1, 2, 3, 4, 5, 6})

	tests := []struct {
		orientation int
		wantW       int
		wantTopLeft uint8
	}{
		{1, 3, 1},
		{2, 3, 3},
		{3, 3, 6},
		{4, 3, 4},
		{5, 2, 1},
		{6, 2, 4},
		{7, 2, 6},
		{8, 2, 3},
	}
	for _, tt := range tests {
		got := orient(src, tt.orientation)
		assert.Equal(t, tt.wantW, got.Bounds().Dx(), "orientation %d", tt.orientation)
		assert.Equal(t, tt.wantTopLeft, grayAt(got, got.Bounds().Min.X, got.Bounds().Min.Y), "orientation %d", tt.orientation)
	}
}

func TestStdlibEncoderPNGIgnoresQuality(t *testing.T) {
	enc := stdlibEncoder{}
	img := testImage(32, 32)

	low, err := enc.Encode(context.Background(), img, domain.FormatPNG, 0.1)
	require.NoError(t, err)
	high, err := enc.Encode(context.Background(), img, domain.FormatPNG, 1.0)
	require.NoError(t, err)

	assert.Equal(t, low, high)
}

func TestStdlibEncoderJPEG(t *testing.T) {
	enc := stdlibEncoder{}
	img := testImage(64, 64)

	low, err := enc.Encode(context.Background(), img, domain.FormatJPEG, 0.1)
	require.NoError(t, err)
	high, err := enc.Encode(context.Background(), img, domain.FormatJPEG, 1.0)
	require.NoError(t, err)

	assert.Less(t, len(low), len(high))

	decoded, err := jpeg.Decode(bytes.NewReader(high))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Size(), decoded.Bounds().Size())
}

func TestStdlibEncoderFailures(t *testing.T) {
	enc := stdlibEncoder{}
	img := testImage(4, 4)

	for _, format := range []domain.Format{domain.FormatWEBP, domain.FormatAVIF, "gif"} {
		_, err := enc.Encode(context.Background(), img, format, 0.8)
		assert.ErrorIs(t, err, domain.ErrEncodeFailure, "format %s", format)
	}

	_, err := enc.Encode(context.Background(), image.NewNRGBA(image.Rect(0, 0, 0, 0)), domain.FormatPNG, 1)
	assert.ErrorIs(t, err, domain.ErrEncodeFailure)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = enc.Encode(ctx, img, domain.FormatPNG, 1)
	assert.ErrorIs(t, err, domain.ErrEncodeFailure)
}

func TestQualityPercent(t *testing.T) {
	assert.Equal(t, 10, qualityPercent(0.1))
	assert.Equal(t, 90, qualityPercent(0.9))
	assert.Equal(t, 100, qualityPercent(1))
	assert.Equal(t, 100, qualityPercent(3))
	assert.Equal(t, defaultQuality, qualityPercent(0))
}
