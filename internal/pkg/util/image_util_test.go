package util

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGetSafeContentType(t *testing.T) {
	reader := bytes.NewReader(pngBytes(t, 4, 4))
	ct, err := GetSafeContentType(reader)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	pos, err := reader.Seek(0, 1)
	require.NoError(t, err)
	assert.Zero(t, pos)

	ct, err = GetSafeContentType(bytes.NewReader([]byte("plain words, no magic")))
	require.NoError(t, err)
	assert.Contains(t, ct, "text/plain")
}

func TestMakeThumbnail(t *testing.T) {
	thumb, size, err := MakeThumbnail(pngBytes(t, 800, 400), 320)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(800, 400), size)

	decoded, err := imaging.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 320, decoded.Bounds().Dx())
	assert.Equal(t, 160, decoded.Bounds().Dy())

	small, size, err := MakeThumbnail(pngBytes(t, 100, 50), 320)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(100, 50), size)
	decoded, err = imaging.Decode(bytes.NewReader(small))
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())

	_, _, err = MakeThumbnail([]byte("not an image"), 320)
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	_, err = ParseID("0")
	assert.Error(t, err)
	_, err = ParseID("-1")
	assert.Error(t, err)
	_, err = ParseID("abc")
	assert.Error(t, err)
}
