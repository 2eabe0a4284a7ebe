package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformconfig "github.com/dfeirstein/the-skin-lab/internal/platform/config"
	platformerrors "github.com/dfeirstein/the-skin-lab/internal/platform/errors"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, G: 150, B: 120, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testLimits() platformconfig.ImageConfig {
	return platformconfig.DefaultConfig().Image
}

func TestPipeline_Process_EncodesDeclaredType(t *testing.T) {
	raw := pngBytes(t, 4, 3)
	p := NewPipeline(Options{Limits: testLimits()})

	out, err := p.Process(context.Background(), Upload{Reader: bytes.NewReader(raw), MediaType: "image/png"})
	require.NoError(t, err)

	assert.Equal(t, "image/png", out.MediaType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), out.Base64)
	assert.Equal(t, int64(len(raw)), out.Size)
	assert.Equal(t, "png", out.Format)
	assert.Equal(t, 4, out.Width)
	assert.Equal(t, 3, out.Height)
	assert.Equal(t, "data:image/png;base64,"+out.Base64, out.DataURL())
}

func TestPipeline_Process_GenericDeclaredTypeUsesDetected(t *testing.T) {
	raw := pngBytes(t, 2, 2)
	p := NewPipeline(Options{Limits: testLimits()})

	for _, declared := range []string{"", "application/octet-stream"} {
		out, err := p.Process(context.Background(), Upload{Reader: bytes.NewReader(raw), MediaType: declared})
		require.NoError(t, err)
		assert.Equal(t, "image/png", out.MediaType, "declared %q", declared)
	}
}

func TestPipeline_Process_Rejections(t *testing.T) {
	limits := testLimits()
	limits.MaxFileSize = 64 * 1024
	limits.MaxWidth = 100
	limits.MaxHeight = 100

	tests := []struct {
		name      string
		payload   []byte
		mediaType string
		message   string
	}{
		{"empty", nil, "image/png", MsgInvalidImage},
		{"too large", bytes.Repeat([]byte{0xFF}, 64*1024+1), "image/jpeg", MsgTooLarge},
		{"not an image", []byte("hello, this is plain text"), "image/jpeg", MsgInvalidImage},
		{"disallowed declared format", pngBytes(t, 2, 2), "image/heic", MsgInvalidImage},
		{"dimensions over limit", pngBytes(t, 101, 1), "image/png", MsgInvalidImage},
		{"zip archive", append([]byte{0x50, 0x4B, 0x03, 0x04}, make([]byte, 32)...), "image/png", MsgInvalidImage},
	}

	p := NewPipeline(Options{Limits: limits})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Process(context.Background(), Upload{Reader: bytes.NewReader(tt.payload), MediaType: tt.mediaType})
			require.Error(t, err)
			assert.True(t, platformerrors.IsKind(err, platformerrors.KindInvalidInput))
			assert.Equal(t, tt.message, platformerrors.PublicMessage(err, ""))
		})
	}
}

func TestPipeline_Process_ValidationDisabledForwardsBytes(t *testing.T) {
	limits := testLimits()
	limits.Validate = false
	p := NewPipeline(Options{Limits: limits})

	out, err := p.Process(context.Background(), Upload{
		Reader:    strings.NewReader("not really an image"),
		MediaType: "image/jpeg",
	})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", out.MediaType)
	assert.Empty(t, out.Format)
}

func TestPipeline_Process_NilReader(t *testing.T) {
	p := NewPipeline(Options{Limits: testLimits()})
	_, err := p.Process(context.Background(), Upload{})
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindInvalidInput))
}

func TestFormatFromMediaType(t *testing.T) {
	assert.Equal(t, "jpeg", formatFromMediaType("image/jpeg"))
	assert.Equal(t, "webp", formatFromMediaType("image/webp; charset=binary"))
	assert.Equal(t, "", formatFromMediaType("text/plain"))
	assert.Equal(t, "", formatFromMediaType(""))
}
