package qr

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrollcall/internal/model"
)

func samplePayload() model.QRPayload {
	return model.QRPayload{
		ClassID:   "class-1",
		SessionID: "sess-1",
		Timestamp: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
		Lat:       52.52,
		Lng:       13.405,
	}
}

func TestEncodePNG(t *testing.T) {
	data, err := EncodePNG(samplePayload(), 256)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestEncodePNGDefaultSize(t *testing.T) {
	data, err := EncodePNG(samplePayload(), 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestEncodeDataURL(t *testing.T) {
	url, err := EncodeDataURL(samplePayload(), 128)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	assert.NoError(t, err)
}
