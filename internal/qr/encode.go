package qr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"qrollcall/internal/model"
)

// EncodePNG renders a QR payload as a PNG image.
func EncodePNG(payload model.QRPayload, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("qr: encode payload: %w", err)
	}
	png, err := qrcode.Encode(string(data), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qr: render: %w", err)
	}
	return png, nil
}

// EncodeDataURL renders a QR payload as a base64 data URL suitable for an
// <img> src.
func EncodeDataURL(payload model.QRPayload, size int) (string, error) {
	png, err := EncodePNG(payload, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
