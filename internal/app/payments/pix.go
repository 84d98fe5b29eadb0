package payments

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// PixCharge is what checkout returns to the browser: the copy-and-paste
// payload plus a scannable QR code rendered from it.
type PixCharge struct {
	PaymentID    string `json:"payment_id"`
	PixCode      string `json:"pix_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
}

// QRCodePNG renders the PIX payload as a 256px PNG, base64-encoded for
// inline display.
func QRCodePNG(payload string) (string, error) {
	if payload == "" {
		return "", fmt.Errorf("empty pix payload")
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode pix qr: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
