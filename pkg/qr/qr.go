// Package qr renders payment-link QR codes so a participant can open their
// share of a bill on a phone wallet.
package qr

import (
	"fmt"
	"io"

	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// RenderPNG encodes content as a QR code and writes the PNG to w.
func RenderPNG(w io.Writer, content string) error {
	if content == "" {
		return fmt.Errorf("qr content is empty")
	}
	qrc, err := qrcode.New(content)
	if err != nil {
		return fmt.Errorf("generate qr code: %w", err)
	}
	writer := standard.NewWithWriter(nopCloser{w}, standard.WithBuiltinImageEncoder(standard.PNG_FORMAT))
	if err := qrc.Save(writer); err != nil {
		return fmt.Errorf("write qr image: %w", err)
	}
	return nil
}
