// Package upload validates profile images and stores them in the background.
package upload

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nextgenbank/backoffice/internal/apperr"
)

// Limits bounds accepted images.
type Limits struct {
	MaxFileSize      int64
	MaxDimension     int
	AllowedMIMETypes []string
}

// Validate checks size, sniffed type and pixel dimensions of data and returns
// the detected MIME type.
func (l Limits) Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.ErrInvalidImage.WithMessage("File is empty")
	}
	if l.MaxFileSize > 0 && int64(len(data)) > l.MaxFileSize {
		return "", apperr.ErrInvalidImage.WithMessage(fmt.Sprintf("File size exceeds %s limit", sizeLabel(l.MaxFileSize)))
	}

	detected := mimetype.Detect(data)
	contentType := detected.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if !l.allowed(contentType) {
		return "", apperr.ErrInvalidImage.WithMessage("Invalid image format. Only JPEG, and PNG are allowed")
	}

	cfg, _, errDecode := image.DecodeConfig(bytes.NewReader(data))
	if errDecode != nil {
		return "", apperr.ErrInvalidImage.WithMessage("File is not a valid image")
	}
	if l.MaxDimension > 0 && (cfg.Width > l.MaxDimension || cfg.Height > l.MaxDimension) {
		return "", apperr.ErrInvalidImage.WithMessage(fmt.Sprintf("Image dimensions exceed %dpx limit", l.MaxDimension))
	}
	return contentType, nil
}

func (l Limits) allowed(contentType string) bool {
	for _, allowed := range l.AllowedMIMETypes {
		if strings.EqualFold(strings.TrimSpace(allowed), contentType) {
			return true
		}
	}
	return false
}

func sizeLabel(n int64) string {
	const mb = 1024 * 1024
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
