package analysis

import (
	"encoding/base64"
	"fmt"
)

// InlineImage is an image carried inline in a model request.
type InlineImage struct {
	MIMEType string
	Data     string // standard base64
}

// EncodeInline base64-encodes b. Empty input wraps ErrEncoding.
func EncodeInline(mimeType string, b []byte) (InlineImage, error) {
	if len(b) == 0 {
		return InlineImage{}, fmt.Errorf("%w: empty image", ErrEncoding)
	}
	return InlineImage{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(b)}, nil
}

// Bytes decodes the payload.
func (i InlineImage) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(i.Data)
}
