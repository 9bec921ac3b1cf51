package analysis

import (
	"mime"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MIME types the pipeline distinguishes.
const (
	MIMEPDF = "application/pdf"
	MIMEPNG = "image/png"
)

// ResolveMIME picks the media type of a download. The response header wins
// (parameters stripped), then a content sniff. A stored file type or URL
// path naming a PDF forces application/pdf.
func ResolveMIME(contentType string, body []byte, fileType, rawURL string) string {
	resolved := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			resolved = strings.ToLower(mt)
		} else {
			resolved = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
		}
	}
	if resolved == "" || resolved == "application/octet-stream" {
		if len(body) > 0 {
			sniffed, _, _ := mime.ParseMediaType(mimetype.Detect(body).String())
			resolved = sniffed
		}
	}
	if strings.Contains(strings.ToLower(fileType), "pdf") || urlPathIsPDF(rawURL) {
		resolved = MIMEPDF
	}
	return resolved
}

func urlPathIsPDF(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return strings.HasSuffix(strings.ToLower(p), ".pdf")
}
