package analysis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Download is a fetched report body.
type Download struct {
	Body        []byte
	ContentType string
}

// Fetcher reads report bytes from an absolute http(s) URL or, for files
// stored by the local fallback, from the upload directory.
type Fetcher struct {
	Client       *http.Client
	Timeout      time.Duration
	MaxBytes     int64
	UploadDir    string // local root that UploadPrefix maps onto
	UploadPrefix string // e.g. "/uploads"
}

// NewFetcher returns a Fetcher with its own HTTP client.
func NewFetcher(timeout time.Duration, maxBytes int64, uploadDir, uploadPrefix string) *Fetcher {
	return &Fetcher{
		Client:       &http.Client{Timeout: timeout},
		Timeout:      timeout,
		MaxBytes:     maxBytes,
		UploadDir:    uploadDir,
		UploadPrefix: uploadPrefix,
	}
}

// Fetch loads the bytes behind rawURL. Every failure wraps ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Download, error) {
	if f.UploadPrefix != "" && strings.HasPrefix(rawURL, f.UploadPrefix+"/") {
		return f.readLocal(rawURL)
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return Download{}, fmt.Errorf("%w: unsupported url %q", ErrFetch, rawURL)
	}
	return f.get(ctx, rawURL)
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (Download, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Download{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Download{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Download{}, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}
	body, err := f.readCapped(resp.Body)
	if err != nil {
		return Download{}, err
	}
	return Download{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (f *Fetcher) readCapped(r io.Reader) ([]byte, error) {
	if f.MaxBytes > 0 {
		r = io.LimitReader(r, f.MaxBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if f.MaxBytes > 0 && int64(len(body)) > f.MaxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrFetch, f.MaxBytes)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrFetch)
	}
	return body, nil
}

func (f *Fetcher) readLocal(rawURL string) (Download, error) {
	rel := strings.TrimPrefix(rawURL, f.UploadPrefix+"/")
	if i := strings.IndexAny(rel, "?#"); i >= 0 {
		rel = rel[:i]
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return Download{}, fmt.Errorf("%w: invalid local path", ErrFetch)
	}
	file, err := os.Open(filepath.Join(f.UploadDir, clean))
	if err != nil {
		return Download{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer file.Close()

	body, err := f.readCapped(file)
	if err != nil {
		return Download{}, err
	}
	return Download{Body: body}, nil
}
