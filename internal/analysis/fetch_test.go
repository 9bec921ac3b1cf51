package analysis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFetcher_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png; charset=binary")
			_, _ = w.Write([]byte("pngdata"))
		case "/empty":
			w.WriteHeader(http.StatusOK)
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(100*time.Millisecond, 32, "", "/uploads")
	ctx := context.Background()

	d, err := f.Fetch(ctx, srv.URL+"/ok.png")
	if err != nil {
		t.Fatalf("Fetch ok: %v", err)
	}
	if string(d.Body) != "pngdata" || !strings.HasPrefix(d.ContentType, "image/png") {
		t.Fatalf("unexpected download: %+v", d)
	}

	for _, path := range []string{"/missing", "/empty", "/big", "/slow"} {
		if _, err := f.Fetch(ctx, srv.URL+path); !errors.Is(err, ErrFetch) {
			t.Fatalf("%s: expected ErrFetch, got %v", path, err)
		}
	}

	if _, err := f.Fetch(ctx, "ftp://example.com/x.pdf"); !errors.Is(err, ErrFetch) {
		t.Fatalf("unsupported scheme: expected ErrFetch, got %v", err)
	}
	if _, err := f.Fetch(ctx, "http://127.0.0.1:1/unreachable"); !errors.Is(err, ErrFetch) {
		t.Fatalf("unreachable: expected ErrFetch, got %v", err)
	}
}

func TestFetcher_LocalUploads(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "reports"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "reports", "a.png"), []byte("local"), 0o644); err != nil {
		t.Fatal(err)
	}
	// a file outside the upload root
	if err := os.WriteFile(filepath.Join(filepath.Dir(dir), "secret.txt"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(time.Second, 1024, dir, "/uploads")
	d, err := f.Fetch(context.Background(), "/uploads/reports/a.png?v=1")
	if err != nil {
		t.Fatalf("local fetch: %v", err)
	}
	if string(d.Body) != "local" || d.ContentType != "" {
		t.Fatalf("unexpected download: %+v", d)
	}

	for _, bad := range []string{
		"/uploads/../secret.txt",
		"/uploads/reports/../../secret.txt",
		"/uploads/reports/missing.png",
		"/uploads/",
	} {
		if _, err := f.Fetch(context.Background(), bad); !errors.Is(err, ErrFetch) {
			t.Fatalf("%s: expected ErrFetch, got %v", bad, err)
		}
	}
}

func TestResolveMIME(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	pdf := []byte("%PDF-1.4\n%...")

	cases := []struct {
		name, ct, fileType, url string
		body                    []byte
		want                    string
	}{
		{"header wins", "image/JPEG; q=1", "", "https://x/a", png, "image/jpeg"},
		{"sniff when missing", "", "", "https://x/a", png, "image/png"},
		{"sniff when octet-stream", "application/octet-stream", "", "https://x/a", pdf, "application/pdf"},
		{"fileType forces pdf", "image/png", "application/pdf", "https://x/a", png, MIMEPDF},
		{"url suffix forces pdf", "text/plain", "", "https://x/doc.PDF?sig=1", pdf, MIMEPDF},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ResolveMIME(c.ct, c.body, c.fileType, c.url); got != c.want {
				t.Fatalf("ResolveMIME = %q; want %q", got, c.want)
			}
		})
	}
}
