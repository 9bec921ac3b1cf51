package storage

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"
)

// LocalStore writes files under Dir/reports and serves them from URLPrefix.
type LocalStore struct {
	Dir       string
	URLPrefix string // public mount of Dir, e.g. "/uploads"

	now  func() time.Time
	rand func() int64
}

// NewLocalStore returns a store rooted at dir, published at urlPrefix.
func NewLocalStore(dir, urlPrefix string) *LocalStore {
	return &LocalStore{
		Dir:       dir,
		URLPrefix: urlPrefix,
		now:       time.Now,
		rand:      func() int64 { return rand.Int64N(1_000_000_000) },
	}
}

// Put writes the body to <Dir>/reports/<unixms>-<rand9><ext>.
func (s *LocalStore) Put(ctx context.Context, in PutInput) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	dir := filepath.Join(s.Dir, "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Object{}, fmt.Errorf("storage: create upload dir: %w", err)
	}
	name := fmt.Sprintf("%d-%09d%s", s.now().UnixMilli(), s.rand(), in.Ext)
	if err := os.WriteFile(filepath.Join(dir, name), in.Body, 0o644); err != nil {
		return Object{}, fmt.Errorf("storage: write %s: %w", name, err)
	}
	key := "reports/" + name
	return Object{Key: key, URL: s.URLPrefix + "/" + key, Method: MethodLocal}, nil
}
