// Package jobs runs periodic maintenance: removing rasterization workspaces
// left behind by crashed processes and purging expired idempotency records.
package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/analysis"
	"github.com/tbourn/go-telehealth-backend/internal/repo"
)

// SweepResult summarizes a single run.
type SweepResult struct {
	Workspaces  int
	Idempotency int64
}

// Sweeper removes stale state. It is safe to run concurrently with request
// handling: only workspaces older than MaxAge are touched.
type Sweeper struct {
	DB      *gorm.DB
	WorkDir string
	MaxAge  time.Duration

	now func() time.Time
}

// NewSweeper constructs a Sweeper.
func NewSweeper(db *gorm.DB, workDir string, maxAge time.Duration) *Sweeper {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Sweeper{DB: db, WorkDir: workDir, MaxAge: maxAge, now: time.Now}
}

// Run performs one sweep. Failures in one step do not skip the other.
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	var firstErr error

	n, err := s.sweepWorkspaces()
	res.Workspaces = n
	if err != nil {
		firstErr = err
	}

	if s.DB != nil {
		deleted, err := repo.DeleteExpiredIdempotency(ctx, s.DB, s.now().UTC())
		res.Idempotency = deleted
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("purge idempotency: %w", err)
		}
	}
	return res, firstErr
}

func (s *Sweeper) sweepWorkspaces() (int, error) {
	if s.WorkDir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(s.WorkDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read work dir: %w", err)
	}
	cutoff := s.now().Add(-s.MaxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), analysis.WorkspacePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.WorkDir, e.Name())); err != nil {
			log.Warn().Str("component", "jobs").Err(err).Str("dir", e.Name()).Msg("remove stale workspace")
			continue
		}
		removed++
	}
	return removed, nil
}

// Scheduler wraps a cron runner.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers the sweeper on spec (standard cron syntax or
// descriptors such as "@every 15m").
func NewScheduler(spec string, sw *Sweeper) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{})))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		res, err := sw.Run(ctx)
		ev := log.Info()
		if err != nil {
			ev = log.Warn().Err(err)
		}
		ev.Str("component", "jobs").
			Int("workspaces", res.Workspaces).
			Int64("idempotency", res.Idempotency).
			Msg("sweep finished")
	})
	if err != nil {
		return nil, fmt.Errorf("schedule sweeper %q: %w", spec, err)
	}
	return &Scheduler{cron: c}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running job, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.Debug().Str("component", "cron").Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.Error().Str("component", "cron").Err(err).Fields(keysAndValues).Msg(msg)
}
