// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

package auth

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
)

// DefaultReapInterval is how often expired sessions are purged.
const DefaultReapInterval = time.Hour

// ReaperConfig configures a Reaper. Zero values use defaults.
type ReaperConfig struct {
	// Interval between sweeps. Defaults to DefaultReapInterval.
	Interval time.Duration

	// Logger for sweep results. Defaults to a discard logger.
	Logger *slog.Logger

	// OnReaped, if set, is called with the number of rows deleted after
	// each sweep that deleted at least one row.
	OnReaped func(count int64)
}

// Reaper periodically deletes expired session rows. Expiration is already
// enforced lazily at resolution time; the reaper is storage hygiene only.
type Reaper struct {
	sessions SessionRepository
	interval time.Duration
	logger   *slog.Logger
	onReaped func(int64)

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewReaper creates a Reaper.
func NewReaper(sessions SessionRepository, cfg ReaperConfig) (*Reaper, error) {
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultReapInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Reaper{
		sessions: sessions,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		onReaped: cfg.OnReaped,
	}, nil
}

// Start begins sweeping in a background goroutine.
func (r *Reaper) Start() error {
	if !r.running.CompareAndSwap(false, true) {
		return oops.Errorf("session reaper already running")
	}

	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()

	r.logger.Info("session reaper started", "interval", r.interval)
	return nil
}

// Stop halts sweeping and waits for the background goroutine to exit, or
// for ctx to be cancelled.
func (r *Reaper) Stop(ctx context.Context) error {
	if !r.running.CompareAndSwap(true, false) {
		return nil
	}
	close(r.stop)
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return oops.With("operation", "stop session reaper").Wrap(ctx.Err())
	}
}

func (r *Reaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := r.sessions.DeleteExpired(ctx)
	if err != nil {
		r.logger.Error("session sweep failed", "error", err)
		return
	}
	if count > 0 {
		r.logger.Info("expired sessions purged", "count", count)
		if r.onReaped != nil {
			r.onReaped(count)
		}
	}
}
