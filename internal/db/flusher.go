package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cespare/xxhash/v2"
	"github.com/robfig/cron/v3"

	"github.com/airenas/rt-caption-assistant/internal/domain"
)

// SnapshotSource provides the state to persist
type SnapshotSource interface {
	Snapshot() domain.Snapshot
}

// Restorer loads persisted state
type Restorer interface {
	Restore(snap domain.Snapshot)
}

// Flusher saves snapshots on a cron schedule, unchanged state is not written
type Flusher struct {
	src      SnapshotSource
	store    SnapshotManager
	id       string
	schedule string
	timeout  time.Duration

	cron *cron.Cron
	mu   sync.Mutex
	last uint64
}

// NewFlusher creates Flusher, schedule is a cron spec like "@every 2s"
func NewFlusher(src SnapshotSource, store SnapshotManager, id, schedule string) (*Flusher, error) {
	if src == nil || store == nil {
		return nil, fmt.Errorf("no snapshot source or store")
	}
	if schedule == "" {
		schedule = "@every 2s"
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", schedule, err)
	}
	goapp.Log.Info().Str("id", id).Str("schedule", schedule).Msg("Snapshot flusher")
	return &Flusher{src: src, store: store, id: id, schedule: schedule, timeout: 5 * time.Second}, nil
}

// Restore loads the stored snapshot into dst, the digest is remembered so it is not written back
func (f *Flusher) Restore(ctx context.Context, dst Restorer) (bool, error) {
	snap, err := f.store.GetSnapshot(ctx, f.id)
	if err != nil {
		return false, fmt.Errorf("get snapshot: %w", err)
	}
	if snap == nil {
		return false, nil
	}
	dst.Restore(*snap)
	if d, err := digest(f.src.Snapshot()); err == nil {
		f.mu.Lock()
		f.last = d
		f.mu.Unlock()
	}
	return true, nil
}

// Start runs the schedule
func (f *Flusher) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(f.schedule, f.tick); err != nil {
		return fmt.Errorf("add flush job: %w", err)
	}
	f.cron = c
	c.Start()
	return nil
}

// Stop waits for a running flush and saves the final state
func (f *Flusher) Stop(ctx context.Context) error {
	if f.cron != nil {
		select {
		case <-f.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
	_, err := f.Flush(ctx)
	return err
}

func (f *Flusher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if _, err := f.Flush(ctx); err != nil {
		goapp.Log.Error().Err(err).Str("id", f.id).Msg("flush snapshot")
	}
}

// Flush saves the snapshot if it changed since the last save
func (f *Flusher) Flush(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.src.Snapshot()
	d, err := digest(snap)
	if err != nil {
		return false, err
	}
	if d == f.last {
		return false, nil
	}
	if err := f.store.SaveSnapshot(ctx, f.id, &snap); err != nil {
		return false, fmt.Errorf("save snapshot: %w", err)
	}
	f.last = d
	goapp.Log.Debug().Str("id", f.id).Int("lines", len(snap.Lines)).Msg("snapshot saved")
	return true, nil
}

func digest(snap domain.Snapshot) (uint64, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}
	return xxhash.Sum64(data), nil
}
