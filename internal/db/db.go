// Package db keeps session snapshots and settings
package db

import (
	"context"

	"github.com/airenas/rt-caption-assistant/internal/domain"
)

// SnapshotManager persists engine state and per session settings
type SnapshotManager interface {
	// SaveSnapshot stores the transcript state of the session
	SaveSnapshot(ctx context.Context, id string, snap *domain.Snapshot) error
	// GetSnapshot returns nil, nil if nothing is stored
	GetSnapshot(ctx context.Context, id string) (*domain.Snapshot, error)
	SaveSettings(ctx context.Context, s *domain.Settings) error
	// GetSettings returns nil, nil if nothing is stored
	GetSettings(ctx context.Context, id string) (*domain.Settings, error)
}
