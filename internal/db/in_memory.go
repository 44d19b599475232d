package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/airenas/rt-caption-assistant/internal/domain"
)

// MemoryDataManager keeps data in process, for tests and single instance runs
type MemoryDataManager struct {
	snapshots map[string][]byte
	settings  map[string]*domain.Settings

	lock sync.RWMutex
}

// NewMemoryDataManager creates MemoryDataManager
func NewMemoryDataManager() *MemoryDataManager {
	goapp.Log.Warn().Msg("Using in memory storage, data is lost on restart")
	return &MemoryDataManager{
		snapshots: make(map[string][]byte),
		settings:  make(map[string]*domain.Settings),
	}
}

// SaveSnapshot implements SnapshotManager.
func (am *MemoryDataManager) SaveSnapshot(_ context.Context, id string, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	am.lock.Lock()
	defer am.lock.Unlock()
	am.snapshots[id] = data
	return nil
}

// GetSnapshot implements SnapshotManager.
func (am *MemoryDataManager) GetSnapshot(_ context.Context, id string) (*domain.Snapshot, error) {
	am.lock.RLock()
	data, ok := am.snapshots[id]
	am.lock.RUnlock()
	if !ok {
		return nil, nil
	}
	var res domain.Snapshot
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &res, nil
}

// SaveSettings implements SnapshotManager.
func (am *MemoryDataManager) SaveSettings(_ context.Context, s *domain.Settings) error {
	am.lock.Lock()
	defer am.lock.Unlock()
	cp := *s
	am.settings[s.ID] = &cp
	return nil
}

// GetSettings implements SnapshotManager.
func (am *MemoryDataManager) GetSettings(_ context.Context, id string) (*domain.Settings, error) {
	am.lock.RLock()
	defer am.lock.RUnlock()
	data, ok := am.settings[id]
	if !ok {
		return nil, nil
	}
	cp := *data
	return &cp, nil
}
