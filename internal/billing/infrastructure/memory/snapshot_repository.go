// Package memory provides in-memory billing stores for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"tenancy-billing/internal/billing/application"
	billing "tenancy-billing/internal/billing/domain"
)

// SnapshotRepository serves run snapshots from memory.
type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*application.Snapshot
}

// NewSnapshotRepository constructs an empty repository.
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{snapshots: make(map[string]*application.Snapshot)}
}

// Put stores a snapshot for a building and period.
func (r *SnapshotRepository) Put(buildingID string, periodID billing.PeriodID, snap *application.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[buildingID+"/"+string(periodID)] = snap
}

// LoadSnapshot implements application.SnapshotSource.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, buildingID string, periodID billing.PeriodID) (*application.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[buildingID+"/"+string(periodID)]
	if !ok {
		return nil, billing.ErrPeriodNotFound
	}
	return snap, nil
}

// RunStore keeps finished runs in memory.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*application.RunResult
}

// NewRunStore constructs an empty store.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]*application.RunResult)}
}

// SaveRun implements application.ResultSink.
func (s *RunStore) SaveRun(ctx context.Context, result *application.RunResult) error {
	if result == nil {
		return billing.ErrNilSnapshot
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[result.BuildingID+"/"+string(result.Period.ID)] = result
	return nil
}

// Run returns a stored run.
func (s *RunStore) Run(buildingID string, periodID billing.PeriodID) (*application.RunResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[buildingID+"/"+string(periodID)]
	return run, ok
}
