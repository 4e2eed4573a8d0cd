// Package memory implements the metadata store in process memory. It backs
// tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/strata-systems/strata/internal/store"
	"github.com/strata-systems/strata/pkg/types"
)

// Compile-time interface satisfaction check.
var _ store.Store = (*Store)(nil)

// Store is an in-memory metadata backend.
type Store struct {
	mu          sync.RWMutex
	datasources map[string]types.DataSource
	snapshots   map[string]types.Snapshot
	preprocs    map[string]types.Preprocess
	executions  map[string]types.ExecutedPreprocess
	trainings   map[string]types.Training
	trainExecs  map[string]types.TrainingExecution

	// insertion order for deterministic listings
	dsOrder   []string
	snapOrder []string
	ppOrder   []string
	execOrder []string
	teOrder   []string
}

// New creates an empty memory store.
func New() *Store {
	return &Store{
		datasources: make(map[string]types.DataSource),
		snapshots:   make(map[string]types.Snapshot),
		preprocs:    make(map[string]types.Preprocess),
		executions:  make(map[string]types.ExecutedPreprocess),
		trainings:   make(map[string]types.Training),
		trainExecs:  make(map[string]types.TrainingExecution),
	}
}

func (s *Store) CreateDataSource(_ context.Context, ds types.DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasources[ds.ID] = ds
	s.dsOrder = append(s.dsOrder, ds.ID)
	return nil
}

func (s *Store) GetDataSource(_ context.Context, id string) (*types.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasources[id]
	if !ok {
		return nil, types.NewError(types.KindNotFound, "datasource %s not found", id)
	}
	return &ds, nil
}

func (s *Store) ListDataSources(_ context.Context) ([]types.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.DataSource, 0, len(s.dsOrder))
	for _, id := range s.dsOrder {
		out = append(out, s.datasources[id])
	}
	return out, nil
}

func (s *Store) UpdateSchema(_ context.Context, dsID string, schema []types.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasources[dsID]
	if !ok {
		return types.NewError(types.KindNotFound, "datasource %s not found", dsID)
	}
	ds.Schema = append([]types.Column(nil), schema...)
	s.datasources[dsID] = ds
	return nil
}

func (s *Store) SetActiveSnapshot(_ context.Context, dsID, snapshotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasources[dsID]
	if !ok {
		return types.NewError(types.KindNotFound, "datasource %s not found", dsID)
	}
	ds.ActiveSnapshotID = snapshotID
	s.datasources[dsID] = ds
	return nil
}

func (s *Store) CreateSnapshot(_ context.Context, snap types.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.ID] = snap
	s.snapOrder = append(s.snapOrder, snap.ID)
	return nil
}

func (s *Store) GetSnapshot(_ context.Context, id string) (*types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, types.NewError(types.KindNotFound, "snapshot %s not found", id)
	}
	return &snap, nil
}

func (s *Store) ListSnapshots(_ context.Context, dsID string) ([]types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Snapshot
	for _, id := range s.snapOrder {
		if s.snapshots[id].DataSourceID == dsID {
			out = append(out, s.snapshots[id])
		}
	}
	return out, nil
}

func (s *Store) CreatePreprocess(_ context.Context, pp types.Preprocess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preprocs[pp.ID] = pp
	s.ppOrder = append(s.ppOrder, pp.ID)
	return nil
}

func (s *Store) GetPreprocess(_ context.Context, id string) (*types.Preprocess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pp, ok := s.preprocs[id]
	if !ok {
		return nil, types.NewError(types.KindNotFound, "preprocess %s not found", id)
	}
	return &pp, nil
}

func (s *Store) ListPreprocesses(_ context.Context) ([]types.Preprocess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Preprocess, 0, len(s.ppOrder))
	for _, id := range s.ppOrder {
		out = append(out, s.preprocs[id])
	}
	return out, nil
}

func (s *Store) PreprocessByChild(_ context.Context, childID string) (*types.Preprocess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.ppOrder {
		if pp := s.preprocs[id]; pp.ChildID == childID {
			return &pp, nil
		}
	}
	return nil, types.NewError(types.KindNotFound, "no preprocess produces datasource %s", childID)
}

func (s *Store) CreateExecution(_ context.Context, exec types.ExecutedPreprocess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[exec.ID] = exec
	s.execOrder = append(s.execOrder, exec.ID)
	return nil
}

func (s *Store) GetExecution(_ context.Context, id string) (*types.ExecutedPreprocess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.executions[id]
	if !ok {
		return nil, types.NewError(types.KindNotFound, "execution %s not found", id)
	}
	return &exec, nil
}

func (s *Store) ListExecutions(_ context.Context, preprocessID string) ([]types.ExecutedPreprocess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.ExecutedPreprocess
	for _, id := range s.execOrder {
		if s.executions[id].PreprocessID == preprocessID {
			out = append(out, s.executions[id])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ExecutionByOutput(_ context.Context, snapshotID string) (*types.ExecutedPreprocess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.execOrder {
		if exec := s.executions[id]; exec.OutputSnapshotID == snapshotID {
			return &exec, nil
		}
	}
	return nil, types.NewError(types.KindNotFound, "no execution produced snapshot %s", snapshotID)
}

func (s *Store) CreateTraining(_ context.Context, tr types.Training) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trainings[tr.ID] = tr
	return nil
}

func (s *Store) GetTraining(_ context.Context, id string) (*types.Training, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.trainings[id]
	if !ok {
		return nil, types.NewError(types.KindNotFound, "training %s not found", id)
	}
	return &tr, nil
}

func (s *Store) ListAutomatedTrainings(_ context.Context) ([]types.Training, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.trainings))
	for id := range s.trainings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []types.Training
	for _, id := range ids {
		if tr := s.trainings[id]; tr.AutomationEnabled {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (s *Store) SetAutomation(_ context.Context, trainingID string, enabled bool, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.trainings[trainingID]
	if !ok {
		return types.NewError(types.KindNotFound, "training %s not found", trainingID)
	}
	tr.AutomationEnabled = enabled
	tr.AutomationSchedule = schedule
	s.trainings[trainingID] = tr
	return nil
}

func (s *Store) CreateTrainingExecution(_ context.Context, exec types.TrainingExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trainExecs[exec.ID] = exec
	s.teOrder = append(s.teOrder, exec.ID)
	return nil
}

func (s *Store) UpdateTrainingExecution(_ context.Context, exec types.TrainingExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trainExecs[exec.ID]; !ok {
		return types.NewError(types.KindNotFound, "training execution %s not found", exec.ID)
	}
	s.trainExecs[exec.ID] = exec
	return nil
}

func (s *Store) ListTrainingExecutions(_ context.Context, trainingID string) ([]types.TrainingExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.TrainingExecution
	for _, id := range s.teOrder {
		if s.trainExecs[id].TrainingID == trainingID {
			out = append(out, s.trainExecs[id])
		}
	}
	return out, nil
}

func (s *Store) Start(context.Context) error { return nil }
func (s *Store) Stop(context.Context) error  { return nil }
func (s *Store) Ping(context.Context) error  { return nil }
