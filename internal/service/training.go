package service

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/strata-systems/strata/internal/metrics"
	"github.com/strata-systems/strata/pkg/types"
)

// CreateTraining registers a training against a target datasource.
// Automation starts disabled.
func (s *Service) CreateTraining(ctx context.Context, name, dataSourceID string) (*types.Training, error) {
	if name == "" {
		return nil, types.NewError(types.KindInvalidInput, "training name required")
	}
	if _, err := s.store.GetDataSource(ctx, dataSourceID); err != nil {
		return nil, err
	}
	tr := types.Training{
		ID:           ulid.Make().String(),
		Name:         name,
		DataSourceID: dataSourceID,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateTraining(ctx, tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// SetAutomation toggles scheduled automation for a training. Enabling
// requires a schedule string.
func (s *Service) SetAutomation(ctx context.Context, trainingID string, enabled bool, schedule string) error {
	if _, err := s.store.GetTraining(ctx, trainingID); err != nil {
		return err
	}
	if enabled && schedule == "" {
		return types.NewError(types.KindInvalidInput, "enabling automation requires a schedule")
	}
	return s.store.SetAutomation(ctx, trainingID, enabled, schedule)
}

// GetTraining returns a training by id.
func (s *Service) GetTraining(ctx context.Context, id string) (*types.Training, error) {
	return s.store.GetTraining(ctx, id)
}

// ListAutomatedTrainings returns every training with automation enabled.
func (s *Service) ListAutomatedTrainings(ctx context.Context) ([]types.Training, error) {
	return s.store.ListAutomatedTrainings(ctx)
}

// ListTrainingExecutions returns the automation run history of a training.
func (s *Service) ListTrainingExecutions(ctx context.Context, trainingID string) ([]types.TrainingExecution, error) {
	return s.store.ListTrainingExecutions(ctx, trainingID)
}

// RunAutomationForTraining performs one automation cycle: materialize the
// training's datasource, hand the snapshot to the runner, and record the
// outcome. Failures land on the execution record instead of escaping to
// the scheduler.
func (s *Service) RunAutomationForTraining(ctx context.Context, trainingID string) (*types.TrainingExecution, error) {
	tr, err := s.store.GetTraining(ctx, trainingID)
	if err != nil {
		return nil, err
	}

	exec := types.TrainingExecution{
		ID:         ulid.Make().String(),
		TrainingID: tr.ID,
		Status:     types.ExecutionRunning,
		StartedAt:  s.now(),
	}
	if err := s.store.CreateTrainingExecution(ctx, exec); err != nil {
		return nil, err
	}
	metrics.AutomationRuns.Add(1)

	snapID, runErr := s.mat.Materialize(ctx, tr.DataSourceID)
	if runErr == nil {
		exec.SnapshotID = snapID
		runErr = s.runner.Run(ctx, *tr, snapID)
	}

	exec.FinishedAt = s.now()
	if runErr != nil {
		exec.Status = types.ExecutionFailed
		exec.Error = runErr.Error()
		metrics.AutomationFailures.Add(1)
		s.log.Error("automation run failed",
			"training_id", tr.ID, "execution_id", exec.ID, "error", runErr)
	} else {
		exec.Status = types.ExecutionSuccess
		s.log.Info("automation run complete",
			"training_id", tr.ID, "execution_id", exec.ID, "snapshot_id", snapID)
	}
	if err := s.store.UpdateTrainingExecution(ctx, exec); err != nil {
		return nil, err
	}
	return &exec, nil
}
