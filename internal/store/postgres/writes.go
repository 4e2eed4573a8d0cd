package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/strata-systems/strata/pkg/types"
)

func (s *Store) CreateDataSource(ctx context.Context, ds types.DataSource) error {
	schemaJSON, err := json.Marshal(ds.Schema)
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO datasource (id, name, schema_json, active_snapshot_id, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		ds.ID, ds.Name, schemaJSON, ds.ActiveSnapshotID, ds.CreatedAt)
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "inserting datasource %s", ds.ID)
	}
	return nil
}

func (s *Store) UpdateSchema(ctx context.Context, dsID string, schema []types.Column) error {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE datasource SET schema_json = $2 WHERE id = $1`, dsID, schemaJSON)
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "updating schema for %s", dsID)
	}
	if tag.RowsAffected() == 0 {
		return types.NewError(types.KindNotFound, "datasource %s not found", dsID)
	}
	return nil
}

func (s *Store) SetActiveSnapshot(ctx context.Context, dsID, snapshotID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE datasource SET active_snapshot_id = NULLIF($2, '') WHERE id = $1`, dsID, snapshotID)
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "setting active snapshot for %s", dsID)
	}
	if tag.RowsAffected() == 0 {
		return types.NewError(types.KindNotFound, "datasource %s not found", dsID)
	}
	return nil
}

func (s *Store) CreateSnapshot(ctx context.Context, snap types.Snapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshot (id, datasource_id, path, created_at) VALUES ($1, $2, $3, $4)`,
		snap.ID, snap.DataSourceID, snap.Path, snap.CreatedAt)
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "inserting snapshot %s", snap.ID)
	}
	return nil
}

func (s *Store) CreatePreprocess(ctx context.Context, pp types.Preprocess) error {
	stepsJSON, err := json.Marshal(pp.Steps)
	if err != nil {
		return fmt.Errorf("encoding steps: %w", err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "beginning transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO preprocess (id, name, steps_json, datasource_child_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		pp.ID, pp.Name, stepsJSON, pp.ChildID, pp.CreatedAt); err != nil {
		return types.WrapError(types.KindStorageError, err, "inserting preprocess %s", pp.ID)
	}
	for i, parentID := range pp.ParentIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO preprocess_parents (preprocess_id, datasource_id, position) VALUES ($1, $2, $3)`,
			pp.ID, parentID, i); err != nil {
			return types.WrapError(types.KindStorageError, err, "linking parent %s", parentID)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return types.WrapError(types.KindStorageError, err, "committing preprocess %s", pp.ID)
	}
	return nil
}

func (s *Store) CreateExecution(ctx context.Context, exec types.ExecutedPreprocess) error {
	detailsJSON, err := json.Marshal(exec.Details)
	if err != nil {
		return fmt.Errorf("encoding details: %w", err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "beginning transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO executed_preprocess (id, preprocess_id, output_snapshot_id, details_json, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		exec.ID, exec.PreprocessID, exec.OutputSnapshotID, detailsJSON, exec.CreatedAt); err != nil {
		return types.WrapError(types.KindStorageError, err, "inserting execution %s", exec.ID)
	}
	for i, snapID := range exec.InputSnapshotIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO execution_snapshots (executed_preprocess_id, snapshot_id, position) VALUES ($1, $2, $3)`,
			exec.ID, snapID, i); err != nil {
			return types.WrapError(types.KindStorageError, err, "linking input snapshot %s", snapID)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return types.WrapError(types.KindStorageError, err, "committing execution %s", exec.ID)
	}
	return nil
}

func (s *Store) CreateTraining(ctx context.Context, tr types.Training) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO training (id, name, datasource_id, automation_enabled, automation_schedule, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		tr.ID, tr.Name, tr.DataSourceID, tr.AutomationEnabled, tr.AutomationSchedule, tr.CreatedAt)
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "inserting training %s", tr.ID)
	}
	return nil
}

func (s *Store) SetAutomation(ctx context.Context, trainingID string, enabled bool, schedule string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE training SET automation_enabled = $2, automation_schedule = $3 WHERE id = $1`,
		trainingID, enabled, schedule)
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "updating automation for %s", trainingID)
	}
	if tag.RowsAffected() == 0 {
		return types.NewError(types.KindNotFound, "training %s not found", trainingID)
	}
	return nil
}

func (s *Store) CreateTrainingExecution(ctx context.Context, exec types.TrainingExecution) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO training_execution (id, training_id, snapshot_id, status, error, started_at, finished_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`,
		exec.ID, exec.TrainingID, exec.SnapshotID, exec.Status, exec.Error, exec.StartedAt, nullTime(exec.FinishedAt))
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "inserting training execution %s", exec.ID)
	}
	return nil
}

func (s *Store) UpdateTrainingExecution(ctx context.Context, exec types.TrainingExecution) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE training_execution
		 SET snapshot_id = NULLIF($2, ''), status = $3, error = $4, finished_at = $5
		 WHERE id = $1`,
		exec.ID, exec.SnapshotID, exec.Status, exec.Error, nullTime(exec.FinishedAt))
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "updating training execution %s", exec.ID)
	}
	if tag.RowsAffected() == 0 {
		return types.NewError(types.KindNotFound, "training execution %s not found", exec.ID)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
