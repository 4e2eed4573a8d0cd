package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/strata-systems/strata/pkg/types"
)

func (s *Store) GetDataSource(ctx context.Context, id string) (*types.DataSource, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(schema_json, '[]'), COALESCE(active_snapshot_id, ''), created_at
		 FROM datasource WHERE id = $1`, id)
	return scanDataSource(row, id)
}

func (s *Store) ListDataSources(ctx context.Context) ([]types.DataSource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, COALESCE(schema_json, '[]'), COALESCE(active_snapshot_id, ''), created_at
		 FROM datasource ORDER BY created_at, id`)
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "listing datasources")
	}
	defer rows.Close()

	var out []types.DataSource
	for rows.Next() {
		ds, err := scanDataSource(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *ds)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataSource(row rowScanner, id string) (*types.DataSource, error) {
	var ds types.DataSource
	var schemaJSON []byte
	err := row.Scan(&ds.ID, &ds.Name, &schemaJSON, &ds.ActiveSnapshotID, &ds.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewError(types.KindNotFound, "datasource %s not found", id)
	}
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "scanning datasource")
	}
	if err := json.Unmarshal(schemaJSON, &ds.Schema); err != nil {
		return nil, fmt.Errorf("decoding schema for %s: %w", ds.ID, err)
	}
	return &ds, nil
}

func (s *Store) GetSnapshot(ctx context.Context, id string) (*types.Snapshot, error) {
	var snap types.Snapshot
	err := s.pool.QueryRow(ctx,
		`SELECT id, datasource_id, path, created_at FROM snapshot WHERE id = $1`, id).
		Scan(&snap.ID, &snap.DataSourceID, &snap.Path, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewError(types.KindNotFound, "snapshot %s not found", id)
	}
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "scanning snapshot %s", id)
	}
	return &snap, nil
}

func (s *Store) ListSnapshots(ctx context.Context, dsID string) ([]types.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, datasource_id, path, created_at FROM snapshot
		 WHERE datasource_id = $1 ORDER BY created_at, id`, dsID)
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "listing snapshots for %s", dsID)
	}
	defer rows.Close()

	var out []types.Snapshot
	for rows.Next() {
		var snap types.Snapshot
		if err := rows.Scan(&snap.ID, &snap.DataSourceID, &snap.Path, &snap.CreatedAt); err != nil {
			return nil, types.WrapError(types.KindStorageError, err, "scanning snapshot")
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

const preprocessSelect = `
	SELECT p.id, p.name, p.steps_json, p.datasource_child_id, p.created_at,
	       COALESCE(array_agg(pp.datasource_id ORDER BY pp.position)
	                FILTER (WHERE pp.datasource_id IS NOT NULL), '{}')
	FROM preprocess p
	LEFT JOIN preprocess_parents pp ON pp.preprocess_id = p.id`

func (s *Store) GetPreprocess(ctx context.Context, id string) (*types.Preprocess, error) {
	row := s.pool.QueryRow(ctx, preprocessSelect+` WHERE p.id = $1 GROUP BY p.id`, id)
	return scanPreprocess(row, id)
}

func (s *Store) PreprocessByChild(ctx context.Context, childID string) (*types.Preprocess, error) {
	row := s.pool.QueryRow(ctx, preprocessSelect+` WHERE p.datasource_child_id = $1 GROUP BY p.id`, childID)
	pp, err := scanPreprocess(row, childID)
	if types.IsKind(err, types.KindNotFound) {
		return nil, types.NewError(types.KindNotFound, "no preprocess produces datasource %s", childID)
	}
	return pp, err
}

func (s *Store) ListPreprocesses(ctx context.Context) ([]types.Preprocess, error) {
	rows, err := s.pool.Query(ctx, preprocessSelect+` GROUP BY p.id ORDER BY p.created_at, p.id`)
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "listing preprocesses")
	}
	defer rows.Close()

	var out []types.Preprocess
	for rows.Next() {
		pp, err := scanPreprocess(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *pp)
	}
	return out, rows.Err()
}

func scanPreprocess(row rowScanner, id string) (*types.Preprocess, error) {
	var pp types.Preprocess
	var stepsJSON []byte
	err := row.Scan(&pp.ID, &pp.Name, &stepsJSON, &pp.ChildID, &pp.CreatedAt, &pp.ParentIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewError(types.KindNotFound, "preprocess %s not found", id)
	}
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "scanning preprocess")
	}
	if err := json.Unmarshal(stepsJSON, &pp.Steps); err != nil {
		return nil, fmt.Errorf("decoding steps for %s: %w", pp.ID, err)
	}
	return &pp, nil
}

const executionSelect = `
	SELECT e.id, e.preprocess_id, e.output_snapshot_id, COALESCE(e.details_json, '[]'), e.created_at,
	       COALESCE(array_agg(es.snapshot_id ORDER BY es.position)
	                FILTER (WHERE es.snapshot_id IS NOT NULL), '{}')
	FROM executed_preprocess e
	LEFT JOIN execution_snapshots es ON es.executed_preprocess_id = e.id`

func (s *Store) GetExecution(ctx context.Context, id string) (*types.ExecutedPreprocess, error) {
	row := s.pool.QueryRow(ctx, executionSelect+` WHERE e.id = $1 GROUP BY e.id`, id)
	return scanExecution(row, id)
}

func (s *Store) ExecutionByOutput(ctx context.Context, snapshotID string) (*types.ExecutedPreprocess, error) {
	row := s.pool.QueryRow(ctx, executionSelect+` WHERE e.output_snapshot_id = $1 GROUP BY e.id
		ORDER BY e.created_at DESC LIMIT 1`, snapshotID)
	exec, err := scanExecution(row, snapshotID)
	if types.IsKind(err, types.KindNotFound) {
		return nil, types.NewError(types.KindNotFound, "no execution produced snapshot %s", snapshotID)
	}
	return exec, err
}

func (s *Store) ListExecutions(ctx context.Context, preprocessID string) ([]types.ExecutedPreprocess, error) {
	rows, err := s.pool.Query(ctx,
		executionSelect+` WHERE e.preprocess_id = $1 GROUP BY e.id ORDER BY e.created_at, e.id`, preprocessID)
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "listing executions for %s", preprocessID)
	}
	defer rows.Close()

	var out []types.ExecutedPreprocess
	for rows.Next() {
		exec, err := scanExecution(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *exec)
	}
	return out, rows.Err()
}

func scanExecution(row rowScanner, id string) (*types.ExecutedPreprocess, error) {
	var exec types.ExecutedPreprocess
	var detailsJSON []byte
	err := row.Scan(&exec.ID, &exec.PreprocessID, &exec.OutputSnapshotID, &detailsJSON,
		&exec.CreatedAt, &exec.InputSnapshotIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewError(types.KindNotFound, "execution %s not found", id)
	}
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "scanning execution")
	}
	if err := json.Unmarshal(detailsJSON, &exec.Details); err != nil {
		return nil, fmt.Errorf("decoding details for %s: %w", exec.ID, err)
	}
	return &exec, nil
}

func (s *Store) GetTraining(ctx context.Context, id string) (*types.Training, error) {
	var tr types.Training
	var schedule *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, datasource_id, automation_enabled, automation_schedule, created_at
		 FROM training WHERE id = $1`, id).
		Scan(&tr.ID, &tr.Name, &tr.DataSourceID, &tr.AutomationEnabled, &schedule, &tr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewError(types.KindNotFound, "training %s not found", id)
	}
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "scanning training %s", id)
	}
	if schedule != nil {
		tr.AutomationSchedule = *schedule
	}
	return &tr, nil
}

func (s *Store) ListAutomatedTrainings(ctx context.Context) ([]types.Training, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, datasource_id, automation_enabled, automation_schedule, created_at
		 FROM training WHERE automation_enabled ORDER BY id`)
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "listing automated trainings")
	}
	defer rows.Close()

	var out []types.Training
	for rows.Next() {
		var tr types.Training
		var schedule *string
		if err := rows.Scan(&tr.ID, &tr.Name, &tr.DataSourceID, &tr.AutomationEnabled,
			&schedule, &tr.CreatedAt); err != nil {
			return nil, types.WrapError(types.KindStorageError, err, "scanning training")
		}
		if schedule != nil {
			tr.AutomationSchedule = *schedule
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *Store) ListTrainingExecutions(ctx context.Context, trainingID string) ([]types.TrainingExecution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, training_id, COALESCE(snapshot_id, ''), status, COALESCE(error, ''), started_at, finished_at
		 FROM training_execution WHERE training_id = $1 ORDER BY started_at, id`, trainingID)
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "listing training executions for %s", trainingID)
	}
	defer rows.Close()

	var out []types.TrainingExecution
	for rows.Next() {
		var exec types.TrainingExecution
		var finished *time.Time
		if err := rows.Scan(&exec.ID, &exec.TrainingID, &exec.SnapshotID, &exec.Status,
			&exec.Error, &exec.StartedAt, &finished); err != nil {
			return nil, types.WrapError(types.KindStorageError, err, "scanning training execution")
		}
		if finished != nil {
			exec.FinishedAt = *finished
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}
