package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/strata-systems/strata/pkg/types"
)

// pointer is a secondary-lookup item: child datasource to preprocess id,
// output snapshot to execution id.
type pointer struct {
	TargetID string
}

// putRecord marshals record into an item under PK/SK with optional GSI
// keys.
func (s *Store) putRecord(ctx context.Context, pk, gsiPK, gsiSK string, record any) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	item["PK"] = strAttr(pk)
	item["SK"] = strAttr(skRecord)
	if gsiPK != "" {
		item["GSI1PK"] = strAttr(gsiPK)
		item["GSI1SK"] = strAttr(gsiSK)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: item})
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "putting %s", pk)
	}
	return nil
}

func (s *Store) getRecord(ctx context.Context, pk string, out any) (bool, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": strAttr(pk),
			"SK": strAttr(skRecord),
		},
	})
	if err != nil {
		return false, types.WrapError(types.KindStorageError, err, "getting %s", pk)
	}
	if resp.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(resp.Item, out); err != nil {
		return false, fmt.Errorf("decoding %s: %w", pk, err)
	}
	return true, nil
}

// queryGSI returns every item under one GSI1PK, in GSI1SK order.
func (s *Store) queryGSI(ctx context.Context, gsiPK string) ([]map[string]ddbtypes.AttributeValue, error) {
	var items []map[string]ddbtypes.AttributeValue
	var startKey map[string]ddbtypes.AttributeValue
	for {
		resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			IndexName:              aws.String(gsiName),
			KeyConditionExpression: aws.String("GSI1PK = :pk"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":pk": strAttr(gsiPK),
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, types.WrapError(types.KindStorageError, err, "querying %s", gsiPK)
		}
		items = append(items, resp.Items...)
		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	return items, nil
}

func decodeAll[T any](items []map[string]ddbtypes.AttributeValue) ([]T, error) {
	out := make([]T, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, fmt.Errorf("decoding listed records: %w", err)
	}
	return out, nil
}

func (s *Store) CreateDataSource(ctx context.Context, ds types.DataSource) error {
	return s.putRecord(ctx, dataSourcePK(ds.ID),
		prefixType+"datasource", createdSK(prefixDataSource, ds.CreatedAt, ds.ID), ds)
}

func (s *Store) GetDataSource(ctx context.Context, id string) (*types.DataSource, error) {
	var ds types.DataSource
	ok, err := s.getRecord(ctx, dataSourcePK(id), &ds)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.NewError(types.KindNotFound, "datasource %s not found", id)
	}
	return &ds, nil
}

func (s *Store) ListDataSources(ctx context.Context) ([]types.DataSource, error) {
	blobs, err := s.queryGSI(ctx, prefixType+"datasource")
	if err != nil {
		return nil, err
	}
	return decodeAll[types.DataSource](blobs)
}

func (s *Store) UpdateSchema(ctx context.Context, dsID string, schema []types.Column) error {
	ds, err := s.GetDataSource(ctx, dsID)
	if err != nil {
		return err
	}
	ds.Schema = schema
	return s.CreateDataSource(ctx, *ds)
}

func (s *Store) SetActiveSnapshot(ctx context.Context, dsID, snapshotID string) error {
	ds, err := s.GetDataSource(ctx, dsID)
	if err != nil {
		return err
	}
	ds.ActiveSnapshotID = snapshotID
	return s.CreateDataSource(ctx, *ds)
}

func (s *Store) CreateSnapshot(ctx context.Context, snap types.Snapshot) error {
	return s.putRecord(ctx, snapshotPK(snap.ID),
		dataSourcePK(snap.DataSourceID), createdSK(prefixSnapshot, snap.CreatedAt, snap.ID), snap)
}

func (s *Store) GetSnapshot(ctx context.Context, id string) (*types.Snapshot, error) {
	var snap types.Snapshot
	ok, err := s.getRecord(ctx, snapshotPK(id), &snap)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.NewError(types.KindNotFound, "snapshot %s not found", id)
	}
	return &snap, nil
}

func (s *Store) ListSnapshots(ctx context.Context, dsID string) ([]types.Snapshot, error) {
	blobs, err := s.queryGSI(ctx, dataSourcePK(dsID))
	if err != nil {
		return nil, err
	}
	return decodeAll[types.Snapshot](blobs)
}

func (s *Store) CreatePreprocess(ctx context.Context, pp types.Preprocess) error {
	if err := s.putRecord(ctx, preprocessPK(pp.ID),
		prefixType+"preprocess", createdSK(prefixPreprocess, pp.CreatedAt, pp.ID), pp); err != nil {
		return err
	}
	return s.putRecord(ctx, prefixChild+pp.ChildID, "", "", pointer{TargetID: pp.ID})
}

func (s *Store) GetPreprocess(ctx context.Context, id string) (*types.Preprocess, error) {
	var pp types.Preprocess
	ok, err := s.getRecord(ctx, preprocessPK(id), &pp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.NewError(types.KindNotFound, "preprocess %s not found", id)
	}
	return &pp, nil
}

func (s *Store) ListPreprocesses(ctx context.Context) ([]types.Preprocess, error) {
	blobs, err := s.queryGSI(ctx, prefixType+"preprocess")
	if err != nil {
		return nil, err
	}
	return decodeAll[types.Preprocess](blobs)
}

func (s *Store) PreprocessByChild(ctx context.Context, childID string) (*types.Preprocess, error) {
	var ptr pointer
	ok, err := s.getRecord(ctx, prefixChild+childID, &ptr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.NewError(types.KindNotFound, "no preprocess produces datasource %s", childID)
	}
	return s.GetPreprocess(ctx, ptr.TargetID)
}

func (s *Store) CreateExecution(ctx context.Context, exec types.ExecutedPreprocess) error {
	if err := s.putRecord(ctx, executionPK(exec.ID),
		preprocessPK(exec.PreprocessID), createdSK(prefixExecution, exec.CreatedAt, exec.ID), exec); err != nil {
		return err
	}
	return s.putRecord(ctx, prefixOutput+exec.OutputSnapshotID, "", "", pointer{TargetID: exec.ID})
}

func (s *Store) GetExecution(ctx context.Context, id string) (*types.ExecutedPreprocess, error) {
	var exec types.ExecutedPreprocess
	ok, err := s.getRecord(ctx, executionPK(id), &exec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.NewError(types.KindNotFound, "execution %s not found", id)
	}
	return &exec, nil
}

func (s *Store) ListExecutions(ctx context.Context, preprocessID string) ([]types.ExecutedPreprocess, error) {
	blobs, err := s.queryGSI(ctx, preprocessPK(preprocessID))
	if err != nil {
		return nil, err
	}
	return decodeAll[types.ExecutedPreprocess](blobs)
}

func (s *Store) ExecutionByOutput(ctx context.Context, snapshotID string) (*types.ExecutedPreprocess, error) {
	var ptr pointer
	ok, err := s.getRecord(ctx, prefixOutput+snapshotID, &ptr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.NewError(types.KindNotFound, "no execution produced snapshot %s", snapshotID)
	}
	return s.GetExecution(ctx, ptr.TargetID)
}

func (s *Store) CreateTraining(ctx context.Context, tr types.Training) error {
	return s.putRecord(ctx, trainingPK(tr.ID),
		prefixType+"training", createdSK(prefixTraining, tr.CreatedAt, tr.ID), tr)
}

func (s *Store) GetTraining(ctx context.Context, id string) (*types.Training, error) {
	var tr types.Training
	ok, err := s.getRecord(ctx, trainingPK(id), &tr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.NewError(types.KindNotFound, "training %s not found", id)
	}
	return &tr, nil
}

func (s *Store) ListAutomatedTrainings(ctx context.Context) ([]types.Training, error) {
	blobs, err := s.queryGSI(ctx, prefixType+"training")
	if err != nil {
		return nil, err
	}
	all, err := decodeAll[types.Training](blobs)
	if err != nil {
		return nil, err
	}
	var out []types.Training
	for _, tr := range all {
		if tr.AutomationEnabled {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (s *Store) SetAutomation(ctx context.Context, trainingID string, enabled bool, schedule string) error {
	tr, err := s.GetTraining(ctx, trainingID)
	if err != nil {
		return err
	}
	tr.AutomationEnabled = enabled
	tr.AutomationSchedule = schedule
	return s.CreateTraining(ctx, *tr)
}

func (s *Store) CreateTrainingExecution(ctx context.Context, exec types.TrainingExecution) error {
	return s.putRecord(ctx, trainExecPK(exec.ID),
		trainingPK(exec.TrainingID), createdSK(prefixTrainExec, exec.StartedAt, exec.ID), exec)
}

func (s *Store) UpdateTrainingExecution(ctx context.Context, exec types.TrainingExecution) error {
	var existing types.TrainingExecution
	ok, err := s.getRecord(ctx, trainExecPK(exec.ID), &existing)
	if err != nil {
		return err
	}
	if !ok {
		return types.NewError(types.KindNotFound, "training execution %s not found", exec.ID)
	}
	return s.CreateTrainingExecution(ctx, exec)
}

func (s *Store) ListTrainingExecutions(ctx context.Context, trainingID string) ([]types.TrainingExecution, error) {
	blobs, err := s.queryGSI(ctx, trainingPK(trainingID))
	if err != nil {
		return nil, err
	}
	return decodeAll[types.TrainingExecution](blobs)
}
