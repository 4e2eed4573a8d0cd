package dynamodb

import "time"

// PK/SK prefix constants.
const (
	prefixDataSource = "DS#"
	prefixSnapshot   = "SNAP#"
	prefixPreprocess = "PP#"
	prefixExecution  = "EXEC#"
	prefixTraining   = "TR#"
	prefixTrainExec  = "TEXEC#"
	prefixType       = "TYPE#"
	prefixChild      = "CHILD#"
	prefixOutput     = "OUT#"

	skRecord = "RECORD"

	gsiName = "GSI1"
)

func dataSourcePK(id string) string { return prefixDataSource + id }
func snapshotPK(id string) string   { return prefixSnapshot + id }
func preprocessPK(id string) string { return prefixPreprocess + id }
func executionPK(id string) string  { return prefixExecution + id }
func trainingPK(id string) string   { return prefixTraining + id }
func trainExecPK(id string) string  { return prefixTrainExec + id }

// createdSK orders type listings and per-parent listings by creation time,
// with the id as a tiebreak.
func createdSK(prefix string, at time.Time, id string) string {
	return prefix + at.UTC().Format(time.RFC3339Nano) + "#" + id
}
