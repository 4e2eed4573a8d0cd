// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	ExecutionsTotal      = expvar.NewInt("executions_total")
	ExecutionErrors      = expvar.NewInt("execution_errors")
	SnapshotsCreated     = expvar.NewInt("snapshots_created")
	SnapshotCopies       = expvar.NewInt("snapshot_copies_on_write")
	Materializations     = expvar.NewInt("materializations_total")
	MaterializeCacheHits = expvar.NewInt("materialize_cache_hits")
	AutomationRuns       = expvar.NewInt("automation_runs_total")
	AutomationFailures   = expvar.NewInt("automation_failures")
	CustomStepsRun       = expvar.NewInt("custom_steps_run")
)
