// Package commands implements the CLI subcommands for the strata binary.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/strata-systems/strata/internal/blob"
	"github.com/strata-systems/strata/internal/config"
	"github.com/strata-systems/strata/internal/engine"
	"github.com/strata-systems/strata/internal/graph"
	"github.com/strata-systems/strata/internal/lineage"
	"github.com/strata-systems/strata/internal/lock"
	"github.com/strata-systems/strata/internal/materialize"
	"github.com/strata-systems/strata/internal/service"
	"github.com/strata-systems/strata/internal/snapshot"
	"github.com/strata-systems/strata/internal/store"
	ddbstore "github.com/strata-systems/strata/internal/store/dynamodb"
	"github.com/strata-systems/strata/internal/store/memory"
	"github.com/strata-systems/strata/internal/store/postgres"
	"github.com/strata-systems/strata/internal/transform"
)

const connectTimeout = 10 * time.Second

// newStore creates the configured metadata store.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.New(ctx, cfg.Postgres.DSN)
	case "dynamodb":
		return ddbstore.New(ctx, cfg.DynamoDB)
	default:
		return nil, fmt.Errorf("unsupported store: %s", cfg.Store)
	}
}

// newBlob creates the configured snapshot content backend.
func newBlob(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.Blob {
	case "fs":
		return blob.NewFS(cfg.FS.BasePath), nil
	case "s3":
		return blob.NewS3(ctx, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.Region)
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", cfg.Blob)
	}
}

// newLock creates the configured active-pointer lock manager.
func newLock(cfg *config.Config) lock.Manager {
	if cfg.Lock == "redis" {
		return lock.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	return lock.NewKeyedMutex()
}

// newService wires a full Service from strata.yaml in the current
// directory. The returned closer stops the store.
func newService(ctx context.Context) (*service.Service, store.Store, func(), error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	st, err := newStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating store: %w", err)
	}
	if err := st.Start(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to store: %w", err)
	}

	blobs, err := newBlob(ctx, cfg)
	if err != nil {
		_ = st.Stop(ctx)
		return nil, nil, nil, fmt.Errorf("creating blob backend: %w", err)
	}

	var runner transform.CustomRunner
	sub := transform.NewSubprocessRunner(cfg.Custom.Command)
	if cfg.Custom.TimeoutSeconds > 0 {
		sub.Timeout = time.Duration(cfg.Custom.TimeoutSeconds) * time.Second
	}
	runner = transform.NewBreakerRunner(sub)

	snaps := snapshot.NewManager(st, blobs, newLock(cfg), nil)
	g := graph.New(st)
	reg := transform.NewRegistry()
	eng := engine.New(st, snaps, reg, runner, nil)
	mat := materialize.New(st, g, eng, nil)
	tracer := lineage.New(st, g)
	svc := service.New(st, snaps, g, eng, mat, tracer, reg, nil, nil)

	closer := func() { _ = st.Stop(context.Background()) }
	return svc, st, closer, nil
}
