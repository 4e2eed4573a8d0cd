package transform

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sony/gobreaker"

	"github.com/strata-systems/strata/internal/table"
	"github.com/strata-systems/strata/pkg/types"
)

// CustomRunner executes user-supplied step code in a sandbox. Failures,
// including time and memory limit kills, surface as TransformError.
type CustomRunner interface {
	RunStep(ctx context.Context, code string, t *table.Table, params map[string]string) (*table.Table, error)
	RunJoin(ctx context.Context, code string, left, right *table.Table, params map[string]string) (*table.Table, error)
}

// SubprocessRunner runs user code through an external sandbox executor.
// The code blob and input tables are written to a scratch directory, the
// executor is invoked with their paths, params JSON arrives on stdin, and
// the transformed table is read back as CSV from stdout.
type SubprocessRunner struct {
	// Command is the executor argv prefix, e.g. {"strata-sandbox"}. The code
	// path and input table paths are appended.
	Command []string
	Timeout time.Duration
}

// NewSubprocessRunner creates a runner with a 5 second wall-clock limit.
func NewSubprocessRunner(command []string) *SubprocessRunner {
	return &SubprocessRunner{Command: command, Timeout: 5 * time.Second}
}

// RunStep executes a unary custom step.
func (r *SubprocessRunner) RunStep(ctx context.Context, code string, t *table.Table, params map[string]string) (*table.Table, error) {
	return r.run(ctx, code, params, t)
}

// RunJoin executes a custom join over two tables.
func (r *SubprocessRunner) RunJoin(ctx context.Context, code string, left, right *table.Table, params map[string]string) (*table.Table, error) {
	return r.run(ctx, code, params, left, right)
}

func (r *SubprocessRunner) run(ctx context.Context, code string, params map[string]string, tables ...*table.Table) (*table.Table, error) {
	if len(r.Command) == 0 {
		return nil, types.NewError(types.KindTransformError, "no sandbox executor configured")
	}
	dir, err := os.MkdirTemp("", "strata-custom-")
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "creating sandbox scratch dir")
	}
	defer os.RemoveAll(dir)

	codePath := filepath.Join(dir, "step.code")
	if err := os.WriteFile(codePath, []byte(code), 0o600); err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "writing step code")
	}
	args := append(append([]string(nil), r.Command[1:]...), codePath)
	for i, t := range tables {
		data, err := t.EncodeCSV()
		if err != nil {
			return nil, err
		}
		p := filepath.Join(dir, fmt.Sprintf("input-%d.csv", i))
		if err := os.WriteFile(p, data, 0o600); err != nil {
			return nil, types.WrapError(types.KindStorageError, err, "writing sandbox input")
		}
		args = append(args, p)
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, types.WrapError(types.KindInvalidInput, err, "encoding step params")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	cmd.Stdin = bytes.NewReader(paramsJSON)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, types.NewError(types.KindTransformError, "custom step time limit exceeded")
		}
		return nil, types.WrapError(types.KindTransformError, err,
			"custom step failed (stderr: %s)", stderr.String())
	}

	out, err := table.FromBytes(stdout.Bytes())
	if err != nil {
		return nil, types.WrapError(types.KindTransformError, err, "decoding custom step output")
	}
	return out, nil
}

// CodeHash fingerprints a code blob for the execution detail list.
func CodeHash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:8])
}

// BreakerRunner wraps a CustomRunner with a circuit breaker so a
// persistently crashing sandbox fails fast instead of burning its full
// timeout on every execution.
type BreakerRunner struct {
	inner CustomRunner
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerRunner wraps inner with default breaker settings: trip after 5
// consecutive failures, half-open after 30 seconds.
func NewBreakerRunner(inner CustomRunner) *BreakerRunner {
	return &BreakerRunner{
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "custom-runner",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (b *BreakerRunner) RunStep(ctx context.Context, code string, t *table.Table, params map[string]string) (*table.Table, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.inner.RunStep(ctx, code, t, params)
	})
	if err != nil {
		return nil, breakerErr(err)
	}
	return out.(*table.Table), nil
}

func (b *BreakerRunner) RunJoin(ctx context.Context, code string, left, right *table.Table, params map[string]string) (*table.Table, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.inner.RunJoin(ctx, code, left, right, params)
	})
	if err != nil {
		return nil, breakerErr(err)
	}
	return out.(*table.Table), nil
}

func breakerErr(err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return types.WrapError(types.KindTransformError, err, "sandbox circuit open")
	}
	return err
}
