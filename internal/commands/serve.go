package commands

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/strata-systems/strata/internal/schedule"
)

// NewServeCmd creates the serve command, running the automation scheduler
// until interrupted.
func NewServeCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the training automation scheduler",
		Long: `Loads every training with automation enabled and fires each on its own
schedule until interrupted. With --metrics-addr, runtime counters are
served as expvar JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve /debug/vars on (disabled when empty)")
	return cmd
}

func runServe(metricsAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, _, closer, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	sched := schedule.New(svc, nil, nil)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop(context.Background())

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/debug/vars", expvar.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				color.Red("metrics server: %v", err)
			}
		}()
		defer func() { _ = srv.Shutdown(context.Background()) }()
		color.Green("  ✓ Metrics on http://%s/debug/vars", metricsAddr)
	}

	color.Green("  ✓ Scheduler running (%d jobs), Ctrl-C to stop", len(sched.Jobs()))
	<-ctx.Done()
	fmt.Println("shutting down")
	return nil
}
