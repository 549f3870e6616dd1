package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloudsamples/internal/apperrors"
	"cloudsamples/internal/config"
	"cloudsamples/internal/observability"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

// app carries state shared by every sample command.
type app struct {
	clients clientFactory
	level   *slog.LevelVar

	configPath  string
	verbose     bool
	metricsPort string

	cfg            *config.SamplesConfig
	metrics        *observability.Metrics
	metricsHandler http.Handler
}

func newRootCmd(clients clientFactory, level *slog.LevelVar) *cobra.Command {
	a := &app{clients: clients, level: level}

	cmd := &cobra.Command{
		Use:           "cloud-samples",
		Short:         "Run Google Cloud DLP, KMS and Video Stitcher samples",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&a.metricsPort, "metrics-port", "", "serve Prometheus metrics on this port while the sample runs")

	cmd.AddCommand(
		dlpCmd(a),
		kmsCmd(a),
		stitcherCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadSamplesConfig(a.configPath)
	if err != nil {
		return apperrors.Validation("config", err.Error())
	}
	if (a.verbose || cfg.Verbose) && a.level != nil {
		a.level.Set(slog.LevelDebug)
	}
	if cmd.Flags().Changed("metrics-port") {
		cfg.MetricsPort = a.metricsPort
	}
	a.cfg = cfg

	a.metrics, a.metricsHandler, err = observability.NewMetrics(cmd.Context())
	if err != nil {
		return apperrors.Internal("metrics.init", err)
	}
	return nil
}

// clientOptions returns the dial options derived from configuration.
func (a *app) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if a.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.cfg.Endpoint))
	}
	if a.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(a.cfg.CredentialsFile))
	}
	return opts
}

// run executes fn, serving metrics alongside it when a metrics port is
// configured. The metrics server stops when fn returns.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context) error) error {
	// Arguments are valid by now; remaining failures are not usage errors.
	cmd.SilenceUsage = true

	ctx := cmd.Context()
	if a.cfg.MetricsPort == "" {
		return fn(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.metricsHandler)
	server := &http.Server{
		Addr:         ":" + a.cfg.MetricsPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting metrics server", "port", a.cfg.MetricsPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return apperrors.Internal("metrics.serve", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("Metrics server shutdown error", "error", err)
			}
		}()
		return fn(gctx)
	})
	return g.Wait()
}

// exactArgs reports a wrong argument count as a validation error.
func exactArgs(n int) cobra.PositionalArgs {
	return validArgs(cobra.ExactArgs(n))
}

func rangeArgs(lo, hi int) cobra.PositionalArgs {
	return validArgs(cobra.RangeArgs(lo, hi))
}

func minimumArgs(n int) cobra.PositionalArgs {
	return validArgs(cobra.MinimumNArgs(n))
}

func validArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return apperrors.Validation("args", err.Error())
		}
		return nil
	}
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// closeClient logs close errors; the sample result has already been produced.
func closeClient(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("Closing client failed", "client", name, "error", err)
	}
}

func dialError(name string, err error) error {
	return apperrors.Internal(fmt.Sprintf("%s.dial", name), err)
}
