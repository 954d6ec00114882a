package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"revolver/internal/storage"
	"revolver/internal/telemetry"
	"revolver/pkg/revolver"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(&cli{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// cli holds the global flags shared by every command.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	storeKind     string
	dbPath        string
	artifactsDir  string
	exportsDir    string
	logLevel      string
	quiet         bool
	metricsAddr   string
	traceExporter string
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "revolverctl",
		Short:         "Run, benchmark and inspect genetic algorithm runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.storeKind, "store", storage.DefaultStoreKind(), "store backend: memory|badger|sqlite")
	flags.StringVar(&c.dbPath, "db-path", "", "store path (defaults per backend)")
	flags.StringVar(&c.artifactsDir, "artifacts-dir", "runs", "directory receiving run artifacts")
	flags.StringVar(&c.exportsDir, "exports-dir", "exports", "default export directory")
	flags.StringVar(&c.logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	flags.BoolVar(&c.quiet, "quiet", false, "suppress progress output")
	flags.StringVar(&c.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	flags.StringVar(&c.traceExporter, "trace", telemetry.TraceExporterNone, "trace exporter: stdout (empty disables)")

	root.AddCommand(
		newRunCmd(c),
		newBenchmarkCmd(c),
		newRunsCmd(c),
		newShowCmd(c),
		newFitnessCmd(c),
		newDiagnosticsCmd(c),
		newPopulationCmd(c),
		newExportCmd(c),
		newExperimentsCmd(c),
		newProblemsCmd(c),
	)
	return root
}

func (c *cli) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.logLevel)
	}
	return slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level})), nil
}

// progress reports whether per-generation progress should be drawn on
// stderr.
func (c *cli) progress() bool {
	if c.quiet {
		return false
	}
	f, ok := c.stderr.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// withClient opens a client for the duration of fn. When a metrics address
// is set, a metrics server runs alongside fn and is shut down when fn
// returns.
func (c *cli) withClient(ctx context.Context, fn func(context.Context, *revolver.Client) error) error {
	logger, err := c.logger()
	if err != nil {
		return err
	}
	tracer, shutdownTracer, err := telemetry.NewTracer(c.traceExporter, c.stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("flush traces", "error", err)
		}
	}()

	var registry *prometheus.Registry
	if c.metricsAddr != "" {
		registry = prometheus.NewRegistry()
	}
	opts := revolver.Options{
		StoreKind:    c.storeKind,
		DBPath:       c.dbPath,
		ArtifactsDir: c.artifactsDir,
		ExportsDir:   c.exportsDir,
		Logger:       logger,
		Tracer:       tracer,
	}
	if registry != nil {
		opts.Registerer = registry
	}
	client, err := revolver.New(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("close client", "error", err)
		}
	}()

	if registry == nil {
		return fn(ctx, client)
	}
	return serveMetrics(ctx, c.metricsAddr, registry, logger, func(ctx context.Context) error {
		return fn(ctx, client)
	})
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *slog.Logger, fn func(context.Context) error) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("serving metrics", "addr", listener.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return fn(gctx)
	})
	return g.Wait()
}
