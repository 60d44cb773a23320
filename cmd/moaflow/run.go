package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/themobileprof/moaflow/internal/engine"
	"github.com/themobileprof/moaflow/internal/interfaces"
	"github.com/themobileprof/moaflow/internal/journey"
	"github.com/themobileprof/moaflow/internal/metrics"
	"github.com/themobileprof/moaflow/internal/router"
	"github.com/themobileprof/moaflow/internal/usecases"
	"github.com/themobileprof/moaflow/pkg/models"
)

type runOptions struct {
	modules     string
	dir         string
	scheme      string
	trace       string
	metricsAddr string
	timeout     time.Duration
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <use-case>",
		Short: "Run a use case and print its final service parameters",
		Long: `Runs a use case given as a file path, as a name in the use case
directory, or as the name of an imported use case. Modules are the
scripted modules declared in the manifest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUseCase(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.modules, "modules", "", "Module manifest (defaults to modules_manifest)")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "Use case directory (defaults to use_case_dir)")
	cmd.Flags().StringVar(&opts.scheme, "scheme", "", "URL scheme for module opens")
	cmd.Flags().StringVar(&opts.trace, "trace", "", "Append the run trace to this JSONL file")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Give up waiting for modules after this long (0 waits forever)")
	return cmd
}

func (a *app) runUseCase(cmd *cobra.Command, target string, opts *runOptions) error {
	database, loader, err := a.openCatalog()
	if err != nil {
		return err
	}
	defer database.Close()

	dir := firstNonEmpty(opts.dir, a.cfg.UseCaseDir)
	def, err := resolveUseCase(loader, dir, target)
	if err != nil {
		return err
	}

	manifestPath := firstNonEmpty(opts.modules, a.cfg.ModulesManifest)
	if manifestPath == "" {
		return fmt.Errorf("no module manifest: pass --modules or set modules_manifest")
	}
	manifest, err := router.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	r := router.New(
		router.WithLogger(a.logger),
		router.WithFatalHandler(func(err error) {
			a.logger.Fatal("Unroutable module url", zap.Error(err))
		}),
	)
	if err := r.Register(router.StaticModules(manifest)...); err != nil {
		return err
	}

	if addr := firstNonEmpty(opts.metricsAddr, a.cfg.MetricsAddr); addr != "" {
		stop, err := serveMetrics(addr, a.logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	engineOpts := []engine.Option{
		engine.WithScheme(firstNonEmpty(opts.scheme, manifest.Scheme, a.cfg.Scheme)),
		engine.WithLogger(a.logger),
		engine.WithJournal(database),
		engine.WithMaxRecursion(a.cfg.MaxRecursion),
	}
	if tracePath := firstNonEmpty(opts.trace, a.cfg.TracePath); tracePath != "" {
		engineOpts = append(engineOpts, engine.WithTrace(journey.NewLogger(tracePath)))
	}

	e, err := engine.New(def, r, engineOpts...)
	if err != nil {
		return err
	}
	if err := e.Run(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	runErr := e.WaitContext(ctx)
	if errors.Is(runErr, context.DeadlineExceeded) {
		runErr = fmt.Errorf("use case did not finish within %s: %w", opts.timeout, runErr)
	} else {
		r.Wait()
	}

	if err := printJSON(cmd, map[string]any{
		"run_id": e.RunID(),
		"params": e.Params(),
	}); err != nil {
		return err
	}
	return runErr
}

// resolveUseCase treats target as a file, then a name in dir, then an
// imported use case
func resolveUseCase(store interfaces.UseCaseStore, dir, target string) (models.Definition, error) {
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		return store.LoadFromFile(target)
	}

	if dir != "" {
		def, err := usecases.LoadNamed(dir, target)
		if err == nil {
			return def, nil
		}
		if !errors.Is(err, usecases.ErrNotFound) {
			return nil, err
		}
	}
	return store.Get(target)
}

func serveMetrics(addr string, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("Serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
