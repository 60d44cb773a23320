package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/themobileprof/moaflow/internal/parser"
	"github.com/themobileprof/moaflow/internal/router"
	"github.com/themobileprof/moaflow/internal/usecases"
	"github.com/themobileprof/moaflow/pkg/models"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a use case file and show the role of each top level statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := usecases.NewLoader(nil).LoadFromFile(args[0])
			if err != nil {
				return err
			}
			if err := def.Validate(); err != nil {
				return err
			}

			name, _ := def.Name()
			stmts, _ := def.Statements()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d statements, %d service parameters\n", name, len(stmts), len(def.InitialParams()))
			for i, raw := range stmts {
				role := models.StatementInert
				if s, ok := models.AsMap(raw); ok {
					role = parser.Role(s, name)
				}
				fmt.Fprintf(out, "  %d. %s\n", i+1, role)
			}
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [dir|file]",
		Short: "Import use cases into the catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := a.cfg.UseCaseDir
			if len(args) == 1 {
				target = args[0]
			}

			database, loader, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer database.Close()

			info, err := os.Stat(target)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", target, err)
			}

			if !info.IsDir() {
				def, err := loader.LoadFromFile(target)
				if err != nil {
					return err
				}
				name := usecases.NameFromPath(target)
				if err := loader.Import(name, target, def); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", name)
				return nil
			}

			names, err := loader.LoadDir(cmd.Context(), target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d use cases from %s\n", len(names), target)
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List imported use cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, loader, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer database.Close()

			records, err := loader.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No use cases imported")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKEY\tSOURCE\tUPDATED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Key, r.Source, r.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Keep the catalog in sync with a use case directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.UseCaseDir
			if len(args) == 1 {
				dir = args[0]
			}

			database, loader, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer database.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := loader.LoadDir(ctx, dir); err != nil {
				a.logger.Warn("Initial import failed", zap.Error(err))
			}

			out := cmd.OutOrStdout()
			return loader.Watch(ctx, dir, debounce, func(c usecases.Change) {
				switch {
				case c.Err != nil:
					fmt.Fprintf(out, "%s: %v\n", c.Name, c.Err)
				case c.Removed:
					fmt.Fprintf(out, "Removed %s\n", c.Name)
				default:
					fmt.Fprintf(out, "Reloaded %s\n", c.Name)
				}
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", usecases.DefaultDebounce, "Quiet period before a changed file is re-imported")
	return cmd
}

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent runs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer database.Close()

			runs, err := database.RecentRuns(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tUSE CASE\tSTATUS\tDURATION\tERROR")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n", r.RunID, r.UseCase, r.Status, r.DurationMs, r.ErrorMessage)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}

func newModulesCmd(a *app) *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the module routes declared in the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := firstNonEmpty(manifestPath, a.cfg.ModulesManifest)
			if path == "" {
				return fmt.Errorf("no module manifest: pass --modules or set modules_manifest")
			}
			manifest, err := router.LoadManifest(path)
			if err != nil {
				return err
			}

			r := router.New(router.WithLogger(a.logger))
			if err := r.Register(router.StaticModules(manifest)...); err != nil {
				return err
			}

			scheme := firstNonEmpty(manifest.Scheme, a.cfg.Scheme)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROUTE\tPATHS")
			for _, m := range r.Modules() {
				fmt.Fprintf(w, "%s://%s\t%s\n", scheme, m.Route(), strings.Join(m.Paths(), ","))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&manifestPath, "modules", "", "Module manifest (defaults to modules_manifest)")
	return cmd
}
