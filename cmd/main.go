package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/microbrsoil-backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "microbrsoil",
		Short:         "MicroBRSoil sequencing pipeline backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		runCmd("api", "Serve the HTTP API", true, false),
		runCmd("worker", "Run the pipeline job worker", false, true),
		runCmd("all", "Serve the HTTP API and run the worker in one process", true, true),
		migrateCmd(),
	)
	return root
}

func runCmd(use, short string, api, worker bool) *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, app.LoadConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			if !skipMigrate {
				if err := a.Migrate(); err != nil {
					return err
				}
			}

			g, gctx := errgroup.WithContext(ctx)
			if api {
				g.Go(func() error { return a.RunAPI(gctx) })
			}
			if worker {
				g.Go(func() error { return a.RunWorker(gctx) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run schema migrations at startup")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), app.LoadConfig())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Migrate(); err != nil {
				return err
			}
			a.Log.Info("Migrations applied")
			return nil
		},
	}
}
