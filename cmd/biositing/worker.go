package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/uw-ssec/ca-biositing-sub000/internal/app"
	"github.com/uw-ssec/ca-biositing-sub000/internal/temporalx/ingestwf"
	"github.com/uw-ssec/ca-biositing-sub000/internal/temporalx/temporalworker"
)

func serveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ops HTTP server (health, metrics, view admin, record lookup)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				a.Log.Info("Ops server listening", "addr", a.Cfg.Ops.Addr)
				return a.OpsServer().Run(ctx, a.Cfg.Ops.Addr)
			})
		},
	}
}

func workerCmd(g *globalFlags) *cobra.Command {
	var noOps bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the Temporal ingest worker alongside the ops server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				tc, err := a.Temporal(ctx)
				if err != nil {
					return err
				}
				runner, err := temporalworker.NewRunner(a.Log, tc, a.Cfg.Temporal, a.Activities())
				if err != nil {
					return err
				}
				if err := runner.Start(ctx); err != nil {
					return fmt.Errorf("start worker: %w", err)
				}
				grp, gctx := errgroup.WithContext(ctx)
				if !noOps {
					grp.Go(func() error { return a.OpsServer().Run(gctx, a.Cfg.Ops.Addr) })
				}
				grp.Go(func() error {
					<-gctx.Done()
					return nil
				})
				return grp.Wait()
			})
		},
	}
	cmd.Flags().BoolVar(&noOps, "no-ops", false, "do not start the ops HTTP server")
	return cmd
}

func enqueueCmd(g *globalFlags) *cobra.Command {
	var (
		refresh  bool
		viewsArg []string
		wait     bool
	)
	cmd := &cobra.Command{
		Use:   "enqueue [uri]...",
		Short: "Start ingest workflows for batch URIs, or a view refresh when no URI is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				tc, err := a.Temporal(ctx)
				if err != nil {
					return err
				}
				queue := a.Cfg.Temporal.Defaults().TaskQueue
				attempts := a.Cfg.Temporal.Defaults().ActivityAttempts

				if len(args) == 0 {
					run, err := ingestwf.StartRefresh(ctx, tc, queue, ingestwf.RefreshInput{Views: viewsArg, Attempts: attempts})
					if err != nil {
						return err
					}
					a.Log.Info("Enqueued view refresh", "workflow_id", run.GetID(), "run_id", run.GetRunID())
					if !wait {
						return nil
					}
					var out interface{}
					if err := run.Get(ctx, &out); err != nil {
						return err
					}
					return printJSON(cmd, out)
				}

				for _, pattern := range args {
					uris, err := a.Opener.List(ctx, pattern)
					if err != nil {
						return err
					}
					for _, uri := range uris {
						run, err := ingestwf.StartIngest(ctx, tc, queue, ingestwf.IngestInput{URI: uri, RefreshViews: refresh, Attempts: attempts})
						if err != nil {
							return fmt.Errorf("enqueue %s: %w", uri, err)
						}
						a.Log.Info("Enqueued ingest", "uri", uri, "workflow_id", run.GetID(), "run_id", run.GetRunID())
						if wait {
							var out ingestwf.IngestOutput
							if err := run.Get(ctx, &out); err != nil {
								return fmt.Errorf("ingest %s: %w", uri, err)
							}
							if err := printJSON(cmd, out); err != nil {
								return err
							}
						}
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh all views after each load")
	cmd.Flags().StringSliceVar(&viewsArg, "view", nil, "views for a refresh-only run (no URIs), in order")
	cmd.Flags().BoolVar(&wait, "wait", false, "block until each workflow completes and print its result")
	return cmd
}
