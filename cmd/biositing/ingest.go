package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/uw-ssec/ca-biositing-sub000/internal/app"
)

func migrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables, indexes and views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// app.New migrates and ensures views on the way up.
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				a.Log.Info("Schema is up to date")
				return nil
			})
		},
	}
}

func ingestCmd(g *globalFlags) *cobra.Command {
	var (
		source      string
		concurrency int
		refresh     bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <uri>...",
		Short: "Load one or more JSONL batches (file, directory, gs:// or s3:// URIs)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				var errs []error
				for _, uri := range args {
					results, err := a.IngestAll(ctx, uri)
					if perr := printJSON(cmd, results); perr != nil {
						return perr
					}
					if err != nil {
						errs = append(errs, err)
					}
				}
				return errors.Join(errs...)
			}, func(cfg *app.Config) {
				if source != "" {
					cfg.Ingest.Source = source
				}
				if concurrency > 0 {
					cfg.Ingest.Concurrency = concurrency
				}
				if refresh {
					cfg.Views.RefreshAfterIngest = true
				}
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "dataset source code for every row in the pass")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "batch files loaded at once (default from config)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh all views after the load")
	return cmd
}
