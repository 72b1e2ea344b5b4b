package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uw-ssec/ca-biositing-sub000/internal/app"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/views"
)

func refreshCmd(g *globalFlags) *cobra.Command {
	var (
		names   []string
		rebuild bool
		list    bool
	)
	cmd := &cobra.Command{
		Use:   "refresh-views",
		Short: "Refresh canonical views in dependency order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				if list {
					state, err := a.Refresher.State(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd, state)
				}
				if rebuild {
					if err := a.Refresher.Rebuild(ctx); err != nil {
						return err
					}
				}
				var (
					res []views.RefreshResult
					err error
				)
				if len(names) > 0 {
					res, err = a.Refresher.RefreshOrder(ctx, names)
				} else {
					res, err = a.Refresher.RefreshAll(ctx)
				}
				if perr := printJSON(cmd, res); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().StringSliceVar(&names, "view", nil, "views to refresh, in this order (repeatable)")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "drop and recreate every view first")
	cmd.Flags().BoolVar(&list, "state", false, "print refresh state instead of refreshing")
	return cmd
}

func latestCmd(g *globalFlags) *cobra.Command {
	var (
		typ       string
		geography string
		commodity int64
	)
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent census or survey record for a geography and commodity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := types.ParseParentType(typ)
			if err != nil {
				return err
			}
			if geography == "" {
				return fmt.Errorf("--geography is required")
			}
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				h, err := a.Repos.Parents.Latest(dbctx.New(ctx), t, geography, commodity)
				if err != nil {
					return fmt.Errorf("latest %s for %s/%d: %w", t, geography, commodity, err)
				}
				return printJSON(cmd, h)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(types.ParentCensus), "parent type, CENSUS or SURVEY")
	cmd.Flags().StringVar(&geography, "geography", "", "geography id")
	cmd.Flags().Int64Var(&commodity, "commodity", 0, "commodity code")
	return cmd
}

func watchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch-views",
		Short: "Print view refresh events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				return a.WatchViews(ctx, func(payload []byte) {
					fmt.Fprintln(out, string(payload))
				})
			})
		},
	}
}
