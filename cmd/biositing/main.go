package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uw-ssec/ca-biositing-sub000/internal/app"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

var version = "dev"

type globalFlags struct {
	configPath string
	logMode    string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "biositing",
		Short:         "Load observation batches and maintain the canonical analysis views",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", os.Getenv("BIOSITING_CONFIG"), "YAML config file")
	cmd.PersistentFlags().StringVar(&g.logMode, "log-mode", "", "development or production (overrides LOG_MODE)")

	cmd.AddCommand(
		migrateCmd(g),
		ingestCmd(g),
		refreshCmd(g),
		watchCmd(g),
		latestCmd(g),
		serveCmd(g),
		workerCmd(g),
		enqueueCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "biositing %s\n", version)
			},
		},
	)
	return cmd
}

// withApp builds the application, runs fn under a context cancelled by
// SIGINT or SIGTERM, and closes everything afterwards. mods adjust the
// loaded config before any component is built.
func withApp(cmd *cobra.Command, g *globalFlags, fn func(ctx context.Context, a *app.App) error, mods ...func(*app.Config)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLog, err := logger.New(modeOr(g.logMode, os.Getenv("LOG_MODE")))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cfg, err := app.LoadConfig(g.configPath, bootLog)
	if err != nil {
		return err
	}
	log := bootLog
	if mode := modeOr(g.logMode, cfg.LogMode); mode != modeOr(g.logMode, os.Getenv("LOG_MODE")) {
		if log, err = logger.New(mode); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}
	cfg.Otel.Version = version
	for _, mod := range mods {
		mod(&cfg)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func modeOr(v, def string) string {
	if v != "" {
		return v
	}
	if def != "" {
		return def
	}
	return "development"
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
