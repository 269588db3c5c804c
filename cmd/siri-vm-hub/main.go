package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theoremus-urban-solutions/siri-vm-hub/app"
	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
	"github.com/theoremus-urban-solutions/siri-vm-hub/internal"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "siri-vm-hub",
	Short:         "SIRI-VM vehicle position hub",
	Long:          "Subscribes to SIRI-VM producers, stores and matches vehicle activity, and serves it as a feed and to consumer callbacks.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default config.yml)")
	rootCmd.AddCommand(serveCmd, armCmd, snapshotCmd, heartbeatCmd, cleardownCmd)
}

// withApp loads configuration, opens the backends and runs fn with a
// context cancelled on SIGINT or SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadAppConfig(configFile)
	if err != nil {
		return err
	}
	logger := internal.InitLogging(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
