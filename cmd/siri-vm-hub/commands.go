package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/siri-vm-hub/api"
	"github.com/theoremus-urban-solutions/siri-vm-hub/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the fan-out worker and the background loops",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(serve)
	},
}

func serve(ctx context.Context, a *app.App) error {
	cfg := a.Config
	handler, err := a.Router(ctx)
	if err != nil {
		return err
	}
	srv := api.NewServer(cfg.Server, handler)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Serve(ctx, srv, a.Logger) })
	g.Go(func() error { return a.Worker.Run(ctx) })
	g.Go(func() error {
		return a.Rearmer.Run(ctx, time.Duration(cfg.Fanout.RearmIntervalSeconds)*time.Second)
	})
	g.Go(func() error {
		return a.Producers.RunHeartbeatWatchdog(ctx, time.Duration(cfg.Producer.HeartbeatIntervalSecs)*time.Second)
	})
	if cfg.Feed.SnapshotIntervalSeconds > 0 {
		g.Go(func() error {
			return a.Feed.Run(ctx, time.Duration(cfg.Feed.SnapshotIntervalSeconds)*time.Second)
		})
	}
	return g.Wait()
}

var armCmd = &cobra.Command{
	Use:   "arm",
	Short: "Arm one minute of delivery ticks for every live consumer subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			n, err := a.Rearmer.ArmAll(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "armed %d subscriptions\n", n)
			return err
		})
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Publish the SIRI-VM and GTFS-RT feed snapshots once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return a.Feed.Publish(ctx)
		})
	},
}

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat-check",
	Short: "Count missed producer heartbeats and escalate silent subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			n, err := a.Producers.CheckHeartbeats(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "%d subscriptions moved to error\n", n)
			return err
		})
	},
}

var cleardownCmd = &cobra.Command{
	Use:   "cleardown",
	Short: "Delete vehicle activity records past their validity",
	RunE: func(cmd *cobra.Command, args []string) error {
		retain, _ := cmd.Flags().GetDuration("retain")
		return withApp(func(ctx context.Context, a *app.App) error {
			n, err := a.Cleardown(ctx, retain)
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records\n", n)
			return err
		})
	},
}

func init() {
	cleardownCmd.Flags().Duration("retain", 24*time.Hour, "Keep records whose ValidUntilTime is within this window")
}
