package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/hvac-controller/internal/logging"
	"github.com/thatsimonsguy/hvac-controller/internal/status"
)

func newRunCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the controller daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "use the no-op platform gateway instead of connecting to Home Assistant")
	return cmd
}

func runDaemon(dryRun bool) error {
	parts, err := buildComponents(dryRun)
	if err != nil {
		return err
	}

	if err := logging.Init(logging.ParseLevel(parts.cfg.App.LogLevel), parts.cfg.App.LogFile); err != nil {
		return err
	}

	log.Info().
		Str("temp_sensor", parts.cfg.HVAC.TempSensor).
		Str("outdoor_sensor", parts.cfg.HVAC.OutdoorSensor).
		Str("system_mode", string(parts.cfg.HVAC.SystemMode)).
		Bool("dry_run", dryRun).
		Msg("starting HVAC controller")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := parts.loop.Start(ctx); err != nil {
		return err
	}

	statusSrv := status.NewServer(parts.machine, parts.gw, parts.loop)
	go func() {
		if err := statusSrv.Start(parts.cfg.App.StatusPort); err != nil {
			log.Error().Err(err).Msg("status server exited")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutdown signal received — exiting")
	for _, shutdownErr := range parts.loop.Shutdown() {
		log.Error().Err(shutdownErr).Msg("error during shutdown")
	}
	return nil
}
