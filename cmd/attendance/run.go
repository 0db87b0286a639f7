package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"attendance/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start capture, recognition and the live viewer server",
	RunE:  runAttendance,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAttendance(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	log.Info("📷 Starting attendance for %d camera(s)", len(cfg.Cameras))
	return application.Run(ctx)
}
