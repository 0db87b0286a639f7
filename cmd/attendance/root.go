package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"attendance/internal/config"
	"attendance/internal/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Camera based attendance tracking",
	Long: `Attendance watches one or more cameras, recognizes registered faces and
marks each person present at most once per day. Unknown faces are recorded as
unauthorized access and reported to the administrator.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file before .env")
}

func initConfig() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", envFile, err)
		}
	}
}

// loadConfig reads and validates the configuration and builds the logger.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewLogger(cfg), nil
}
