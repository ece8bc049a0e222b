package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-kiosk/internal/logger"
)

var (
	captureDir string
	tokenFlag  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "attendance-kiosk",
	Short: "Face recognition attendance kiosk",
	Long: `Attendance Kiosk captures a face from the configured camera and submits it
to the attendance backend, either to enroll a student's face or to mark
attendance by recognition. Run "serve" for the operator panel, or use the
one-shot commands from a terminal.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&captureDir, "capture", "", "Directory to save backend responses for debugging")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Backend bearer token (overrides BACKEND_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	opts := logger.FromEnv()
	if logLevel != "" {
		opts.Level = logLevel
	}
	logger.Init(opts)
}
