package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/logger"
	"github.com/kozaktomas/attendance-kiosk/internal/notify"
	"github.com/kozaktomas/attendance-kiosk/internal/stats"
	"github.com/kozaktomas/attendance-kiosk/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the operator panel",
	Long: `Start the kiosk web server.
The operator panel drives one capture flow: enroll a student's face or mark
attendance by recognition, with live status and the attendance counters.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	log := logger.Named("serve")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}
	cameras, err := newCameraManager(cfg)
	if err != nil {
		return err
	}

	journal, err := initJournal(cfg)
	if err != nil {
		return err
	}
	defer closeJournal()
	recorder := database.NewRecorder(journal)
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		recorder.Run(ctx)
	}()

	refresher := stats.NewRefresher(client, cfg.Stats.Interval)
	go func() {
		if err := refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("stats refresher stopped")
		}
	}()

	students := loadRoster(ctx, client, cfg.Backend.Branch)
	log.Info().Str("branch", students.Branch()).Int("students", len(students.Entries())).
		Int("pending", len(students.Pending())).Msg("roster loaded")
	go func() {
		err := students.Watch(ctx, client, constants.RosterRefreshInterval, func(err error) {
			log.Warn().Err(err).Msg("roster reload failed, keeping previous entries")
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("roster watcher stopped")
		}
	}()

	board := notify.NewBoard()
	flow, err := newFlow(cfg, flowParts{
		Client:    client,
		Camera:    cameras,
		Roster:    students,
		Notifier:  board,
		Stats:     refresher,
		Observers: []capture.Observer{recorder.Observe},
	})
	if err != nil {
		return err
	}

	server := web.NewServer(cfg, web.Dependencies{
		Flow:      flow,
		Stats:     refresher,
		Directory: client,
		Journal:   journal,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
		}
	}()

	fmt.Printf("Starting Attendance Kiosk on http://%s:%d (branch %s, camera %s)\n",
		cfg.Web.Host, cfg.Web.Port, cfg.Backend.Branch, cfg.Camera.Source)
	fmt.Println("Press Ctrl+C to stop")

	serveErr := server.Start()

	flow.Close()
	if err := cameras.ReleaseAll(); err != nil {
		log.Warn().Err(err).Msg("releasing camera")
	}
	cancel()
	<-recorderDone

	return serveErr
}
