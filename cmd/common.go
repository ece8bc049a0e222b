package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/attendance-kiosk/internal/backend"
	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/database/mariadb"
	"github.com/kozaktomas/attendance-kiosk/internal/database/postgres"
	"github.com/kozaktomas/attendance-kiosk/internal/frame"
	"github.com/kozaktomas/attendance-kiosk/internal/logger"
	"github.com/kozaktomas/attendance-kiosk/internal/notify"
	"github.com/kozaktomas/attendance-kiosk/internal/roster"
)

// loadConfig reads the environment and applies persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if tokenFlag != "" {
		cfg.Backend.SetToken(tokenFlag)
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return cfg, nil
}

func newBackendClient(cfg *config.Config) (*backend.Client, error) {
	opts := []backend.Option{
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithDuplicateMarkers(cfg.Capture.DuplicateMarkers),
	}
	if captureDir != "" {
		opts = append(opts, backend.WithCaptureDir(captureDir))
	}
	client, err := backend.NewClient(cfg.Backend.URL, cfg.Backend.GetToken(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}
	return client, nil
}

func newCameraManager(cfg *config.Config) (*camera.Manager, error) {
	device, err := camera.NewDevice(cfg.Camera.Source, cfg.Camera.Device)
	if err != nil {
		return nil, err
	}
	return camera.NewManager(device), nil
}

// loadRoster fetches the branch roster. A failed fetch leaves an empty
// roster so capture still works; the enrolled pre-check is then skipped.
func loadRoster(ctx context.Context, client *backend.Client, branch string) *roster.Roster {
	ctx, cancel := context.WithTimeout(ctx, constants.RosterLoadTimeout)
	defer cancel()

	r, err := roster.Load(ctx, client, branch)
	if err != nil {
		logger.Named("roster").Warn().Err(err).Str("branch", branch).Msg("roster unavailable, enrolled pre-check disabled")
		return roster.New(branch, nil)
	}
	return r
}

// initJournal connects the SQL journal named by the DATABASE_URL scheme and
// returns whichever journal is active.
func initJournal(cfg *config.Config) (database.Journal, error) {
	switch cfg.Database.Driver() {
	case database.BackendPostgres:
		if err := postgres.Initialize(&cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
	case database.BackendMariaDB:
		if err := mariadb.Initialize(&cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
	}
	return database.GetJournal(), nil
}

func closeJournal() {
	log := logger.Named("database")
	if pool := postgres.GetGlobalPool(); pool != nil {
		if err := pool.Close(); err != nil {
			log.Warn().Err(err).Msg("closing pool")
		}
	}
	if pool := mariadb.GetGlobalPool(); pool != nil {
		if err := pool.Close(); err != nil {
			log.Warn().Err(err).Msg("closing pool")
		}
	}
}

type flowParts struct {
	Client   capture.Submitter
	Camera   capture.Acquirer
	Roster   capture.Roster
	Notifier notify.Notifier
	Stats    capture.StatsTrigger

	Observers []capture.Observer
}

func newFlow(cfg *config.Config, parts flowParts) (*capture.Flow, error) {
	deps := capture.Dependencies{
		Camera:   parts.Camera,
		Sampler:  frame.NewSampler(cfg.Capture.FrameWidth, cfg.Capture.FrameHeight),
		Client:   parts.Client,
		Roster:   parts.Roster,
		Notifier: parts.Notifier,
		Stats:    parts.Stats,
		Constraints: camera.Constraints{
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			Facing: camera.Facing(cfg.Camera.Facing),
		},
		Quality:   cfg.Capture.JPEGQuality,
		Machine:   capture.NewMachine(cfg.Capture.SettleDelay, cfg.Capture.NoMatchReset),
		Observers: parts.Observers,
	}
	return capture.NewFlow(deps)
}

// runOnce starts req on flow and waits for the attempt to settle. A
// duplicate warning is printed and dismissed.
func runOnce(ctx context.Context, flow *capture.Flow, req capture.Request) (capture.Snapshot, error) {
	if err := flow.Start(req); err != nil {
		return capture.Snapshot{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.CaptureTimeout)
	defer cancel()

	snap, err := flow.WaitSettled(ctx)
	if err != nil {
		flow.Cancel()
		return snap, fmt.Errorf("waiting for capture: %w", err)
	}
	printView(capture.Present(snap))
	if snap.AwaitingAck {
		if err := flow.Dismiss(); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

func printView(v capture.View) {
	if v.Notice != nil {
		fmt.Printf("!! %s\n   %s\n", v.Notice.Title, v.Notice.Message)
		return
	}
	fmt.Println(v.Title)
	if v.Student != "" {
		fmt.Printf("  Student:    %s\n", v.Student)
	}
	if v.Admission != "" {
		fmt.Printf("  Admission:  %s\n", v.Admission)
	}
	if v.Confidence != "" {
		fmt.Printf("  Confidence: %s\n", v.Confidence)
	}
	if v.Message != "" {
		fmt.Printf("  %s\n", v.Message)
	}
	if v.Ambiguous {
		fmt.Println("  (the server gave no reason; the face may simply not be registered)")
	}
}

// outcomeError turns a finished snapshot into the command's exit status.
func outcomeError(s capture.Snapshot) error {
	switch s.State {
	case capture.StateSuccess:
		return nil
	case capture.StateNoMatch:
		return errors.New("no matching face")
	}
	if s.Failure != nil {
		return fmt.Errorf("%s: %s", s.Failure.Kind, s.Failure.Message)
	}
	return fmt.Errorf("capture ended in state %s", s.State)
}
