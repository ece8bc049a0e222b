package cmd

import (
	"context"

	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/notify"
)

// captureOnce runs one enrollment or recognition from the terminal and
// journals the outcome.
func captureOnce(req capture.Request) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
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
	defer cameras.ReleaseAll() //nolint:errcheck

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

	parts := flowParts{
		Client:    client,
		Camera:    cameras,
		Notifier:  notify.NewBoard(),
		Observers: []capture.Observer{recorder.Observe},
	}
	if req.Mode == capture.ModeEnroll {
		parts.Roster = loadRoster(ctx, client, cfg.Backend.Branch)
	}
	flow, err := newFlow(cfg, parts)
	if err != nil {
		return err
	}

	snap, err := runOnce(ctx, flow, req)
	flow.Close()
	cancel()
	<-recorderDone
	if err != nil {
		return err
	}
	return outcomeError(snap)
}
