package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-kiosk/internal/backend"
	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/notify"
	"github.com/kozaktomas/attendance-kiosk/internal/roster"
)

var batchEnrollCmd = &cobra.Command{
	Use:   "batch-enroll <directory>",
	Short: "Enroll faces from a directory of photos",
	Long: `Enroll every <admission_no>.<ext> image in a directory against the branch
roster. Students missing from the roster or already enrolled are skipped.

Examples:
  attendance-kiosk batch-enroll ./photos/cse
  attendance-kiosk batch-enroll ./photos/ece --branch ECE --concurrency 5
  attendance-kiosk batch-enroll ./photos/cse --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runBatchEnroll,
}

func init() {
	rootCmd.AddCommand(batchEnrollCmd)
	batchEnrollCmd.Flags().String("branch", "", "Roster branch (defaults to KIOSK_BRANCH)")
	batchEnrollCmd.Flags().Int("concurrency", constants.DefaultBatchConcurrency, "Number of parallel enrollments")
	batchEnrollCmd.Flags().Bool("dry-run", false, "List what would be enrolled without contacting the camera or backend")
}

// batchItem is one photo matched to a roster entry.
type batchItem struct {
	Path  string
	Entry roster.Entry
}

// planBatch matches image files to roster entries by admission number.
// Files are reported as unknown or already enrolled instead of queued.
func planBatch(dir string, r *roster.Roster) (items []batchItem, unknown, enrolled []string, err error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, f := range files {
		if f.IsDir() || !camera.IsImageFile(f.Name()) {
			continue
		}
		admissionNo := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
		entry, ok := r.Lookup(admissionNo)
		switch {
		case !ok:
			unknown = append(unknown, f.Name())
		case entry.FaceEnrolled:
			enrolled = append(enrolled, f.Name())
		default:
			items = append(items, batchItem{Path: filepath.Join(dir, f.Name()), Entry: entry})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Entry.AdmissionNo < items[j].Entry.AdmissionNo })
	return items, unknown, enrolled, nil
}

func runBatchEnroll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	branch := mustGetString(cmd, "branch")
	if branch == "" {
		branch = cfg.Backend.Branch
	}
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}
	dryRun := mustGetBool(cmd, "dry-run")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}

	rosterCtx, rosterCancel := context.WithTimeout(ctx, constants.RosterLoadTimeout)
	students, err := roster.Load(rosterCtx, client, branch)
	rosterCancel()
	if err != nil {
		return fmt.Errorf("loading roster for %s: %w", branch, err)
	}

	items, unknown, enrolled, err := planBatch(args[0], students)
	if err != nil {
		return err
	}
	for _, name := range unknown {
		fmt.Printf("Skipping %s: not in the %s roster\n", name, branch)
	}
	fmt.Printf("Photos to enroll: %d (skipping %d already enrolled, %d unknown)\n\n",
		len(items), len(enrolled), len(unknown))

	if len(items) == 0 {
		fmt.Println("Nothing to enroll!")
		return nil
	}
	if dryRun {
		for _, it := range items {
			fmt.Printf("  %s -> %s (%s)\n", filepath.Base(it.Path), it.Entry.Name, it.Entry.AdmissionNo)
		}
		return nil
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

	bar := progressbar.NewOptions(len(items),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var successCount, duplicateCount, errorCount int
	var failures []string
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		go func(it batchItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			snap, err := enrollFromFile(ctx, cfg, client, students, recorder, it)

			mu.Lock()
			switch {
			case err != nil:
				errorCount++
				failures = append(failures, fmt.Sprintf("%s: %v", it.Entry.AdmissionNo, err))
			case snap.State == capture.StateSuccess:
				successCount++
			case snap.Duplicate != nil:
				duplicateCount++
				failures = append(failures, fmt.Sprintf("%s: %s", it.Entry.AdmissionNo, snap.Duplicate.Message))
			default:
				errorCount++
				failures = append(failures, fmt.Sprintf("%s: %v", it.Entry.AdmissionNo, outcomeError(snap)))
			}
			mu.Unlock()
			bar.Add(1) //nolint:errcheck
		}(item)
	}

	wg.Wait()
	fmt.Println()

	cancel()
	<-recorderDone

	for _, f := range failures {
		fmt.Printf("  %s\n", f)
	}
	fmt.Printf("\nCompleted: %d enrolled, %d duplicates, %d errors\n", successCount, duplicateCount, errorCount)
	return nil
}

// enrollFromFile runs one enrollment through its own flow, using the photo
// as the camera.
func enrollFromFile(
	ctx context.Context, cfg *config.Config, client *backend.Client,
	students *roster.Roster, recorder *database.Recorder, it batchItem,
) (capture.Snapshot, error) {
	flow, err := newFlow(cfg, flowParts{
		Client:    client,
		Camera:    camera.NewManager(camera.NewImageDevice(it.Path)),
		Roster:    students,
		Notifier:  notify.NewBoard(),
		Observers: []capture.Observer{recorder.Observe},
	})
	if err != nil {
		return capture.Snapshot{}, err
	}
	defer flow.Close()

	if err := flow.Start(capture.EnrollRequest(it.Entry.AdmissionNo, it.Entry.Name)); err != nil {
		return capture.Snapshot{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.BatchFlowTimeout)
	defer cancel()
	snap, err := flow.WaitSettled(ctx)
	if err != nil {
		return snap, err
	}
	if snap.AwaitingAck {
		_ = flow.Dismiss()
	}
	return snap, nil
}
