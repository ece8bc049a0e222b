package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent capture outcomes",
	Long: `Lists the most recent outcomes from the capture journal (PostgreSQL when
DATABASE_URL is set). With --today, lists the branch's attendance for today
as recorded by the backend instead.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", constants.DefaultHistoryLimit, "Number of outcomes to show")
	historyCmd.Flags().Bool("today", false, "Show today's attendance from the backend")
	historyCmd.Flags().String("branch", "", "Branch for --today (defaults to KIOSK_BRANCH)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "today") {
		branch := mustGetString(cmd, "branch")
		if branch == "" {
			branch = cfg.Backend.Branch
		}
		return printTodayAttendance(cfg, strings.ToUpper(branch))
	}

	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required to read the outcome journal")
	}
	journal, err := initJournal(cfg)
	if err != nil {
		return err
	}
	defer closeJournal()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	records, err := journal.Recent(ctx, mustGetInt(cmd, "limit"))
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No outcomes recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMODE\tSUBJECT\tSTATE\tCONFIDENCE\tMESSAGE")
	fmt.Fprintln(w, "----\t----\t-------\t-----\t----------\t-------")
	for _, r := range records {
		confidence := ""
		if r.Mode == string(capture.ModeMark) && r.State == string(capture.StateSuccess) {
			confidence = capture.FormatConfidence(r.Confidence)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RecordedAt.Local().Format(time.DateTime), r.Mode, r.Subject, r.State, confidence, r.Message)
	}
	w.Flush()

	if counts, err := journal.CountByState(ctx); err == nil {
		fmt.Printf("\nTotals: %d success, %d no match, %d error\n",
			counts[string(capture.StateSuccess)], counts[string(capture.StateNoMatch)], counts[string(capture.StateError)])
	}
	return nil
}

func printTodayAttendance(cfg *config.Config, branch string) error {
	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Backend.Timeout)
	defer cancel()
	records, err := client.TodayAttendance(ctx, branch)
	if err != nil {
		return fmt.Errorf("failed to get attendance: %w", err)
	}
	if len(records) == 0 {
		fmt.Printf("No attendance marked for %s today.\n", branch)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tADMISSION\tNAME\tSTATUS\tCONFIDENCE")
	fmt.Fprintln(w, "----\t---------\t----\t------\t----------")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp, r.AdmissionNo, r.Name, r.Status, capture.FormatConfidence(float64(r.Confidence)))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d present in %s\n", len(records), branch)
	return nil
}
