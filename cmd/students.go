package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/roster"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "List the branch roster",
	Long:  `Retrieves the students of a branch and whether each has an enrolled face.`,
	Args:  cobra.NoArgs,
	RunE:  runStudents,
}

func init() {
	rootCmd.AddCommand(studentsCmd)
	studentsCmd.Flags().String("branch", "", "Branch to list (defaults to KIOSK_BRANCH)")
	studentsCmd.Flags().Bool("pending", false, "Only list students without an enrolled face")
}

func runStudents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	branch := mustGetString(cmd, "branch")
	if branch == "" {
		branch = cfg.Backend.Branch
	}

	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.RosterLoadTimeout)
	defer cancel()
	r, err := roster.Load(ctx, client, branch)
	if err != nil {
		return fmt.Errorf("failed to get students: %w", err)
	}

	entries := r.Entries()
	if mustGetBool(cmd, "pending") {
		entries = r.Pending()
	}
	if len(entries) == 0 {
		fmt.Println("No students found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADMISSION\tNAME\tSEMESTER\tENROLLED")
	fmt.Fprintln(w, "---------\t----\t--------\t--------")
	for _, e := range entries {
		enrolled := "no"
		if e.FaceEnrolled {
			enrolled = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.AdmissionNo, e.Name, e.Semester, enrolled)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d students (%d pending enrollment)\n", len(r.Entries()), len(r.Pending()))
	return nil
}
