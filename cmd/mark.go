package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
)

var markCmd = &cobra.Command{
	Use:   "mark",
	Short: "Capture a face and mark attendance by recognition",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		branch := mustGetString(cmd, "branch")
		if branch == "" {
			branch = config.Load().Backend.Branch
		}
		return captureOnce(capture.MarkRequest(branch))
	},
}

func init() {
	rootCmd.AddCommand(markCmd)
	markCmd.Flags().String("branch", "", "Branch to mark attendance for (defaults to KIOSK_BRANCH)")
}
