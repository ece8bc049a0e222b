package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-kiosk/internal/capture"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <admission_no> <name...>",
	Short: "Capture a face and enroll it for a student",
	Long: `Capture one frame from the configured camera and enroll it as the
student's face. Students the roster already lists as enrolled are refused
before the camera opens.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return captureOnce(capture.EnrollRequest(args[0], strings.Join(args[1:], " ")))
	},
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}
