package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hperssn/focusflow/internal/reporter"
)

var endCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "End a focus session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := reporter.NewClient(serverURL, 10*time.Second)
		sess, err := client.EndSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %s completed: %ds, average %.0f, max %.0f, min %.0f\n",
			sess.ID, sess.DurationSec, sess.AverageScore, sess.MaxScore, sess.MinScore)
		return nil
	},
}
