package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/looper/internal/models"
	"github.com/tOgg1/looper/internal/record"
)

var completionsDrain bool

func init() {
	completionsCmd.Flags().BoolVar(&completionsDrain, "drain", false, "consume the log after reading it")
	rootCmd.AddCommand(completionsCmd)
}

var completionsCmd = &cobra.Command{
	Use:   "completions",
	Short: "Show the completion log; --drain consumes it (mailbox semantics)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		var entries []models.CompletionEntry
		var err error
		if completionsDrain {
			entries, err = record.Drain(cfg.Global.ProjectDir)
		} else {
			entries, err = record.Entries(cfg.Global.ProjectDir)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(entries)
		}

		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no completions")
			return nil
		}
		for _, entry := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s (%s) %s\n",
				entry.CompletedAt.Local().Format(time.DateTime),
				entry.Session, entry.LoopType, entry.Status)
		}
		return nil
	},
}
