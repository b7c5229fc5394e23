package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reso-directory/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded directory refresh attempts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}
		st, err := initHistory(ctx, cfg)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("refresh history is disabled (history.driver=none)")
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		failed, _ := cmd.Flags().GetBool("failed")
		format, _ := cmd.Flags().GetString("format")

		return runHistory(ctx, os.Stdout, st, store.AttemptFilter{Limit: limit, FailedOnly: failed}, format)
	},
}

func runHistory(ctx context.Context, out io.Writer, st store.Store, filter store.AttemptFilter, format string) error {
	attempts, err := st.ListAttempts(ctx, filter)
	if err != nil {
		return eris.Wrap(err, "history list")
	}

	if format == "table" {
		if len(attempts) == 0 {
			fmt.Fprintln(os.Stderr, "No refresh attempts recorded.")
			return nil
		}
		formatAttempts(out, attempts)
		return nil
	}
	return writeOutput(out, format, attempts)
}

func init() {
	historyCmd.Flags().Int("limit", store.DefaultLimit, "maximum attempts to list")
	historyCmd.Flags().Bool("failed", false, "only list failed attempts")
	historyCmd.Flags().String("format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(historyCmd)
}
