package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reso-directory/internal/query"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Fetch the directory once and print counts per type, state and country",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initDirectory(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		format, _ := cmd.Flags().GetString("format")
		return runStats(ctx, os.Stdout, env.Engine, format)
	},
}

func runStats(ctx context.Context, out io.Writer, engine *query.Engine, format string) error {
	st, err := engine.Stats(ctx)
	if err != nil {
		return eris.Wrap(err, "stats")
	}
	return writeOutput(out, format, st)
}

func init() {
	addFormatFlag(statsCmd)
	rootCmd.AddCommand(statsCmd)
}
