package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reso-directory/internal/query"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Fetch the directory once and print one page of matches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initDirectory(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		page, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")
		format, _ := cmd.Flags().GetString("format")

		return runSearch(ctx, os.Stdout, env.Engine, filterFromFlags(cmd),
			query.PageRequest{Page: page, PerPage: perPage}, format)
	},
}

func runSearch(ctx context.Context, out io.Writer, engine *query.Engine, f query.Filter, p query.PageRequest, format string) error {
	res := engine.Search(ctx, f, p)
	if res.LastUpdated == nil {
		return eris.Wrap(query.ErrNoData, "search")
	}
	return writeOutput(out, format, res)
}

func init() {
	addFilterFlags(searchCmd)
	addFormatFlag(searchCmd)
	searchCmd.Flags().Int("page", 1, "page number, starting at 1")
	searchCmd.Flags().Int("per-page", query.DefaultPerPage, "results per page")
	rootCmd.AddCommand(searchCmd)
}
