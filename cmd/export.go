package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reso-directory/internal/export"
	"github.com/sells-group/reso-directory/internal/model"
	"github.com/sells-group/reso-directory/internal/query"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write matching organizations to a .csv or .xlsx file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		out, _ := cmd.Flags().GetString("out")
		if _, err := export.Format(out); err != nil {
			return err
		}

		env, err := initDirectory(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := runExport(ctx, env.Engine, filterFromFlags(cmd), out)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d organizations to %s\n", n, out)
		return nil
	},
}

// runExport writes every record matching f to path and returns how many
// were written.
func runExport(ctx context.Context, engine *query.Engine, f query.Filter, path string) (int, error) {
	orgs, snap := engine.Matching(ctx, f)
	if !snap.Loaded() {
		return 0, eris.Wrap(query.ErrNoData, "export")
	}

	format, err := export.Format(path)
	if err != nil {
		return 0, err
	}

	switch format {
	case export.FormatXLSX:
		err = export.WriteXLSX(path, orgs)
	default:
		err = writeCSVFile(path, orgs)
	}
	if err != nil {
		return 0, err
	}

	zap.L().Info("export complete",
		zap.String("path", path),
		zap.String("snapshot_id", snap.ID),
		zap.Int("count", len(orgs)),
	)
	return len(orgs), nil
}

func writeCSVFile(path string, orgs []model.Organization) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := export.WriteCSV(f, orgs); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	addFilterFlags(exportCmd)
	exportCmd.Flags().String("out", "", "output file (.csv or .xlsx)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
