package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reso-directory/internal/model"
	"github.com/sells-group/reso-directory/internal/query"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// writeOutput encodes v to out as indented JSON or YAML.
func writeOutput(out io.Writer, format string, v any) error {
	switch format {
	case formatJSON, "":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "close yaml encoder")
	default:
		return eris.Errorf("unsupported output format %q (want json or yaml)", format)
	}
}

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().String("format", formatJSON, "output format: json or yaml")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("query", "", "case-insensitive substring of the organization name")
	cmd.Flags().String("type", "", "exact organization type")
	cmd.Flags().String("state", "", "exact state or province")
	cmd.Flags().String("country", "", "exact country")
}

func filterFromFlags(cmd *cobra.Command) query.Filter {
	q, _ := cmd.Flags().GetString("query")
	typ, _ := cmd.Flags().GetString("type")
	state, _ := cmd.Flags().GetString("state")
	country, _ := cmd.Flags().GetString("country")
	return query.Filter{Query: q, Type: typ, State: state, Country: country}
}

func formatAttempts(out io.Writer, attempts []model.RefreshAttempt) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTARTED\tOK\tCOUNT\tDURATION\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-------\t--\t-----\t--------\t-----")

	for _, a := range attempts {
		errText := a.Error
		if len(errText) > 60 {
			errText = errText[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\t%s\n",
			truncateID(a.ID),
			a.StartedAt.Format("2006-01-02 15:04:05"),
			a.OK,
			a.Count,
			a.Duration().Round(time.Millisecond),
			errText,
		)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
