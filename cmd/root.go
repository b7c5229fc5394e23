package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reso-directory/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "reso-directory",
	Short: "Searchable mirror of the RESO organizations directory",
	Long:  "Fetches the RESO organizations directory, caches it in memory, and serves search, pagination and aggregate statistics over HTTP or the command line.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
