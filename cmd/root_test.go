package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "search", "stats", "export", "history"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "reso-directory", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	require.NotNil(t, serveCmd.Flags().Lookup("host"))
	preload := serveCmd.Flags().Lookup("preload")
	require.NotNil(t, preload)
	assert.Equal(t, "false", preload.DefValue)
}

func TestSearchCommand_Flags(t *testing.T) {
	for _, name := range []string{"query", "type", "state", "country", "page", "per-page", "format"} {
		assert.NotNil(t, searchCmd.Flags().Lookup(name), "search should have --%s flag", name)
	}
	assert.Equal(t, "25", searchCmd.Flags().Lookup("per-page").DefValue)
	assert.Equal(t, "json", searchCmd.Flags().Lookup("format").DefValue)
}

func TestExportCommand_OutRequired(t *testing.T) {
	flag := exportCmd.Flags().Lookup("out")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Annotations, "cobra_annotation_bash_completion_one_required_flag")
}

func TestHistoryCommand_Flags(t *testing.T) {
	limit := historyCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "20", limit.DefValue)
	assert.NotNil(t, historyCmd.Flags().Lookup("failed"))
	assert.Equal(t, "table", historyCmd.Flags().Lookup("format").DefValue)
}
