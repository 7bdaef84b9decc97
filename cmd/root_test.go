package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"ingest", "schedule", "migrate", "subs", "status"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "pricewatch", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestIngestCommand_Flags(t *testing.T) {
	for _, name := range []string{"region", "date", "keep-pdf"} {
		require.NotNil(t, ingestCmd.Flags().Lookup(name),
			"ingest command should have --%s flag", name)
	}
}

func TestSubsCommand_HasSubcommands(t *testing.T) {
	cmds := subsCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"list", "add", "remove"} {
		assert.True(t, names[name], "expected subs subcommand %q not found", name)
	}
}

func TestSubsAddCommand_Defaults(t *testing.T) {
	flag := subsAddCmd.Flags().Lookup("trigger")
	require.NotNil(t, flag)
	assert.Equal(t, "changed", flag.DefValue)
}

func TestStatusCommand_Flags(t *testing.T) {
	flag := statusCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}
