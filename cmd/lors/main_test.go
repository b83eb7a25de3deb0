package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"upload", "download", "copy", "mkdir"} {
		assert.True(t, names[want], "expected subcommand %q to be registered", want)
	}
}

func TestUploadCommandRequiresExactlyOneArg(t *testing.T) {
	cmd := newUploadCmd()
	err := cmd.Args(cmd, []string{})
	require.Error(t, err)

	err = cmd.Args(cmd, []string{"one", "two"})
	require.Error(t, err)

	err = cmd.Args(cmd, []string{"one"})
	require.NoError(t, err)
}

func TestDepotConfigForUnknownKindFails(t *testing.T) {
	_, err := depotConfigFor("nonexistent", map[string]any{})
	require.Error(t, err)
}

func TestDepotConfigForPoolKind(t *testing.T) {
	cfg, err := depotConfigFor("pool", map[string]any{"Cluster": "c1", "Pool": "p1"})
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}
