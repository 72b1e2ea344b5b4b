package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	root := rootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "ingest", "refresh-views", "watch-views", "latest", "serve", "worker", "enqueue", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersion(t *testing.T) {
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "biositing dev\n", out.String())
}

func TestIngestRequiresURI(t *testing.T) {
	root := rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ingest"})
	assert.Error(t, root.Execute())
}

func TestLatestRejectsUnknownType(t *testing.T) {
	root := rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"latest", "--type", "nope", "--geography", "06001"})
	assert.ErrorContains(t, root.Execute(), "unknown parent type")
}

func TestModeOr(t *testing.T) {
	assert.Equal(t, "production", modeOr("production", "development"))
	assert.Equal(t, "production", modeOr("", "production"))
	assert.Equal(t, "development", modeOr("", ""))
}
