package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/docpipe/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not registered", name)
	return nil
}

func TestCommandsRegistered(t *testing.T) {
	app := newApp()
	for _, name := range []string{"process", "run", "stage", "replay", "lineage", "runs", "watch", "listen", "worker", "enqueue", "temporal-worker"} {
		cmd := findCommand(t, app, name)
		assert.NotNil(t, cmd.Action, name)
	}
}

func TestRequiredFlags(t *testing.T) {
	tests := []struct {
		args []string
		flag string
	}{
		{[]string{"docpipe", "run"}, "key"},
		{[]string{"docpipe", "stage", "--doc", "report"}, "stage"},
		{[]string{"docpipe", "lineage"}, "doc"},
		{[]string{"docpipe", "watch"}, "dir"},
		{[]string{"docpipe", "enqueue"}, "key"},
	}
	for _, tt := range tests {
		t.Run(tt.args[1], func(t *testing.T) {
			app := newApp()
			app.Writer = &bytes.Buffer{}
			app.ErrWriter = &bytes.Buffer{}
			err := app.Run(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.flag)
		})
	}
}

func TestExecutorFlagDefault(t *testing.T) {
	cmd := findCommand(t, newApp(), "watch")
	var execFlag *cli.StringFlag
	for _, flag := range cmd.Flags {
		if f, ok := flag.(*cli.StringFlag); ok && f.Name == "executor" {
			execFlag = f
		}
	}
	require.NotNil(t, execFlag)
	assert.Equal(t, executorLocal, execFlag.Value)
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	err := app.Run([]string{"docpipe", "--log-level", "verbose", "runs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRunsAndLineage(t *testing.T) {
	t.Setenv("DOCPIPE_AI_PROVIDER", "mock")
	t.Setenv("DOCPIPE_STORAGE_PATH", filepath.Join(t.TempDir(), "data"))

	t.Run("runs on empty store", func(t *testing.T) {
		out := &bytes.Buffer{}
		app := newApp()
		app.Writer = out
		require.NoError(t, app.Run([]string{"docpipe", "runs"}))
		assert.Contains(t, out.String(), "EXECUTION")
	})

	t.Run("lineage of unknown document", func(t *testing.T) {
		out := &bytes.Buffer{}
		app := newApp()
		app.Writer = out
		require.NoError(t, app.Run([]string{"docpipe", "lineage", "--doc", "report"}))
		assert.Contains(t, out.String(), "extracted/report.json")
		assert.Contains(t, out.String(), "false")
	})

	t.Run("stage without artifacts", func(t *testing.T) {
		app := newApp()
		app.Writer = &bytes.Buffer{}
		err := app.Run([]string{"docpipe", "stage", "--stage", "embed", "--doc", "report"})
		assert.Error(t, err)
	})

	t.Run("process rejects a non-pdf", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.pdf")
		require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
		out := &bytes.Buffer{}
		app := newApp()
		app.Writer = out
		err := app.Run([]string{"docpipe", "process", path})
		require.Error(t, err)
		assert.Contains(t, out.String(), "State: failed")
		assert.Contains(t, out.String(), "Failed stage: text_extraction")
	})

	t.Run("listen requires minio", func(t *testing.T) {
		app := newApp()
		app.Writer = &bytes.Buffer{}
		err := app.Run([]string{"docpipe", "listen"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), config.StorageMinio)
	})
}
