package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pipecache/cmd/pipecache/commands"
	"go.trai.ch/pipecache/internal/app"
	"go.trai.ch/pipecache/internal/build"
)

type mockApp struct {
	runFunc     func(ctx context.Context, targets []string, opts app.RunOptions) error
	recordsFunc func(ctx context.Context, task string) error
	cleanFunc   func(ctx context.Context) error
}

func (m *mockApp) Run(ctx context.Context, targets []string, opts app.RunOptions) error {
	if m.runFunc != nil {
		return m.runFunc(ctx, targets, opts)
	}
	return nil
}

func (m *mockApp) Records(ctx context.Context, task string) error {
	if m.recordsFunc != nil {
		return m.recordsFunc(ctx, task)
	}
	return nil
}

func (m *mockApp) Clean(ctx context.Context) error {
	if m.cleanFunc != nil {
		return m.cleanFunc(ctx)
	}
	return nil
}

type logSettings struct {
	json    *bool
	verbose bool
}

func (l *logSettings) SetJSON(enabled bool) { l.json = &enabled }

func (l *logSettings) SetVerbose(enabled bool) { l.verbose = enabled }

func TestCommands_Run(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var capturedOpts app.RunOptions
		var capturedTargets []string
		called := false

		mock := &mockApp{
			runFunc: func(_ context.Context, targets []string, opts app.RunOptions) error {
				capturedOpts = opts
				capturedTargets = targets
				called = true
				return nil
			},
		}

		cli := commands.New(mock, nil)
		cli.SetArgs([]string{"run", "stats", "double", "--with-upstream", "-p", "3"})

		err := cli.Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, called)
		assert.True(t, capturedOpts.WithUpstream)
		assert.Equal(t, 3, capturedOpts.Parallelism)
		assert.Equal(t, []string{"stats", "double"}, capturedTargets)
	})

	t.Run("runs everything without targets", func(t *testing.T) {
		var capturedTargets []string
		mock := &mockApp{
			runFunc: func(_ context.Context, targets []string, _ app.RunOptions) error {
				capturedTargets = targets
				return nil
			},
		}

		cli := commands.New(mock, nil)
		cli.SetArgs([]string{"run"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Empty(t, capturedTargets)
	})

	t.Run("returns error on run failure", func(t *testing.T) {
		mock := &mockApp{
			runFunc: func(_ context.Context, _ []string, _ app.RunOptions) error {
				return errors.New("simulated error")
			},
		}

		cli := commands.New(mock, nil)
		cli.SetArgs([]string{"run", "stats"})
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})
}

func TestCommands_Records(t *testing.T) {
	var tasks []string
	mock := &mockApp{
		recordsFunc: func(_ context.Context, task string) error {
			tasks = append(tasks, task)
			return nil
		},
	}

	cli := commands.New(mock, nil)
	cli.SetArgs([]string{"records"})
	require.NoError(t, cli.Execute(context.Background()))

	cli.SetArgs([]string{"records", "raw/load"})
	require.NoError(t, cli.Execute(context.Background()))

	assert.Equal(t, []string{"", "raw/load"}, tasks)

	cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
	cli.SetArgs([]string{"records", "a", "b"})
	require.Error(t, cli.Execute(context.Background()))
}

func TestCommands_Clean(t *testing.T) {
	cleanErr := errors.New("permission denied")
	mock := &mockApp{
		cleanFunc: func(context.Context) error { return cleanErr },
	}

	cli := commands.New(mock, nil)
	cli.SetArgs([]string{"clean"})
	require.ErrorIs(t, cli.Execute(context.Background()), cleanErr)
}

func TestCommands_LogFlags(t *testing.T) {
	logs := &logSettings{}
	cli := commands.New(&mockApp{}, logs)
	cli.SetArgs([]string{"run", "--verbose", "--json"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.True(t, logs.verbose)
	require.NotNil(t, logs.json)
	assert.True(t, *logs.json)
}

func TestCommands_LogFlagsUntouched(t *testing.T) {
	logs := &logSettings{}
	cli := commands.New(&mockApp{}, logs)
	cli.SetArgs([]string{"clean"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.False(t, logs.verbose)
	assert.Nil(t, logs.json)
}

func TestCommands_Version(t *testing.T) {
	cli := commands.New(&mockApp{}, nil)

	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"version"})

	err := cli.Execute(context.Background())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "pipecache version "+build.Version)
}

func TestRoot_Help(t *testing.T) {
	cli := commands.New(&mockApp{}, nil)

	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"--help"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Contains(t, buf.String(), "records")
	assert.Contains(t, buf.String(), "clean")
}
