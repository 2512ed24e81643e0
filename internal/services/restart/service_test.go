package restart

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/fgeck/hldswatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type executedCommand struct {
	dir  string
	name string
	args []string
}

type mockExecutor struct {
	executeFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)
	calls       []executedCommand
}

func (m *mockExecutor) ExecuteIn(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, executedCommand{dir: dir, name: name, args: args})
	if m.executeFunc != nil {
		return m.executeFunc(ctx, dir, name, args...)
	}
	return nil, nil
}

type mockSSHService struct {
	runFunc func(ctx context.Context, cfg models.SSHConfig, command string) (*models.SSHResult, error)
	scripts []string
}

func (m *mockSSHService) Run(ctx context.Context, cfg models.SSHConfig, command string) (*models.SSHResult, error) {
	m.scripts = append(m.scripts, command)
	if m.runFunc != nil {
		return m.runFunc(ctx, cfg, command)
	}
	return &models.SSHResult{CommandRun: true}, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func localTarget(dir string) models.Target {
	return models.Target{
		Address: models.TargetAddress{Host: "203.0.113.5", Port: 27015},
		Config: models.TargetConfig{
			Engine:      models.EngineSource,
			AutoRestart: true,
			ScreenName:  "css",
			StartDir:    dir,
			Command:     "./srcds_run -game cstrike +map de_dust2",
		},
	}
}

func TestRestart_Local_Success(t *testing.T) {
	dir := t.TempDir()
	executor := &mockExecutor{}
	svc := NewWithExecutor(testLogger(), executor, &mockSSHService{})

	result, err := svc.Restart(context.Background(), localTarget(dir))

	require.NoError(t, err)
	assert.True(t, result.CommandsIssued)
	assert.Nil(t, result.Error)

	require.Len(t, executor.calls, 2)
	assert.Equal(t, executedCommand{dir: dir, name: "screen", args: []string{"-S", "css", "-X", "quit"}}, executor.calls[0])
	assert.Equal(t, executedCommand{
		dir:  dir,
		name: "screen",
		args: []string{"-dmS", "css", "sh", "-c", "./srcds_run -game cstrike +map de_dust2"},
	}, executor.calls[1])
}

func TestRestart_Local_QuitFailureIgnored(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
			if args[len(args)-1] == "quit" {
				return []byte("No screen session found."), errors.New("exit status 1")
			}
			return nil, nil
		},
	}
	svc := NewWithExecutor(testLogger(), executor, &mockSSHService{})

	result, err := svc.Restart(context.Background(), localTarget(t.TempDir()))

	require.NoError(t, err)
	assert.True(t, result.CommandsIssued)
	assert.Nil(t, result.Error)
	assert.Len(t, executor.calls, 2)
}

func TestRestart_Local_StartFailure(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
			if args[0] == "-dmS" {
				return []byte("screen: not found"), errors.New("exit status 127")
			}
			return nil, nil
		},
	}
	svc := NewWithExecutor(testLogger(), executor, &mockSSHService{})

	result, err := svc.Restart(context.Background(), localTarget(t.TempDir()))

	require.NoError(t, err)
	assert.False(t, result.CommandsIssued)
	require.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Error(), "failed to start session css")
}

func TestRestart_Local_StartDirMissing(t *testing.T) {
	executor := &mockExecutor{}
	svc := NewWithExecutor(testLogger(), executor, &mockSSHService{})

	dir := filepath.Join(t.TempDir(), "gone")
	result, err := svc.Restart(context.Background(), localTarget(dir))

	require.NoError(t, err)
	assert.False(t, result.CommandsIssued)
	assert.ErrorIs(t, result.Error, ErrStartDirInaccessible)
	assert.Empty(t, executor.calls, "no command may run without a start directory")
	assert.Contains(t, result.Error.Error(), "'"+dir+"'")
}

func TestRestart_NotConfigured(t *testing.T) {
	executor := &mockExecutor{}
	svc := NewWithExecutor(testLogger(), executor, &mockSSHService{})

	target := localTarget(t.TempDir())
	target.Config.AutoRestart = false

	result, err := svc.Restart(context.Background(), target)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Empty(t, executor.calls)
}

func TestRestart_Remote_Success(t *testing.T) {
	executor := &mockExecutor{}
	sshSvc := &mockSSHService{}
	svc := NewWithExecutor(testLogger(), executor, sshSvc)

	target := localTarget("/home/srcds/css")
	target.Config.Remote = &models.SSHConfig{Host: "10.0.0.2", Port: 22, Username: "srcds"}

	result, err := svc.Restart(context.Background(), target)

	require.NoError(t, err)
	assert.True(t, result.CommandsIssued)
	assert.Nil(t, result.Error)
	assert.Empty(t, executor.calls, "remote restarts never run local commands")
	require.Len(t, sshSvc.scripts, 1)
	assert.Equal(t, RemoteScript(target.Config), sshSvc.scripts[0])
}

func TestRestart_Remote_StartDirMissing(t *testing.T) {
	sshSvc := &mockSSHService{
		runFunc: func(ctx context.Context, cfg models.SSHConfig, command string) (*models.SSHResult, error) {
			return &models.SSHResult{CommandRun: true, ExitStatus: 97, Error: errors.New("exit status 97")}, nil
		},
	}
	svc := NewWithExecutor(testLogger(), &mockExecutor{}, sshSvc)

	target := localTarget("/home/srcds/css")
	target.Config.Remote = &models.SSHConfig{Host: "10.0.0.2"}

	result, err := svc.Restart(context.Background(), target)

	require.NoError(t, err)
	assert.False(t, result.CommandsIssued)
	assert.ErrorIs(t, result.Error, ErrStartDirInaccessible)
}

func TestRestart_Remote_ConnectionFailed(t *testing.T) {
	sshSvc := &mockSSHService{
		runFunc: func(ctx context.Context, cfg models.SSHConfig, command string) (*models.SSHResult, error) {
			return &models.SSHResult{ExitStatus: -1, Error: errors.New("failed to connect: connection refused")}, nil
		},
	}
	svc := NewWithExecutor(testLogger(), &mockExecutor{}, sshSvc)

	target := localTarget("/home/srcds/css")
	target.Config.Remote = &models.SSHConfig{Host: "10.0.0.2"}

	result, err := svc.Restart(context.Background(), target)

	require.NoError(t, err)
	assert.False(t, result.CommandsIssued)
	require.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Error(), "connection refused")
	assert.NotErrorIs(t, result.Error, ErrStartDirInaccessible)
}

func TestRemoteScript(t *testing.T) {
	cfg := models.TargetConfig{
		AutoRestart: true,
		ScreenName:  "tf2",
		StartDir:    "/srv/game servers/tf2",
		Command:     "./srcds_run -game tf +hostname 'Bob's server'",
	}

	script := RemoteScript(cfg)

	assert.Equal(t,
		"cd '/srv/game servers/tf2' || exit 97\n"+
			"screen -S tf2 -X quit >/dev/null 2>&1\n"+
			`screen -dmS tf2 sh -c './srcds_run -game tf +hostname '\''Bob'\''s server'\''' >/dev/null 2>&1`+"\n",
		script)
}

func TestRunFallback(t *testing.T) {
	executor := &mockExecutor{}
	svc := NewWithExecutor(testLogger(), executor, &mockSSHService{})

	target := localTarget("")
	target.Config.AutoRestart = false
	target.Config.Command = "/usr/local/bin/notify-admin css"

	err := svc.RunFallback(context.Background(), target)

	require.NoError(t, err)
	require.Len(t, executor.calls, 1)
	assert.Equal(t, executedCommand{name: "sh", args: []string{"-c", "/usr/local/bin/notify-admin css"}}, executor.calls[0])
}

func TestRunFallback_Failure(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
			return []byte("boom"), errors.New("exit status 2")
		},
	}
	svc := NewWithExecutor(testLogger(), executor, &mockSSHService{})

	target := localTarget("")
	target.Config.AutoRestart = false
	target.Config.Command = "false"

	err := svc.RunFallback(context.Background(), target)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback command failed")
}

func TestRunFallback_NotConfigured(t *testing.T) {
	executor := &mockExecutor{}
	svc := NewWithExecutor(testLogger(), executor, &mockSSHService{})

	// With auto restart on, the command is the start command, not a fallback.
	err := svc.RunFallback(context.Background(), localTarget(t.TempDir()))

	require.Error(t, err)
	assert.Empty(t, executor.calls)
}

func TestDefaultExecutor_ExecuteIn(t *testing.T) {
	dir := t.TempDir()
	executor := &DefaultExecutor{}

	output, err := executor.ExecuteIn(context.Background(), dir, "sh", "-c", "pwd")

	require.NoError(t, err)
	assert.Contains(t, string(output), filepath.Base(dir))
}
