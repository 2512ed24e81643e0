// Package restart restarts game servers inside detached screen sessions.
package restart

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/fgeck/hldswatch/internal/models"
	"github.com/fgeck/hldswatch/internal/services/ssh"
	"github.com/rs/zerolog"
)

const (
	screenBin = "screen"
	shellBin  = "sh"

	// exitNoStartDir is returned by the remote script when cd fails.
	exitNoStartDir = 97
)

var (
	// ErrNotConfigured is returned when restarting a target without auto restart.
	ErrNotConfigured = errors.New("auto restart is not configured")
	// ErrStartDirInaccessible means the restart was skipped because the start directory is unusable.
	ErrStartDirInaccessible = errors.New("unable to cd into server dir")
)

// Service defines the interface for restart operations.
type Service interface {
	Restart(ctx context.Context, target models.Target) (*models.RestartResult, error)
	RunFallback(ctx context.Context, target models.Target) error
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	ExecuteIn(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// ExecuteIn runs a command with dir as its working directory and returns its output.
// An empty dir runs the command in the current directory.
func (e *DefaultExecutor) ExecuteIn(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Impl implements the restart Service interface.
type Impl struct {
	executor CommandExecutor
	sshSvc   ssh.Service
	logger   zerolog.Logger
}

// New creates a new restart service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		sshSvc:   ssh.New(logger),
		logger:   logger,
	}
}

// NewWithExecutor creates a new restart service with custom collaborators (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor, sshSvc ssh.Service) *Impl {
	return &Impl{
		executor: executor,
		sshSvc:   sshSvc,
		logger:   logger,
	}
}

// Restart force-quits the screen session of the target and starts a new
// detached one running the configured start command.
// CommandsIssued only means the commands ran without a local error; whether
// the server came back is for the caller to verify.
func (s *Impl) Restart(ctx context.Context, target models.Target) (*models.RestartResult, error) {
	if !target.Config.AutoRestart {
		return nil, fmt.Errorf("%s: %w", target.Address, ErrNotConfigured)
	}

	start := time.Now()
	var result *models.RestartResult
	if target.Config.Remote != nil {
		result = s.restartRemote(ctx, target)
	} else {
		result = s.restartLocal(ctx, target)
	}
	result.Duration = time.Since(start)

	return result, nil
}

func (s *Impl) restartLocal(ctx context.Context, target models.Target) *models.RestartResult {
	result := &models.RestartResult{}
	cfg := target.Config

	info, err := os.Stat(cfg.StartDir)
	if err == nil && !info.IsDir() {
		err = errors.New("not a directory")
	}
	if err != nil {
		result.Error = fmt.Errorf("%w '%s': %v", ErrStartDirInaccessible, cfg.StartDir, err)
		return result
	}

	// The old process may be hung and never quit on its own.
	output, err := s.executor.ExecuteIn(ctx, cfg.StartDir, screenBin, "-S", cfg.ScreenName, "-X", "quit")
	if err != nil {
		s.logger.Debug().
			Err(err).
			Str("screen", cfg.ScreenName).
			Str("output", string(output)).
			Msg("no session to quit")
	}

	output, err = s.executor.ExecuteIn(ctx, cfg.StartDir, screenBin, "-dmS", cfg.ScreenName, shellBin, "-c", cfg.StartCommand())
	if err != nil {
		result.Error = fmt.Errorf("failed to start session %s: %w, output: %s", cfg.ScreenName, err, string(output))
		return result
	}

	s.logger.Debug().
		Str("target", target.Address.String()).
		Str("screen", cfg.ScreenName).
		Str("dir", cfg.StartDir).
		Msg("session started")

	result.CommandsIssued = true
	return result
}

func (s *Impl) restartRemote(ctx context.Context, target models.Target) *models.RestartResult {
	result := &models.RestartResult{}
	cfg := target.Config

	sshResult, err := s.sshSvc.Run(ctx, *cfg.Remote, RemoteScript(cfg))
	if err != nil {
		result.Error = fmt.Errorf("remote restart failed: %w", err)
		return result
	}

	switch {
	case sshResult.ExitStatus == exitNoStartDir:
		result.Error = fmt.Errorf("%w '%s' on %s", ErrStartDirInaccessible, cfg.StartDir, cfg.Remote.Host)
	case sshResult.Error != nil:
		result.Error = fmt.Errorf("remote restart failed: %w", sshResult.Error)
	default:
		result.CommandsIssued = true
	}

	return result
}

// RemoteScript builds the shell script that restarts a server over SSH.
func RemoteScript(cfg models.TargetConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cd %s || exit %d\n", shellQuote(cfg.StartDir), exitNoStartDir)
	fmt.Fprintf(&b, "%s -S %s -X quit >/dev/null 2>&1\n", screenBin, cfg.ScreenName)
	fmt.Fprintf(&b, "%s -dmS %s %s -c %s >/dev/null 2>&1\n", screenBin, cfg.ScreenName, shellBin, shellQuote(cfg.StartCommand()))
	return b.String()
}

// RunFallback executes the custom command of a target once. Output is discarded.
func (s *Impl) RunFallback(ctx context.Context, target models.Target) error {
	command := target.Config.FallbackCommand()
	if command == "" {
		return fmt.Errorf("%s: no fallback command configured", target.Address)
	}

	output, err := s.executor.ExecuteIn(ctx, "", shellBin, "-c", command)
	if err != nil {
		return fmt.Errorf("fallback command failed: %w, output: %s", err, string(output))
	}

	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
