// Package monitor runs the probe and restart cycle over all configured servers.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fgeck/hldswatch/internal/models"
	"github.com/fgeck/hldswatch/internal/services/probe"
	"github.com/fgeck/hldswatch/internal/services/restart"
	"github.com/fgeck/hldswatch/internal/services/telegram"
	"github.com/fgeck/hldswatch/internal/services/wol"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Service defines the interface for the monitor loop.
type Service interface {
	Run(ctx context.Context, targets []models.Target) error
	RunCycle(ctx context.Context, targets []models.Target) []models.CycleResult
}

// Recorder receives probe, restart and state observations.
// *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveProbe(target string, result *models.ProbeResult)
	ObserveRestart(target string, issued bool)
	ObserveState(target string, state models.TargetState)
}

type nopRecorder struct{}

func (nopRecorder) ObserveProbe(string, *models.ProbeResult) {}
func (nopRecorder) ObserveRestart(string, bool)              {}
func (nopRecorder) ObserveState(string, models.TargetState)  {}

// Impl implements the monitor Service interface.
type Impl struct {
	probeSvc    probe.Service
	restartSvc  restart.Service
	wolSvc      wol.Service
	telegramSvc telegram.Service
	recorder    Recorder
	settings    models.Settings
	logger      zerolog.Logger
}

// New creates a new monitor. A nil recorder disables metrics.
func New(logger zerolog.Logger, settings models.Settings, recorder Recorder) *Impl {
	return NewWithServices(
		logger,
		settings,
		probe.New(logger, probe.OptionsFromSettings(settings)),
		restart.New(logger),
		wol.New(logger),
		telegram.New(logger),
		recorder,
	)
}

// NewWithServices creates a new monitor with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	settings models.Settings,
	probeSvc probe.Service,
	restartSvc restart.Service,
	wolSvc wol.Service,
	telegramSvc telegram.Service,
	recorder Recorder,
) *Impl {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	return &Impl{
		probeSvc:    probeSvc,
		restartSvc:  restartSvc,
		wolSvc:      wolSvc,
		telegramSvc: telegramSvc,
		recorder:    recorder,
		settings:    settings,
		logger:      logger,
	}
}

// Run checks all targets every CheckInterval until ctx is cancelled.
// Cancellation is the normal way to stop and is not reported as an error.
func (s *Impl) Run(ctx context.Context, targets []models.Target) error {
	s.logger.Info().Msg("HLDSWatch started")
	s.logger.Info().Msgf("Monitoring %d servers", len(targets))

	for {
		s.RunCycle(ctx, targets)

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("HLDSWatch terminated")
			return nil
		case <-time.After(s.settings.CheckInterval):
		}
	}
}

// RunCycle probes every target once and handles the ones that are down.
// With the default of one worker, targets are checked one after another in
// configuration order. More workers check up to Settings.Workers targets at a
// time. RunCycle returns once all of them are done. Results follow the order of targets.
func (s *Impl) RunCycle(ctx context.Context, targets []models.Target) []models.CycleResult {
	results := make([]models.CycleResult, len(targets))

	var g errgroup.Group
	g.SetLimit(s.settings.Workers)

	for i, target := range targets {
		results[i] = models.CycleResult{Target: target, State: models.StateSkipped}

		// Go blocks while the pool is full, so this also covers queued targets.
		if ctx.Err() != nil {
			continue
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			// A started check runs to completion so that a restart is always verified.
			results[i] = s.check(context.WithoutCancel(ctx), target)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (s *Impl) check(ctx context.Context, target models.Target) models.CycleResult {
	addr := target.Address.String()
	result := models.CycleResult{Target: target, State: models.StateProbing}

	probeResult := s.probeSvc.Probe(ctx, target.Address, target.Config.Engine)
	s.recorder.ObserveProbe(addr, probeResult)

	if probeResult.Alive {
		result.State = models.StateAlive
		s.recorder.ObserveState(addr, result.State)
		return result
	}

	s.logger.Info().Msgf("%s is down", addr)
	s.recorder.ObserveState(addr, models.StateDown)
	s.notify(ctx, target, models.StateDown, "")

	if target.Config.Wake != nil {
		s.wake(ctx, target)
	}

	switch {
	case target.Config.AutoRestart:
		result.State, result.Error = s.restart(ctx, target)
	case target.Config.FallbackCommand() != "":
		result.State = models.StateRunningFallback
		if err := s.restartSvc.RunFallback(ctx, target); err != nil {
			result.Error = err
			s.logger.Debug().Err(err).Str("target", addr).Msg("custom command failed")
		}
		s.notify(ctx, target, result.State, "")
	default:
		result.State = models.StateNoAction
	}

	s.recorder.ObserveState(addr, result.State)
	return result
}

// restart issues one restart, waits RestartGrace and probes again.
// The server is re-probed even when the restart commands failed.
func (s *Impl) restart(ctx context.Context, target models.Target) (models.TargetState, error) {
	addr := target.Address.String()
	s.recorder.ObserveState(addr, models.StateRestarting)

	var restartErr error
	result, err := s.restartSvc.Restart(ctx, target)
	switch {
	case err != nil:
		restartErr = err
	case result.Error != nil:
		restartErr = result.Error
	}
	s.recorder.ObserveRestart(addr, restartErr == nil)
	switch {
	case errors.Is(restartErr, restart.ErrStartDirInaccessible):
		s.status(addr, fmt.Sprintf("* Unable to cd into server dir '%s'", target.Config.StartDir))
	case restartErr != nil:
		s.logger.Warn().Err(restartErr).Str("target", addr).Msg("restart commands failed")
	}

	select {
	case <-ctx.Done():
	case <-time.After(s.settings.RestartGrace):
	}

	s.recorder.ObserveState(addr, models.StateReVerifying)
	verify := s.probeSvc.Probe(ctx, target.Address, target.Config.Engine)
	s.recorder.ObserveProbe(addr, verify)

	if verify.Alive {
		s.status(addr, "* Server restarted fine")
		s.notify(ctx, target, models.StateRecovered, "")
		return models.StateRecovered, nil
	}

	s.status(addr, "* Attempt to restart failed")
	detail := ""
	if restartErr != nil {
		detail = restartErr.Error()
	}
	s.notify(ctx, target, models.StateRestartFailed, detail)
	return models.StateRestartFailed, restartErr
}

// status logs a line about the target being handled. Lines of concurrently
// checked targets interleave, so with more than one worker they carry the address.
func (s *Impl) status(addr, msg string) {
	if s.settings.Workers > 1 {
		msg = addr + ": " + msg
	}
	s.logger.Info().Msg(msg)
}

func (s *Impl) wake(ctx context.Context, target models.Target) {
	cfg := target.Config.Wake

	result, err := s.wolSvc.Wake(ctx, *cfg)
	if err == nil && result.Error != nil {
		err = result.Error
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("mac", cfg.MACAddress).Msg("Wake-on-LAN failed")
		return
	}

	s.logger.Debug().
		Str("target", target.Address.String()).
		Str("mac", cfg.MACAddress).
		Msg("Wake-on-LAN packet sent")
}

func (s *Impl) notify(ctx context.Context, target models.Target, state models.TargetState, detail string) {
	if s.settings.Telegram == nil {
		return
	}

	msg := models.TelegramMessage{
		Address: target.Address.String(),
		Engine:  target.Config.Engine,
		State:   state,
		Time:    time.Now(),
		Detail:  detail,
	}

	result, err := s.telegramSvc.SendNotification(ctx, *s.settings.Telegram, msg)
	if err == nil && result.Error != nil {
		err = result.Error
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to send Telegram notification")
	}
}
