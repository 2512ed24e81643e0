package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/hldswatch/internal/logging"
	"github.com/fgeck/hldswatch/internal/metrics"
	"github.com/fgeck/hldswatch/internal/models"
	"github.com/fgeck/hldswatch/internal/services/monitor"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runWatch(cmd *cobra.Command, args []string) error {
	if geteuid() == 0 {
		return errRunAsRoot
	}

	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cmd.OutOrStdout(), cfg.Settings)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Debug().
		Str("config", args[0]).
		Int("servers", len(cfg.Targets)).
		Int("workers", cfg.Settings.Workers).
		Dur("check_interval", cfg.Settings.CheckInterval).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Debug().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	var recorder monitor.Recorder
	if cfg.Settings.MetricsAddr != "" {
		m := metrics.New()
		recorder = m
		g.Go(func() error {
			return m.Serve(gctx, cfg.Settings.MetricsAddr, logger)
		})
	}

	monitorSvc := monitor.New(logger, cfg.Settings, recorder)
	g.Go(func() error {
		return monitorSvc.Run(gctx, cfg.Targets)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("hldswatch stopped")
		return err
	}

	return nil
}

// newLogger builds the status logger. The returned func closes the log file.
func newLogger(out io.Writer, settings models.Settings) (zerolog.Logger, func(), error) {
	closeLog := func() {}

	var file io.Writer
	if settings.LogFile != "" {
		f, err := logging.OpenFile(settings.LogFile)
		if err != nil {
			return zerolog.Nop(), closeLog, fmt.Errorf("log file: %w", err)
		}
		file = f
		closeLog = func() { _ = f.Close() }
	}

	if jsonOutput {
		if file != nil {
			out = io.MultiWriter(out, file)
		}
		return logging.NewJSON(out, settings.Verbose), closeLog, nil
	}

	return logging.New(out, file, settings.Verbose), closeLog, nil
}
