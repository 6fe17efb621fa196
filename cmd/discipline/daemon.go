package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/config"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/daemon"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/infra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the daemon in the foreground",
	Long: `Runs the enforcement daemon until SIGINT or SIGTERM.
Normally started by systemd; see 'discipline install'.`,
	RunE: runDaemon,
}

// loadConfig resolves the mode, the config file and the socket override.
func loadConfig() (*config.Config, *infra.ExecModeConfig, error) {
	mode := infra.DetectExecMode()
	cfg, err := config.Load(config.Path(configPath, mode), mode)
	if err != nil {
		return nil, nil, err
	}
	if socketPath != "" {
		cfg.SocketPath = socketPath
	}
	return cfg, mode, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, mode, err := loadConfig()
	if err != nil {
		return err
	}

	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	if !mode.IsRoot {
		logger.Warn("not running as root: password changes and session termination will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = daemon.Run(ctx, daemon.Options{Config: cfg, Mode: mode, Version: Version}, logger)
	if err != nil {
		logger.Error("daemon failed", zap.Error(err))
		return fmt.Errorf("daemon: %w", err)
	}
	return nil
}

func createLogger(cfg *config.Config) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if cfg.Debug {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.LogFile != "" {
		zcfg.OutputPaths = []string{cfg.LogFile}
		zcfg.ErrorOutputPaths = []string{cfg.LogFile}
	}
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
		logger.Warn("failed to open log file", zap.String("path", cfg.LogFile), zap.Error(err))
	}
	return logger
}
