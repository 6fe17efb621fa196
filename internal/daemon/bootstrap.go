package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/api"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/config"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/infra"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/usecase"
)

// Options configures a daemon run.
type Options struct {
	Config  *config.Config
	Mode    *infra.ExecModeConfig
	Version string

	// OSCalls overrides the Linux account calls.
	OSCalls domain.OperatingSystemCalls
	// Clock overrides the wall clock.
	Clock clock.Clock
}

// Run starts the daemon and blocks until ctx is canceled.
//
// Startup order: instance lock, store key, encrypted store, blocked-state
// password, managed accounts (status reset to unknown), one immediate check
// per account, then the scheduler workers and the control API.
func Run(ctx context.Context, opts Options, logger *zap.Logger) error {
	cfg := opts.Config
	startedAt := time.Now()

	lock, err := infra.AcquireInstanceLock(cfg.DataDir, infra.RuntimeInfo{
		PID:        os.Getpid(),
		StartedAt:  startedAt.Unix(),
		SocketPath: cfg.SocketPath,
		Version:    opts.Version,
		Mode:       string(opts.Mode.Mode),
	})
	if err != nil {
		return err
	}
	defer lock.Release()

	key, created, err := infra.EnsureKey(infra.NewFileKeyProvider(cfg.DataDir))
	if err != nil {
		return fmt.Errorf("failed to load store key: %w", err)
	}
	if created {
		logger.Info("generated new store key", zap.String("dir", cfg.DataDir))
	}

	store, err := infra.OpenStore(cfg.DataDir, key)
	if err != nil {
		return err
	}
	defer store.Close()

	blockedPassword, err := infra.EnsureBlockedPassword(store)
	if err != nil {
		return err
	}

	accounts, err := usecase.LoadAccountTable(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	osCalls := opts.OSCalls
	if osCalls == nil {
		sessions := infra.NewStrategyManager(infra.NewProcessManager(), logger)
		osCalls = infra.NewLinuxOSCalls(sessions, logger)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	scheduler := NewScheduler(SchedulerConfig{
		Workers:           cfg.Workers,
		HeartbeatInterval: time.Duration(cfg.HeartbeatInterval),
	}, logger)
	enforcer := usecase.NewEnforcer(accounts, osCalls, store, scheduler, clk, blockedPassword, logger)
	service := usecase.NewRegulationService(accounts, store, osCalls, enforcer, clk,
		clock.FromStd(time.Duration(cfg.DefaultCheckInterval)), logger)

	status := func() api.StatusResponse {
		return api.StatusResponse{
			Version:      opts.Version,
			PID:          os.Getpid(),
			Mode:         string(opts.Mode.Mode),
			StartedAt:    startedAt.Unix(),
			Accounts:     accounts.Len(),
			PendingTasks: scheduler.Pending(),
		}
	}
	server := api.NewServer(service, status, clk, logger)

	logger.Info("daemon starting",
		zap.String("version", opts.Version),
		zap.String("mode", opts.Mode.Mode.String()),
		zap.Int("accounts", accounts.Len()))
	enforcer.StartAll()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx, enforcer)
	})
	g.Go(func() error {
		return server.Serve(gctx, cfg.SocketPath)
	})

	err = g.Wait()
	logger.Info("daemon stopped")
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
