package workers

import (
	"context"
	"fmt"
	"time"

	"mentalgoals/internal/service"
	"mentalgoals/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const defaultCleanupInterval = time.Hour

type Cleaner interface {
	Cleanup(ctx context.Context, owner string) (service.CleanupReport, error)
}

type OwnerLister interface {
	Owners(ctx context.Context) ([]string, error)
}

type CleanupConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SweepReport struct {
	Owners int      `json:"owners"`
	Failed []string `json:"failed"`
	Pruned int      `json:"pruned"`
	Errors int      `json:"errors"`
}

// CleanupWorker periodically runs the progress retention sweep for every
// stored owner.
type CleanupWorker struct {
	cleaner   Cleaner
	owners    OwnerLister
	config    CleanupConfig
	clock     clockwork.Clock
	scheduler gocron.Scheduler
}

func NewCleanupWorker(cleaner Cleaner, owners OwnerLister, clock clockwork.Clock, config CleanupConfig) *CleanupWorker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.Interval <= 0 {
		config.Interval = defaultCleanupInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	return &CleanupWorker{
		cleaner: cleaner,
		owners:  owners,
		config:  config,
		clock:   clock,
	}
}

// Start schedules the sweep. The first run happens immediately.
func (w *CleanupWorker) Start() error {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(w.clock))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(w.config.Interval),
		gocron.NewTask(w.run),
		gocron.WithName("progress-retention"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	scheduler.Start()
	w.scheduler = scheduler

	logger.Logger().Info("cleanup worker started", zap.Duration("interval", w.config.Interval))
	return nil
}

func (w *CleanupWorker) Stop() error {
	if w.scheduler == nil {
		return nil
	}
	return w.scheduler.Shutdown()
}

func (w *CleanupWorker) run() {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.Timeout)
	defer cancel()

	if _, err := w.Sweep(ctx); err != nil {
		logger.Logger().Error("cleanup sweep failed", zap.Error(err))
	}
}

// Sweep cleans up every owner. A failing owner is logged and skipped.
func (w *CleanupWorker) Sweep(ctx context.Context) (SweepReport, error) {
	log := logger.Logger()
	report := SweepReport{Failed: []string{}}

	owners, err := w.owners.Owners(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list owners: %w", err)
	}

	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := w.cleaner.Cleanup(ctx, owner)
		if err != nil {
			report.Errors++
			log.Error("failed to clean up owner", zap.String("owner", owner), zap.Error(err))
			continue
		}

		report.Owners++
		report.Failed = append(report.Failed, res.Failed...)
		report.Pruned += res.Pruned
	}

	log.Info("cleanup sweep finished",
		zap.Int("owners", report.Owners),
		zap.Int("failed", len(report.Failed)),
		zap.Int("pruned", report.Pruned),
		zap.Int("errors", report.Errors))
	return report, nil
}
