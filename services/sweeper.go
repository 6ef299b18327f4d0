package services

import (
	"context"
	"time"

	"notebook-rag-platform/internal/logger"
	"notebook-rag-platform/internal/telemetry"

	"github.com/go-co-op/gocron"
)

// OrphanSweeper is the store-side hook the sweep calls into.
type OrphanSweeper interface {
	SweepOrphans(ctx context.Context) (int64, error)
}

// SweeperService periodically removes chunk/embedding rows left
// unpaired by index runs whose best-effort cleanup failed, restoring
// the one-chunk-one-embedding invariant.
type SweeperService struct {
	store     OrphanSweeper
	scheduler *gocron.Scheduler
	interval  time.Duration
	metrics   *telemetry.Metrics
}

func NewSweeperService(store OrphanSweeper, interval time.Duration, metrics *telemetry.Metrics) *SweeperService {
	return &SweeperService{
		store:     store,
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		metrics:   metrics,
	}
}

func (s *SweeperService) Start() error {
	_, err := s.scheduler.Every(s.interval).Do(s.sweep)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	logger.Info("consistency sweeper started", "interval", s.interval.String())
	return nil
}

func (s *SweeperService) Stop() {
	s.scheduler.Stop()
}

func (s *SweeperService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := s.store.SweepOrphans(ctx)
	if err != nil {
		logger.Error("consistency sweep failed", "error", err)
		return
	}
	if removed > 0 {
		logger.Warn("consistency sweep removed orphan rows", "count", removed)
		if s.metrics != nil {
			s.metrics.OrphansSwept.Add(ctx, removed)
		}
	}
}
