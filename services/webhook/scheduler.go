package webhook

import (
	"context"
	"time"

	"fulfly-integrations/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const dueBatchSize = 100

// Scheduler re-enqueues due pending deliveries so the retry timer survives
// process restarts: the delivery rows are the source of truth, not any
// in-flight task.
type Scheduler struct {
	service  *Service
	interval time.Duration
	stop     chan struct{}
}

func NewScheduler(svc *Service, cfg *config.Config) *Scheduler {
	return &Scheduler{
		service:  svc,
		interval: cfg.Webhook.PollInterval,
		stop:     make(chan struct{}),
	}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go s.run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(s.stop)
			return nil
		},
	})
}

func (s *Scheduler) run() {
	zap.L().Info("[Scheduler] started webhook retry scheduler", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stop:
			zap.L().Info("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	n, err := s.service.EnqueueDue(ctx, dueBatchSize)
	if err != nil {
		zap.L().Error("[Scheduler] failed to enqueue due deliveries", zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Info("[Scheduler] enqueued due deliveries", zap.Int("count", n))
	}
}
