package pubstatic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Prebuildable re-enumerates paths and fills in pages nothing has cached.
type Prebuildable interface {
	Prebuild(ctx context.Context) int
}

// Prebuilder periodically re-runs path enumeration so articles published
// since the last build are generated before anyone asks for them.
type Prebuilder struct {
	scheduler gocron.Scheduler
	target    Prebuildable
	logger    *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPrebuilder schedules target.Prebuild every interval. Runs never overlap.
func NewPrebuilder(target Prebuildable, interval time.Duration, logger *slog.Logger) (*Prebuilder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	p := &Prebuilder{
		scheduler: s,
		target:    target,
		logger:    logger,
		ctx:       context.Background(),
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(p.run),
		gocron.WithName("prebuild"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("schedule prebuild: %w", err)
	}
	return p, nil
}

// Start begins the schedule. Runs stop early when ctx is cancelled.
func (p *Prebuilder) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()
	p.logger.Info("starting prebuild scheduler")
	p.scheduler.Start()
}

// Stop cancels a running prebuild and shuts the scheduler down.
func (p *Prebuilder) Stop() error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	return p.scheduler.Shutdown()
}

func (p *Prebuilder) run() {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	start := time.Now()
	n := p.target.Prebuild(ctx)
	p.logger.Debug("scheduled prebuild done", "built", n, "took", time.Since(start))
}
