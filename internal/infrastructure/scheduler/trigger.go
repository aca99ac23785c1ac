package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntervalTriggerConfig holds configuration for the interval trigger
type IntervalTriggerConfig struct {
	Interval time.Duration
	Kinds    []JobKind
	// RunOnStart submits every kind as soon as the trigger starts
	RunOnStart bool
}

// IntervalTrigger submits maintenance jobs on a fixed interval
type IntervalTrigger struct {
	config    IntervalTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalTrigger creates a trigger. A non-positive interval is rejected.
func NewIntervalTrigger(config IntervalTriggerConfig, scheduler *Scheduler, logger *zap.Logger) (*IntervalTrigger, error) {
	if config.Interval <= 0 {
		return nil, ErrInvalidConfig
	}
	if len(config.Kinds) == 0 {
		config.Kinds = AllJobKinds()
	}
	return &IntervalTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger,
	}, nil
}

// Start starts the trigger loop
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Maintenance trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Int("kinds", len(t.config.Kinds)),
	)
	return nil
}

// Stop stops the trigger loop
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *IntervalTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		t.trigger()
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.trigger()
		}
	}
}

// trigger submits one job per kind; a full queue skips the round
func (t *IntervalTrigger) trigger() {
	for _, kind := range t.config.Kinds {
		if _, err := t.scheduler.Submit(kind); err != nil {
			level := zap.ErrorLevel
			if errors.Is(err, ErrJobQueueFull) {
				level = zap.WarnLevel
			}
			t.logger.Log(level, "Failed to submit maintenance job",
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		}
	}
}
