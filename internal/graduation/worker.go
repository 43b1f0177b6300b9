package graduation

import (
	"context"
	"sync"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/metrics"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/token"
	"github.com/sirupsen/logrus"
)

// WorkerConfig sizes the migration worker pool
type WorkerConfig struct {
	Workers       int
	QueueSize     int
	SweepInterval time.Duration
}

// Worker runs graduations handed off by trades and re-queues stragglers
type Worker struct {
	service Service
	tokens  token.Repository
	cfg     WorkerConfig
	logger  logrus.FieldLogger

	queue  chan uint
	mu     sync.Mutex
	queued map[uint]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a worker pool over service
func NewWorker(service Service, tokens token.Repository, cfg WorkerConfig, logger logrus.FieldLogger) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		service: service,
		tokens:  tokens,
		cfg:     cfg,
		logger:  logger,
		queue:   make(chan uint, cfg.QueueSize),
		queued:  make(map[uint]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue schedules tokenID without blocking. It reports false only when the
// queue is full; a token already waiting is not queued twice.
func (w *Worker) Enqueue(tokenID uint) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.queued[tokenID]; ok {
		return true
	}
	select {
	case w.queue <- tokenID:
		w.queued[tokenID] = struct{}{}
		metrics.GraduationQueueDepth.Set(float64(len(w.queue)))
		return true
	default:
		return false
	}
}

// Sweep enqueues every token awaiting or retrying migration
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	tokens, err := w.tokens.ListByMigrationStatus(ctx, models.MigrationStatusQueued, models.MigrationStatusFailed)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range tokens {
		if w.Enqueue(t.ID) {
			n++
		}
	}
	return n, nil
}

// Start launches the workers and the periodic sweep
func (w *Worker) Start() {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go w.run()
	}

	if w.cfg.SweepInterval > 0 {
		w.wg.Add(1)
		go w.sweepLoop()
	}
	w.logger.WithField("workers", w.cfg.Workers).Info("Graduation workers started")
}

// Stop cancels in-flight migrations and waits for workers to exit.
// Interrupted migrations resume from their last persisted step.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.logger.Info("Graduation workers stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.mu.Lock()
			delete(w.queued, id)
			metrics.GraduationQueueDepth.Set(float64(len(w.queue)))
			w.mu.Unlock()

			if _, err := w.service.TriggerGraduationCheck(w.ctx, id); err != nil {
				w.logger.WithError(err).WithField("token_id", id).Warn("Graduation attempt failed")
			}
		}
	}
}

func (w *Worker) sweepLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := w.Sweep(w.ctx)
			if err != nil {
				w.logger.WithError(err).Error("Graduation sweep failed")
				continue
			}
			if n > 0 {
				w.logger.WithField("tokens", n).Debug("Graduation sweep enqueued tokens")
			}
		case <-w.ctx.Done():
			return
		}
	}
}
