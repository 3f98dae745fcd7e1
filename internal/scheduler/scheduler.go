package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the periodic maintenance work, currently just the message
// log retention sweep.
type Scheduler struct {
	cron        *cron.Cron
	ctx         context.Context
	cancel      context.CancelFunc
	log         *zap.Logger
	sweepSpec   string
	maintenance func(ctx context.Context) error
}

// New creates a scheduler with the given cron spec, evaluated in UTC.
func New(sweepSpec string, log *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
		sweepSpec: sweepSpec,
	}
}

// SetMaintenanceFunc installs the work to run on each sweep.
func (s *Scheduler) SetMaintenanceFunc(f func(ctx context.Context) error) {
	s.maintenance = f
}

func (s *Scheduler) Start() error {
	if s.maintenance == nil {
		s.log.Warn("maintenance function not set, scheduler idle")
		return nil
	}

	_, err := s.cron.AddFunc(s.sweepSpec, func() {
		s.log.Info("running maintenance sweep", zap.String("spec", s.sweepSpec))
		if err := s.maintenance(s.ctx); err != nil {
			s.log.Error("maintenance sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.String("spec", s.sweepSpec))
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info("scheduler stopped")
}

// IsRunning reports whether any job is registered.
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
