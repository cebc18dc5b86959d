package offers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Sweeper runs Service.Sweep on a cron schedule.
type Sweeper struct {
	sched  *cron.Cron
	svc    *Service
	logger *zap.Logger
}

// NewSweeper schedules the sweep with spec, e.g. "@every 1m".
func NewSweeper(svc *Service, spec string, logger *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{
		sched:  cron.New(cron.WithLocation(time.UTC), cron.WithParser(cronParser)),
		svc:    svc,
		logger: logger,
	}
	if _, err := s.sched.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule offer sweep %q: %w", spec, err)
	}
	return s, nil
}

func (s *Sweeper) run() {
	defer func() {
		if err := recover(); err != nil {
			s.logger.Error("offer sweep panic", zap.Any("panic", err))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.svc.Sweep(ctx); err != nil {
		s.logger.Warn("offer sweep failed", zap.Error(err))
	}
}

// Start begins the schedule in the background.
func (s *Sweeper) Start() { s.sched.Start() }

// Stop halts the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.sched.Stop().Done()
}
