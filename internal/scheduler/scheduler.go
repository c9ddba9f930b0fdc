// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/lang-test-booking/internal/metrics"
)

// Completer marks bookings of started sessions as completed.
// service.BookingService satisfies it.
type Completer interface {
	CompletePast(ctx context.Context) (int64, error)
}

// sweepTimeout bounds one completion sweep.
const sweepTimeout = 30 * time.Second

// Scheduler owns the cron runner.
type Scheduler struct {
	cron      *cron.Cron
	completer Completer
}

// New registers the completion sweep on spec, a standard five-field cron
// expression or a descriptor such as "@every 15m".  Overlapping runs are
// skipped.
func New(spec string, c Completer) (*Scheduler, error) {
	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(cron.WithLogger(logger), cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		completer: c,
	}
	if _, err := s.cron.AddFunc(spec, s.Sweep); err != nil {
		return nil, fmt.Errorf("schedule completion sweep %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for a running sweep up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn("scheduler: stop timed out with a sweep still running")
	}
}

// Sweep completes past bookings once.
func (s *Scheduler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.completer.CompletePast(ctx)
	if err != nil {
		log.WithError(err).Error("scheduler: completion sweep failed")
		return
	}
	metrics.RecordSweep(n, time.Since(start))
	if n > 0 {
		log.WithField("completed", n).Info("scheduler: bookings completed")
	}
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.WithError(err).WithFields(fields(keysAndValues)).Error("cron: " + msg)
}

func fields(kv []interface{}) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
