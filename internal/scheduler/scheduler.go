package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	checkoutdomain "github.com/smallbiznis/medisub/internal/checkout/domain"
	"github.com/smallbiznis/medisub/internal/clock"
	obsmetrics "github.com/smallbiznis/medisub/internal/observability/metrics"
	"github.com/smallbiznis/medisub/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobExpireAbandoned = "expire_abandoned_checkouts"
	jobReleaseStalled  = "release_stalled_verifications"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log         *zap.Logger
	CheckoutSvc checkoutdomain.Service
	Clock       clock.Clock
	Config      Config              `optional:"true"`
	Metrics     *obsmetrics.Metrics `optional:"true"`
	Locker      *ratelimit.Locker   `optional:"true"`
}

type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	checkoutSvc checkoutdomain.Service
	metrics     *obsmetrics.Metrics
	locker      *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.CheckoutSvc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		checkoutSvc: p.CheckoutSvc,
		metrics:     p.Metrics,
		locker:      p.Locker,
	}, nil
}

// RunOnce runs every job a single time. A failing job does not stop the
// ones after it.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	jobs := []struct {
		name string
		fn   func(context.Context) error
	}{
		{jobExpireAbandoned, s.ExpireAbandonedCheckoutsJob},
		{jobReleaseStalled, s.ReleaseStalledVerificationsJob},
	}

	var errs []error
	for _, job := range jobs {
		if err := s.runJob(ctx, job.name, s.cfg.JobTimeout, job.fn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ExpireAbandonedCheckoutsJob returns checkouts whose payment popup was
// never completed to CONFIGURING.
func (s *Scheduler) ExpireAbandonedCheckoutsJob(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.AbandonAfter)
	total, err := s.drain(ctx, cutoff, s.checkoutSvc.ExpireAbandoned)
	if err != nil {
		return fmt.Errorf("expire abandoned checkouts: %w", err)
	}
	if total > 0 {
		s.log.Info("abandoned checkouts expired",
			zap.Int("count", total),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}

// ReleaseStalledVerificationsJob fails orders left in VERIFYING by a
// confirm call that never finished, so the gateway's retried callback can
// complete them.
func (s *Scheduler) ReleaseStalledVerificationsJob(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.StalledAfter)
	total, err := s.drain(ctx, cutoff, s.checkoutSvc.ReleaseStalledVerifications)
	if err != nil {
		return fmt.Errorf("release stalled verifications: %w", err)
	}
	if total > 0 {
		s.log.Warn("stalled verifications released",
			zap.Int("count", total),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}

// drain calls sweep in batches until a short batch.
func (s *Scheduler) drain(ctx context.Context, cutoff time.Time, sweep func(context.Context, time.Time, int) (int, error)) (int, error) {
	total := 0
	for {
		n, err := sweep(ctx, cutoff, s.cfg.BatchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < s.cfg.BatchSize {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	lease, acquired := s.acquire(ctx, name, timeout)
	if !acquired {
		s.metrics.ObserveJob(name, "skipped", time.Since(start))
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lease); err != nil {
			s.log.Warn("release job lease failed", zap.String("job", name), zap.Error(err))
		}
	}()

	err := fn(ctx)

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		// treat deadline as soft-timeout; the next tick resumes the work
		outcome = "timeout"
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
		)
		err = nil
	default:
		outcome = "error"
	}
	s.metrics.ObserveJob(name, outcome, time.Since(start))
	return err
}

// acquire takes the job lease so one replica runs a job at a time. Without
// redis, or when redis fails, the job runs anyway; order updates are
// compare-and-set so overlapping runs only duplicate reads.
func (s *Scheduler) acquire(ctx context.Context, name string, ttl time.Duration) (*ratelimit.Lease, bool) {
	if s.locker == nil {
		return nil, true
	}
	lease, err := s.locker.Acquire(ctx, "scheduler:"+name, ttl)
	if err != nil {
		s.log.Warn("job lease unavailable, running unlocked", zap.String("job", name), zap.Error(err))
		return nil, true
	}
	if lease == nil {
		s.log.Debug("job running elsewhere", zap.String("job", name))
		return nil, false
	}
	return lease, true
}
