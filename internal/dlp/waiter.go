package dlp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cloudsamples/internal/apperrors"
	"cloudsamples/internal/observability"
	"cloudsamples/pkg/backoff"

	"cloud.google.com/go/dlp/apiv2/dlppb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Outcome classifies how a wait for a DLP job ended.
type Outcome string

const (
	OutcomeDone     Outcome = "done"      // job finished, risk details available
	OutcomeFailed   Outcome = "failed"    // job finished with errors
	OutcomePending  Outcome = "pending"   // notified, but the job is not terminal
	OutcomeTimedOut Outcome = "timed_out" // no notification within the budget
)

// WaitConfig controls the job completion wait.
type WaitConfig struct {
	MaxWait         time.Duration  // overall budget, measured from the start of Await
	Backoff         backoff.Config // delay between unsuccessful pulls
	RefetchInterval time.Duration  // pause between job fetches while RUNNING
}

// WaitResult is the latest known job record and how the wait ended.
type WaitResult struct {
	Job      *dlppb.DlpJob
	Outcome  Outcome
	Attempts int // notification pulls performed
	Elapsed  time.Duration
}

// Buckets returns the k-anonymity histogram of a finished job.
func (r *WaitResult) Buckets() []*dlppb.AnalyzeDataSourceRiskDetails_KAnonymityResult_KAnonymityHistogramBucket {
	return r.Job.GetRiskDetails().GetKAnonymityResult().GetEquivalenceClassHistogramBuckets()
}

// Errors returns the errors reported by a failed job.
func (r *WaitResult) Errors() []*dlppb.Error {
	return r.Job.GetErrors()
}

// Waiter blocks until a submitted DLP job reaches a terminal state or the
// budget runs out. Completion is signalled through a notification channel;
// the job itself is the source of truth for its state.
type Waiter struct {
	jobs    JobGetter
	source  NotificationSource
	cfg     WaitConfig
	metrics *observability.Metrics
}

// NewWaiter creates a waiter. metrics may be nil.
func NewWaiter(jobs JobGetter, source NotificationSource, cfg WaitConfig, metrics *observability.Metrics) *Waiter {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 10 * time.Minute
	}
	if cfg.RefetchInterval <= 0 {
		cfg.RefetchInterval = time.Second
	}
	return &Waiter{
		jobs:    jobs,
		source:  source,
		cfg:     cfg,
		metrics: metrics,
	}
}

// Await waits for job to complete.
//
// Notifications for other jobs are left unacknowledged. The first matching
// notification is acknowledged and the job is re-fetched until it leaves the
// RUNNING state or the budget is spent. Between unsuccessful pulls the waiter
// sleeps with capped exponential backoff; the attempt counter starts at 1 and
// is incremented before each sleep, so the first delay is the second step of
// the schedule (4s with the defaults).
//
// If no matching notification arrives within MaxWait the result carries the
// job as submitted and OutcomeTimedOut.
func (w *Waiter) Await(ctx context.Context, job *dlppb.DlpJob) (*WaitResult, error) {
	start := time.Now()
	deadline := start.Add(w.cfg.MaxWait)
	name := job.GetName()
	logger := slog.With("jobName", name)

	result := &WaitResult{Job: job, Outcome: OutcomeTimedOut}

	attempt := 1
	for {
		result.Attempts++
		matched, err := w.pollOnce(ctx, name, deadline, logger)
		if err != nil {
			return nil, err
		}
		if matched {
			latest, err := w.refetch(ctx, name, deadline)
			if err != nil {
				return nil, err
			}
			result.Job = latest
			result.Outcome = outcomeFor(latest)
			break
		}

		attempt++
		delay := backoff.Exponential(attempt, &w.cfg.Backoff)
		logger.Info("Waiting for job to complete", "attempt", attempt, "delay", delay)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
		if time.Since(start) >= w.cfg.MaxWait {
			break
		}
	}

	result.Elapsed = time.Since(start)
	if w.metrics != nil {
		w.metrics.RecordJobWait(ctx, string(result.Outcome), result.Elapsed)
	}
	logger.Info("Job wait finished",
		"outcome", result.Outcome,
		"state", result.Job.GetState().String(),
		"attempts", result.Attempts,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// pollOnce pulls one batch and acknowledges the first notification for name.
// Reports whether such a notification was seen.
func (w *Waiter) pollOnce(ctx context.Context, name string, deadline time.Time, logger *slog.Logger) (bool, error) {
	if w.metrics != nil {
		w.metrics.RecordPollAttempt(ctx)
	}

	pullCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	notifications, err := w.source.Pull(pullCtx)
	if err != nil {
		if ctx.Err() == nil && isDeadline(err) {
			// the budget ended while the pull was blocked
			return false, nil
		}
		return false, apperrors.Remote("pubsub.Pull", err)
	}

	for _, n := range notifications {
		if n.JobName() != name {
			logger.Debug("Ignoring notification for another job", "notifiedJob", n.JobName())
			if w.metrics != nil {
				w.metrics.RecordNotificationIgnored(ctx)
			}
			continue
		}
		if err := w.source.Ack(ctx, n); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// refetch gets the job until it is no longer RUNNING. The loop stops at the
// overall deadline and then returns the still running job.
func (w *Waiter) refetch(ctx context.Context, name string, deadline time.Time) (*dlppb.DlpJob, error) {
	for {
		start := time.Now()
		job, err := w.jobs.GetDlpJob(ctx, &dlppb.GetDlpJobRequest{Name: name})
		observe(ctx, w.metrics, "GetDlpJob", start, err)
		if err != nil {
			return nil, apperrors.Remote("dlp.GetDlpJob", err)
		}
		if job.GetState() != dlppb.DlpJob_RUNNING {
			return job, nil
		}
		if !time.Now().Before(deadline) {
			return job, nil
		}
		if err := sleep(ctx, w.cfg.RefetchInterval); err != nil {
			return nil, err
		}
	}
}

func outcomeFor(job *dlppb.DlpJob) Outcome {
	switch job.GetState() {
	case dlppb.DlpJob_DONE:
		return OutcomeDone
	case dlppb.DlpJob_FAILED:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
