package dlp

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"cloudsamples/internal/apperrors"
	"cloudsamples/pkg/backoff"

	"cloud.google.com/go/dlp/apiv2/dlppb"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func defaultWaitConfig() WaitConfig {
	return WaitConfig{
		MaxWait:         10 * time.Minute,
		Backoff:         backoff.Config{Initial: 2 * time.Second, Max: 60 * time.Second},
		RefetchInterval: time.Second,
	}
}

func TestAwait_IgnoresOtherJobsThenCompletes(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		submitted := jobWithState("J1", dlppb.DlpJob_PENDING)
		source := &fakeSource{batches: [][]Notification{
			{notificationFor("J2", "ack-J2")},
			{notificationFor("J1", "ack-J1")},
		}}
		jobs := &fakeDLP{jobs: []*dlppb.DlpJob{
			jobWithState("J1", dlppb.DlpJob_RUNNING),
			doneJob("J1", 2, 5),
		}}

		result, err := NewWaiter(jobs, source, defaultWaitConfig(), nil).Await(t.Context(), submitted)
		require.NoError(t, err)

		require.Equal(t, OutcomeDone, result.Outcome)
		require.Equal(t, dlppb.DlpJob_DONE, result.Job.GetState())
		buckets := result.Buckets()
		require.Len(t, buckets, 1)
		require.EqualValues(t, 2, buckets[0].GetEquivalenceClassSizeLowerBound())
		require.EqualValues(t, 5, buckets[0].GetEquivalenceClassSizeUpperBound())

		require.Equal(t, []string{"ack-J1"}, source.acked, "only the matching notification is acknowledged")
		require.Equal(t, 2, source.pulls)
		require.Equal(t, 2, result.Attempts)
		require.Equal(t, 2, jobs.gets, "job is re-fetched until it leaves RUNNING")
		// one 4s backoff sleep plus one refetch pause
		require.Equal(t, 5*time.Second, result.Elapsed)
	})
}

func TestAwait_MatchInSameBatch(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		source := &fakeSource{batches: [][]Notification{{
			notificationFor("J2", "ack-J2"),
			notificationFor("J1", "ack-J1"),
			notificationFor("J1", "ack-J1-dup"),
		}}}
		jobs := &fakeDLP{jobs: []*dlppb.DlpJob{doneJob("J1", 1, 1)}}

		result, err := NewWaiter(jobs, source, defaultWaitConfig(), nil).Await(t.Context(), jobWithState("J1", dlppb.DlpJob_PENDING))
		require.NoError(t, err)

		require.Equal(t, OutcomeDone, result.Outcome)
		require.Equal(t, []string{"ack-J1"}, source.acked)
		require.Equal(t, 1, source.pulls)
		require.Zero(t, result.Elapsed)
	})
}

func TestAwait_TimesOutWithoutMatchingNotification(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		submitted := jobWithState("J1", dlppb.DlpJob_PENDING)
		source := &fakeSource{fallback: []Notification{notificationFor("J2", "ack-J2")}}
		jobs := &fakeDLP{}

		result, err := NewWaiter(jobs, source, defaultWaitConfig(), nil).Await(t.Context(), submitted)
		require.NoError(t, err)

		require.Equal(t, OutcomeTimedOut, result.Outcome)
		require.Same(t, submitted, result.Job)
		require.Equal(t, dlppb.DlpJob_PENDING, result.Job.GetState())
		require.Empty(t, source.acked)
		require.Zero(t, jobs.gets)
		// 4+8+16+32 = 60s, then nine 60s sleeps reach the 600s ceiling
		require.Equal(t, 13, result.Attempts)
		require.Equal(t, 10*time.Minute, result.Elapsed)
	})
}

func TestAwait_BackoffSchedule(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		source := &fakeSource{}
		_, err := NewWaiter(&fakeDLP{}, source, defaultWaitConfig(), nil).Await(t.Context(), jobWithState("J1", dlppb.DlpJob_PENDING))
		require.NoError(t, err)

		var gaps []time.Duration
		for i := 1; i < len(source.pullTimes); i++ {
			gaps = append(gaps, source.pullTimes[i].Sub(source.pullTimes[i-1]))
		}
		want := backoff.Schedule(1, len(gaps), &backoff.Config{Initial: 2 * time.Second, Max: 60 * time.Second})
		require.Equal(t, want, gaps)
		require.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second}, gaps[:6])
	})
}

func TestAwait_Failed(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		failed := &dlppb.DlpJob{
			Name:   "J1",
			State:  dlppb.DlpJob_FAILED,
			Errors: []*dlppb.Error{{}, {}},
		}
		source := &fakeSource{batches: [][]Notification{{notificationFor("J1", "a")}}}

		result, err := NewWaiter(&fakeDLP{jobs: []*dlppb.DlpJob{failed}}, source, defaultWaitConfig(), nil).Await(t.Context(), jobWithState("J1", dlppb.DlpJob_PENDING))
		require.NoError(t, err)
		require.Equal(t, OutcomeFailed, result.Outcome)
		require.Len(t, result.Errors(), 2)
	})
}

func TestAwait_RefetchBoundedByBudget(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		cfg := defaultWaitConfig()
		cfg.MaxWait = 30 * time.Second
		source := &fakeSource{batches: [][]Notification{{notificationFor("J1", "a")}}}
		jobs := &fakeDLP{jobs: []*dlppb.DlpJob{jobWithState("J1", dlppb.DlpJob_RUNNING)}}

		result, err := NewWaiter(jobs, source, cfg, nil).Await(t.Context(), jobWithState("J1", dlppb.DlpJob_PENDING))
		require.NoError(t, err)

		require.Equal(t, OutcomePending, result.Outcome)
		require.Equal(t, dlppb.DlpJob_RUNNING, result.Job.GetState())
		require.Equal(t, 30*time.Second, result.Elapsed)
		require.Equal(t, 31, jobs.gets)
		require.Equal(t, []string{"a"}, source.acked)
	})
}

func TestAwait_PullDeadlineIsEmptyBatch(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		cfg := defaultWaitConfig()
		cfg.MaxWait = 10 * time.Second
		source := &fakeSource{pullErr: status.Error(codes.DeadlineExceeded, "no messages")}

		result, err := NewWaiter(&fakeDLP{}, source, cfg, nil).Await(t.Context(), jobWithState("J1", dlppb.DlpJob_PENDING))
		require.NoError(t, err)
		require.Equal(t, OutcomeTimedOut, result.Outcome)
		// sleeps of 4s and 8s cross the 10s budget
		require.Equal(t, 2, result.Attempts)
	})
}

func TestAwait_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		source   *fakeSource
		jobs     *fakeDLP
		sentinel error
	}{
		{
			name:     "pull unavailable",
			source:   &fakeSource{pullErr: status.Error(codes.Unavailable, "down")},
			jobs:     &fakeDLP{},
			sentinel: apperrors.ErrUnavailable,
		},
		{
			name: "ack fails",
			source: &fakeSource{
				batches: [][]Notification{{notificationFor("J1", "a")}},
				ackErr:  apperrors.Remote("pubsub.Acknowledge", status.Error(codes.NotFound, "gone")),
			},
			jobs:     &fakeDLP{},
			sentinel: apperrors.ErrNotFound,
		},
		{
			name:     "get job fails",
			source:   &fakeSource{batches: [][]Notification{{notificationFor("J1", "a")}}},
			jobs:     &fakeDLP{getErr: status.Error(codes.PermissionDenied, "nope")},
			sentinel: apperrors.ErrInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			synctest.Test(t, func(t *testing.T) {
				_, err := NewWaiter(tt.jobs, tt.source, defaultWaitConfig(), nil).Await(t.Context(), jobWithState("J1", dlppb.DlpJob_PENDING))
				require.Error(t, err)
				require.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			})
		})
	}
}

func TestAwait_ContextCancelled(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
		defer cancel()

		_, err := NewWaiter(&fakeDLP{}, &fakeSource{}, defaultWaitConfig(), nil).Await(ctx, jobWithState("J1", dlppb.DlpJob_PENDING))
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNewWaiter_Defaults(t *testing.T) {
	t.Parallel()
	w := NewWaiter(&fakeDLP{}, &fakeSource{}, WaitConfig{}, nil)
	require.Equal(t, 10*time.Minute, w.cfg.MaxWait)
	require.Equal(t, time.Second, w.cfg.RefetchInterval)
}
