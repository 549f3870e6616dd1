package dlp

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/dlp/apiv2/dlppb"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
)

// fakeDLP records requests and replays canned responses.
type fakeDLP struct {
	mu sync.Mutex

	deidentify    func(*dlppb.DeidentifyContentRequest) (*dlppb.DeidentifyContentResponse, error)
	deidentifyReq *dlppb.DeidentifyContentRequest

	redactReq *dlppb.RedactImageRequest
	redacted  []byte

	createReq *dlppb.CreateDlpJobRequest
	created   *dlppb.DlpJob
	createErr error

	// jobs is returned by successive GetDlpJob calls; the last entry repeats.
	jobs   []*dlppb.DlpJob
	gets   int
	getErr error
}

func (f *fakeDLP) DeidentifyContent(_ context.Context, req *dlppb.DeidentifyContentRequest, _ ...gax.CallOption) (*dlppb.DeidentifyContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deidentifyReq = req
	return f.deidentify(req)
}

func (f *fakeDLP) RedactImage(_ context.Context, req *dlppb.RedactImageRequest, _ ...gax.CallOption) (*dlppb.RedactImageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redactReq = req
	return &dlppb.RedactImageResponse{RedactedImage: f.redacted}, nil
}

func (f *fakeDLP) CreateDlpJob(_ context.Context, req *dlppb.CreateDlpJobRequest, _ ...gax.CallOption) (*dlppb.DlpJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createReq = req
	return f.created, f.createErr
}

func (f *fakeDLP) GetDlpJob(_ context.Context, req *dlppb.GetDlpJobRequest, _ ...gax.CallOption) (*dlppb.DlpJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	i := min(f.gets, len(f.jobs)-1)
	f.gets++
	return f.jobs[i], nil
}

// fakeSource replays notification batches; once exhausted it keeps
// returning the fallback batch.
type fakeSource struct {
	mu       sync.Mutex
	batches  [][]Notification
	fallback []Notification
	pullErr  error
	ackErr   error

	pulls     int
	pullTimes []time.Time
	acked     []string
}

func (s *fakeSource) Pull(_ context.Context) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulls++
	s.pullTimes = append(s.pullTimes, time.Now())
	if s.pullErr != nil {
		return nil, s.pullErr
	}
	if len(s.batches) == 0 {
		return s.fallback, nil
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

func (s *fakeSource) Ack(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ackErr != nil {
		return s.ackErr
	}
	s.acked = append(s.acked, n.AckID)
	return nil
}

func notificationFor(jobName, ackID string) Notification {
	return Notification{
		AckID:      ackID,
		Attributes: map[string]string{JobNameAttribute: jobName},
	}
}

func jobWithState(name string, state dlppb.DlpJob_JobState) *dlppb.DlpJob {
	return &dlppb.DlpJob{Name: name, State: state}
}

func doneJob(name string, lower, upper int64) *dlppb.DlpJob {
	return &dlppb.DlpJob{
		Name:  name,
		State: dlppb.DlpJob_DONE,
		Details: &dlppb.DlpJob_RiskDetails{
			RiskDetails: &dlppb.AnalyzeDataSourceRiskDetails{
				Result: &dlppb.AnalyzeDataSourceRiskDetails_KAnonymityResult_{
					KAnonymityResult: &dlppb.AnalyzeDataSourceRiskDetails_KAnonymityResult{
						EquivalenceClassHistogramBuckets: []*dlppb.AnalyzeDataSourceRiskDetails_KAnonymityResult_KAnonymityHistogramBucket{{
							EquivalenceClassSizeLowerBound: lower,
							EquivalenceClassSizeUpperBound: upper,
							BucketSize:                     1,
							BucketValues: []*dlppb.AnalyzeDataSourceRiskDetails_KAnonymityResult_KAnonymityEquivalenceClass{{
								QuasiIdsValues: []*dlppb.Value{
									{Type: &dlppb.Value_IntegerValue{IntegerValue: 19}},
									{Type: &dlppb.Value_StringValue{StringValue: "Male"}},
								},
								EquivalenceClassSize: 3,
							}},
						}},
					},
				},
			},
		},
	}
}

// fakeSubscriber records Pub/Sub calls.
type fakeSubscriber struct {
	pullReq *pubsubpb.PullRequest
	pullErr error
	ackReq  *pubsubpb.AcknowledgeRequest
	ackErr  error
	resp    *pubsubpb.PullResponse
}

func (s *fakeSubscriber) Pull(_ context.Context, req *pubsubpb.PullRequest, _ ...gax.CallOption) (*pubsubpb.PullResponse, error) {
	s.pullReq = req
	if s.pullErr != nil {
		return nil, s.pullErr
	}
	return s.resp, nil
}

func (s *fakeSubscriber) Acknowledge(_ context.Context, req *pubsubpb.AcknowledgeRequest, _ ...gax.CallOption) error {
	s.ackReq = req
	return s.ackErr
}
