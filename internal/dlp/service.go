// Package dlp implements the Data Loss Prevention samples: table
// de-identification, image redaction and k-anonymity risk analysis, together
// with the waiter that follows a risk job to completion.
package dlp

import (
	"context"
	"fmt"
	"time"

	"cloudsamples/internal/observability"

	"cloud.google.com/go/dlp/apiv2/dlppb"
	"github.com/googleapis/gax-go/v2"
)

const serviceName = "dlp"

// Client is the subset of the DLP API used by the samples.
// *dlp.Client from cloud.google.com/go/dlp/apiv2 satisfies it.
type Client interface {
	DeidentifyContent(ctx context.Context, req *dlppb.DeidentifyContentRequest, opts ...gax.CallOption) (*dlppb.DeidentifyContentResponse, error)
	RedactImage(ctx context.Context, req *dlppb.RedactImageRequest, opts ...gax.CallOption) (*dlppb.RedactImageResponse, error)
	CreateDlpJob(ctx context.Context, req *dlppb.CreateDlpJobRequest, opts ...gax.CallOption) (*dlppb.DlpJob, error)
	JobGetter
}

// JobGetter fetches the authoritative state of a DLP job.
type JobGetter interface {
	GetDlpJob(ctx context.Context, req *dlppb.GetDlpJobRequest, opts ...gax.CallOption) (*dlppb.DlpJob, error)
}

// Service runs DLP samples against a client.
type Service struct {
	client  Client
	metrics *observability.Metrics
}

// NewService creates a new DLP sample service. metrics may be nil.
func NewService(client Client, metrics *observability.Metrics) *Service {
	return &Service{
		client:  client,
		metrics: metrics,
	}
}

// ParentName returns the global location parent used by DLP requests.
func ParentName(projectID string) string {
	return fmt.Sprintf("projects/%s/locations/global", projectID)
}

// observe records an API call when metrics are enabled.
func observe(ctx context.Context, metrics *observability.Metrics, method string, start time.Time, err error) {
	if metrics != nil {
		metrics.RecordAPICall(ctx, serviceName, method, err == nil, time.Since(start))
	}
}
