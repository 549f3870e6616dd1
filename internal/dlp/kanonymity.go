package dlp

import (
	"context"
	"log/slog"
	"time"

	"cloudsamples/internal/apperrors"

	"cloud.google.com/go/dlp/apiv2/dlppb"
)

// KAnonymityRequest describes a k-anonymity risk analysis of a BigQuery table.
type KAnonymityRequest struct {
	CallingProjectID string   // project the job runs in and the topic lives in
	DataProjectID    string   // project owning the BigQuery table
	TopicID          string   // Pub/Sub topic the job publishes its completion to
	DatasetID        string
	TableID          string
	QuasiIDs         []string // column names forming the quasi-identifier
}

func (r KAnonymityRequest) validate() error {
	switch {
	case r.CallingProjectID == "":
		return apperrors.Validation("callingProject", "calling project ID is required")
	case r.DataProjectID == "":
		return apperrors.Validation("dataProject", "data project ID is required")
	case r.TopicID == "":
		return apperrors.Validation("topic", "topic ID is required")
	case r.DatasetID == "":
		return apperrors.Validation("dataset", "dataset ID is required")
	case r.TableID == "":
		return apperrors.Validation("table", "table ID is required")
	case len(r.QuasiIDs) == 0:
		return apperrors.Validation("quasiIds", "at least one quasi-identifier is required")
	}
	return nil
}

// SubmitKAnonymity creates the risk analysis job and returns it as submitted.
func (s *Service) SubmitKAnonymity(ctx context.Context, req KAnonymityRequest) (*dlppb.DlpJob, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	job, err := s.client.CreateDlpJob(ctx, BuildKAnonymityJobRequest(req))
	observe(ctx, s.metrics, "CreateDlpJob", start, err)
	if err != nil {
		return nil, apperrors.Remote("dlp.CreateDlpJob", err)
	}

	slog.Info("Risk analysis job created",
		"jobName", job.GetName(),
		"table", req.DataProjectID+"."+req.DatasetID+"."+req.TableID,
	)
	return job, nil
}

// KAnonymity submits the risk analysis job and waits for it with waiter.
func (s *Service) KAnonymity(ctx context.Context, req KAnonymityRequest, waiter *Waiter) (*WaitResult, error) {
	job, err := s.SubmitKAnonymity(ctx, req)
	if err != nil {
		return nil, err
	}
	return waiter.Await(ctx, job)
}

// BuildKAnonymityJobRequest builds the job request: k-anonymity over the
// quasi-identifiers of the source table, publishing to the topic when done.
func BuildKAnonymityJobRequest(req KAnonymityRequest) *dlppb.CreateDlpJobRequest {
	quasiIDs := make([]*dlppb.FieldId, 0, len(req.QuasiIDs))
	for _, id := range req.QuasiIDs {
		quasiIDs = append(quasiIDs, &dlppb.FieldId{Name: id})
	}

	return &dlppb.CreateDlpJobRequest{
		Parent: ParentName(req.CallingProjectID),
		Job: &dlppb.CreateDlpJobRequest_RiskJob{
			RiskJob: &dlppb.RiskAnalysisJobConfig{
				PrivacyMetric: &dlppb.PrivacyMetric{
					Type: &dlppb.PrivacyMetric_KAnonymityConfig_{
						KAnonymityConfig: &dlppb.PrivacyMetric_KAnonymityConfig{
							QuasiIds: quasiIDs,
						},
					},
				},
				SourceTable: &dlppb.BigQueryTable{
					ProjectId: req.DataProjectID,
					DatasetId: req.DatasetID,
					TableId:   req.TableID,
				},
				Actions: []*dlppb.Action{{
					Action: &dlppb.Action_PubSub{
						PubSub: &dlppb.Action_PublishToPubSub{
							Topic: TopicName(req.CallingProjectID, req.TopicID),
						},
					},
				}},
			},
		},
	}
}
