// Package stitcher implements the Video Stitcher samples.
package stitcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloudsamples/internal/apperrors"
	"cloudsamples/internal/observability"

	"cloud.google.com/go/video/stitcher/apiv1/stitcherpb"
	"github.com/google/uuid"
)

const serviceName = "stitcher"

// Client is the subset of the Video Stitcher API used by the samples.
// Both calls block until the underlying long-running operation completes.
type Client interface {
	CreateLiveConfig(ctx context.Context, req *stitcherpb.CreateLiveConfigRequest) (*stitcherpb.LiveConfig, error)
	DeleteCdnKey(ctx context.Context, req *stitcherpb.DeleteCdnKeyRequest) error
}

// LiveConfigRequest describes a live config to create.
type LiveConfigRequest struct {
	ProjectID    string
	Location     string
	LiveConfigID string
	SourceURI    string // live stream manifest
	AdTagURI     string
	SlateID      string // bare slate ID or full slate resource name
}

func (r LiveConfigRequest) validate() error {
	switch {
	case r.ProjectID == "":
		return apperrors.Validation("project", "project ID is required")
	case r.Location == "":
		return apperrors.Validation("location", "location is required")
	case r.LiveConfigID == "":
		return apperrors.Validation("liveConfigId", "live config ID is required")
	case r.SourceURI == "":
		return apperrors.Validation("sourceUri", "source URI is required")
	case r.AdTagURI == "":
		return apperrors.Validation("adTagUri", "ad tag URI is required")
	case r.SlateID == "":
		return apperrors.Validation("slateId", "slate ID is required")
	}
	return nil
}

// Service runs Video Stitcher samples against a client.
type Service struct {
	client  Client
	metrics *observability.Metrics
}

// NewService creates a new Video Stitcher sample service. metrics may be nil.
func NewService(client Client, metrics *observability.Metrics) *Service {
	return &Service{
		client:  client,
		metrics: metrics,
	}
}

// CreateLiveConfig creates a live config with server-side ad tracking that
// cuts the current content when an ad break starts.
func (s *Service) CreateLiveConfig(ctx context.Context, req LiveConfigRequest) (*stitcherpb.LiveConfig, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	createReq := BuildCreateLiveConfigRequest(req, uuid.NewString())
	logger := slog.With("liveConfigId", req.LiveConfigID, "requestId", createReq.GetRequestId())
	logger.Debug("Creating live config", "slate", createReq.GetLiveConfig().GetDefaultSlate())

	start := time.Now()
	cfg, err := s.client.CreateLiveConfig(ctx, createReq)
	s.observe(ctx, "CreateLiveConfig", start, err)
	if err != nil {
		logger.Error("Create live config failed", "error", err)
		return nil, apperrors.Remote("stitcher.CreateLiveConfig", err)
	}

	logger.Info("Live config created", "name", cfg.GetName())
	return cfg, nil
}

// BuildCreateLiveConfigRequest builds the create request. requestID makes
// retries of the same creation idempotent.
func BuildCreateLiveConfigRequest(req LiveConfigRequest, requestID string) *stitcherpb.CreateLiveConfigRequest {
	return &stitcherpb.CreateLiveConfigRequest{
		Parent:       LocationName(req.ProjectID, req.Location),
		LiveConfigId: req.LiveConfigID,
		RequestId:    requestID,
		LiveConfig: &stitcherpb.LiveConfig{
			SourceUri:       req.SourceURI,
			AdTagUri:        req.AdTagURI,
			DefaultSlate:    SlateName(req.ProjectID, req.Location, req.SlateID),
			AdTracking:      stitcherpb.AdTracking_SERVER,
			StitchingPolicy: stitcherpb.LiveConfig_CUT_CURRENT,
		},
	}
}

// DeleteCdnKey deletes a CDN key and waits for the deletion to finish.
func (s *Service) DeleteCdnKey(ctx context.Context, projectID, location, cdnKeyID string) error {
	switch {
	case projectID == "":
		return apperrors.Validation("project", "project ID is required")
	case location == "":
		return apperrors.Validation("location", "location is required")
	case cdnKeyID == "":
		return apperrors.Validation("cdnKeyId", "CDN key ID is required")
	}

	name := CdnKeyName(projectID, location, cdnKeyID)
	start := time.Now()
	err := s.client.DeleteCdnKey(ctx, &stitcherpb.DeleteCdnKeyRequest{Name: name})
	s.observe(ctx, "DeleteCdnKey", start, err)
	if err != nil {
		return apperrors.Remote("stitcher.DeleteCdnKey", err)
	}

	slog.Info("CDN key deleted", "name", name)
	return nil
}

func (s *Service) observe(ctx context.Context, method string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordAPICall(ctx, serviceName, method, err == nil, time.Since(start))
	}
}

// LocationName returns the Video Stitcher location resource name.
func LocationName(projectID, location string) string {
	return fmt.Sprintf("projects/%s/locations/%s", projectID, location)
}

// SlateName expands a bare slate ID to its resource name. Full names are
// returned unchanged.
func SlateName(projectID, location, slate string) string {
	if strings.HasPrefix(slate, "projects/") {
		return slate
	}
	return fmt.Sprintf("projects/%s/locations/%s/slates/%s", projectID, location, slate)
}

// CdnKeyName returns the CDN key resource name.
func CdnKeyName(projectID, location, cdnKeyID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/cdnKeys/%s", projectID, location, cdnKeyID)
}
