// Package kms implements the Cloud KMS samples.
package kms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloudsamples/internal/apperrors"
	"cloudsamples/internal/observability"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const serviceName = "kms"

// Rotation schedule applied by UpdateKeyAddRotation.
const (
	RotationPeriod     = 30 * 24 * time.Hour
	FirstRotationDelay = 24 * time.Hour
)

// Bounds of a GenerateRandomBytes request.
const (
	MinRandomBytes = 8
	MaxRandomBytes = 1024
)

// Client is the subset of the KMS API used by the samples.
// *kms.KeyManagementClient from cloud.google.com/go/kms/apiv1 satisfies it.
type Client interface {
	UpdateCryptoKey(ctx context.Context, req *kmspb.UpdateCryptoKeyRequest, opts ...gax.CallOption) (*kmspb.CryptoKey, error)
	GenerateRandomBytes(ctx context.Context, req *kmspb.GenerateRandomBytesRequest, opts ...gax.CallOption) (*kmspb.GenerateRandomBytesResponse, error)
}

// KeyRef identifies a crypto key.
type KeyRef struct {
	ProjectID string
	Location  string
	KeyRing   string
	Key       string
}

// Name returns the crypto key resource name.
func (k KeyRef) Name() string {
	return CryptoKeyName(k.ProjectID, k.Location, k.KeyRing, k.Key)
}

func (k KeyRef) validate() error {
	switch {
	case k.ProjectID == "":
		return apperrors.Validation("project", "project ID is required")
	case k.Location == "":
		return apperrors.Validation("location", "location is required")
	case k.KeyRing == "":
		return apperrors.Validation("keyRing", "key ring is required")
	case k.Key == "":
		return apperrors.Validation("key", "key is required")
	}
	return nil
}

// Service runs KMS samples against a client.
type Service struct {
	client  Client
	metrics *observability.Metrics
}

// NewService creates a new KMS sample service. metrics may be nil.
func NewService(client Client, metrics *observability.Metrics) *Service {
	return &Service{
		client:  client,
		metrics: metrics,
	}
}

// UpdateKeyAddRotation gives the key a 30 day rotation period with the first
// rotation one day from now. Only the rotation fields are updated.
func (s *Service) UpdateKeyAddRotation(ctx context.Context, ref KeyRef) (*kmspb.CryptoKey, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	key, err := s.client.UpdateCryptoKey(ctx, BuildAddRotationRequest(ref.Name(), start))
	s.observe(ctx, "UpdateCryptoKey", start, err)
	if err != nil {
		return nil, apperrors.Remote("kms.UpdateCryptoKey", err)
	}

	slog.Info("Crypto key rotation updated",
		"key", key.GetName(),
		"nextRotation", key.GetNextRotationTime().AsTime(),
	)
	return key, nil
}

// BuildAddRotationRequest builds the update request for key with the first
// rotation scheduled relative to now.
func BuildAddRotationRequest(key string, now time.Time) *kmspb.UpdateCryptoKeyRequest {
	return &kmspb.UpdateCryptoKeyRequest{
		CryptoKey: &kmspb.CryptoKey{
			Name: key,
			RotationSchedule: &kmspb.CryptoKey_RotationPeriod{
				RotationPeriod: durationpb.New(RotationPeriod),
			},
			NextRotationTime: timestamppb.New(now.Add(FirstRotationDelay)),
		},
		UpdateMask: &fieldmaskpb.FieldMask{
			Paths: []string{"rotation_period", "next_rotation_time"},
		},
	}
}

// GenerateRandomBytes returns n bytes of HSM-backed randomness from location.
func (s *Service) GenerateRandomBytes(ctx context.Context, projectID, location string, n int) ([]byte, error) {
	switch {
	case projectID == "":
		return nil, apperrors.Validation("project", "project ID is required")
	case location == "":
		return nil, apperrors.Validation("location", "location is required")
	case n < MinRandomBytes || n > MaxRandomBytes:
		return nil, apperrors.Validation("numBytes",
			fmt.Sprintf("must be between %d and %d, got %d", MinRandomBytes, MaxRandomBytes, n))
	}

	start := time.Now()
	resp, err := s.client.GenerateRandomBytes(ctx, &kmspb.GenerateRandomBytesRequest{
		Location:        LocationName(projectID, location),
		LengthBytes:     int32(n),
		ProtectionLevel: kmspb.ProtectionLevel_HSM,
	})
	s.observe(ctx, "GenerateRandomBytes", start, err)
	if err != nil {
		return nil, apperrors.Remote("kms.GenerateRandomBytes", err)
	}

	slog.Debug("Random bytes generated", "location", location, "length", len(resp.GetData()))
	return resp.GetData(), nil
}

func (s *Service) observe(ctx context.Context, method string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordAPICall(ctx, serviceName, method, err == nil, time.Since(start))
	}
}

// LocationName returns the KMS location resource name.
func LocationName(projectID, location string) string {
	return fmt.Sprintf("projects/%s/locations/%s", projectID, location)
}

// CryptoKeyName returns the crypto key resource name.
func CryptoKeyName(projectID, location, keyRing, key string) string {
	return fmt.Sprintf("projects/%s/locations/%s/keyRings/%s/cryptoKeys/%s", projectID, location, keyRing, key)
}
