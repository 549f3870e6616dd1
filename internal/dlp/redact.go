package dlp

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloudsamples/internal/apperrors"

	"cloud.google.com/go/dlp/apiv2/dlppb"
	"github.com/gabriel-vasile/mimetype"
)

// ImageRequest describes an image whose text should be redacted.
type ImageRequest struct {
	ProjectID  string
	InputPath  string
	OutputPath string
}

// ImageResult reports the written redacted image.
type ImageResult struct {
	OutputPath  string
	ContentType string
	Bytes       int
}

// RedactImageAllText redacts every piece of text found in an image and writes
// the redacted image to OutputPath.
func (s *Service) RedactImageAllText(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	if req.ProjectID == "" {
		return nil, apperrors.Validation("project", "calling project ID is required")
	}
	if req.InputPath == "" {
		req.InputPath = "./testdata/test.png"
	}
	if req.OutputPath == "" {
		req.OutputPath = "./testdata/redact_image_all_text.png"
	}

	data, err := os.ReadFile(req.InputPath)
	if err != nil {
		return nil, apperrors.Internal("dlp.readImage", err)
	}
	contentType := mimetype.Detect(data).String()

	logger := slog.With("input", req.InputPath, "contentType", contentType)

	start := time.Now()
	resp, err := s.client.RedactImage(ctx, BuildRedactAllTextRequest(ParentName(req.ProjectID), data, BytesTypeFor(contentType)))
	observe(ctx, s.metrics, "RedactImage", start, err)
	if err != nil {
		logger.Error("Redact image request failed", "error", err)
		return nil, apperrors.Remote("dlp.RedactImage", err)
	}

	redacted := resp.GetRedactedImage()
	if err := os.WriteFile(req.OutputPath, redacted, 0o644); err != nil {
		return nil, apperrors.Internal("dlp.writeImage", err)
	}

	return &ImageResult{
		OutputPath:  req.OutputPath,
		ContentType: contentType,
		Bytes:       len(redacted),
	}, nil
}

// BuildRedactAllTextRequest builds an image redaction request with text
// redaction enabled for all text.
func BuildRedactAllTextRequest(parent string, data []byte, bytesType dlppb.ByteContentItem_BytesType) *dlppb.RedactImageRequest {
	return &dlppb.RedactImageRequest{
		Parent: parent,
		ByteItem: &dlppb.ByteContentItem{
			Type: bytesType,
			Data: data,
		},
		ImageRedactionConfigs: []*dlppb.RedactImageRequest_ImageRedactionConfig{{
			Target: &dlppb.RedactImageRequest_ImageRedactionConfig_RedactAllText{
				RedactAllText: true,
			},
		}},
	}
}

// BytesTypeFor maps a MIME type to the DLP byte content type. Types the
// redaction API does not know are sent as unspecified.
func BytesTypeFor(contentType string) dlppb.ByteContentItem_BytesType {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(strings.ToLower(mediaType)) {
	case "image/jpeg":
		return dlppb.ByteContentItem_IMAGE_JPEG
	case "image/bmp", "image/x-ms-bmp":
		return dlppb.ByteContentItem_IMAGE_BMP
	case "image/png":
		return dlppb.ByteContentItem_IMAGE_PNG
	case "image/svg", "image/svg+xml":
		return dlppb.ByteContentItem_IMAGE_SVG
	default:
		return dlppb.ByteContentItem_BYTES_TYPE_UNSPECIFIED
	}
}
