package stitcher

import (
	"context"

	stitcher "cloud.google.com/go/video/stitcher/apiv1"
	"cloud.google.com/go/video/stitcher/apiv1/stitcherpb"
	"google.golang.org/api/option"
)

// GCPClient adapts the generated Video Stitcher client to Client by waiting on
// each long-running operation.
type GCPClient struct {
	client *stitcher.VideoStitcherClient
}

// NewGCPClient dials the Video Stitcher API.
func NewGCPClient(ctx context.Context, opts ...option.ClientOption) (*GCPClient, error) {
	c, err := stitcher.NewVideoStitcherClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCPClient{client: c}, nil
}

// CreateLiveConfig starts the creation and waits for the resulting config.
func (c *GCPClient) CreateLiveConfig(ctx context.Context, req *stitcherpb.CreateLiveConfigRequest) (*stitcherpb.LiveConfig, error) {
	op, err := c.client.CreateLiveConfig(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

// DeleteCdnKey starts the deletion and waits for it to finish.
func (c *GCPClient) DeleteCdnKey(ctx context.Context, req *stitcherpb.DeleteCdnKeyRequest) error {
	op, err := c.client.DeleteCdnKey(ctx, req)
	if err != nil {
		return err
	}
	return op.Wait(ctx)
}

// Close releases the underlying connection.
func (c *GCPClient) Close() error {
	return c.client.Close()
}
