package main

import (
	"context"

	"cloudsamples/internal/dlp"
	"cloudsamples/internal/kms"
	"cloudsamples/internal/stitcher"

	dlpapi "cloud.google.com/go/dlp/apiv2"
	kmsapi "cloud.google.com/go/kms/apiv1"
	pubsubapi "cloud.google.com/go/pubsub/apiv1"
	"google.golang.org/api/option"
)

type dlpClient interface {
	dlp.Client
	Close() error
}

type subscriberClient interface {
	dlp.Subscriber
	Close() error
}

type kmsClient interface {
	kms.Client
	Close() error
}

type stitcherClient interface {
	stitcher.Client
	Close() error
}

// clientFactory dials the remote APIs. Tests replace it with fakes.
type clientFactory struct {
	DLP        func(ctx context.Context, opts ...option.ClientOption) (dlpClient, error)
	Subscriber func(ctx context.Context, opts ...option.ClientOption) (subscriberClient, error)
	KMS        func(ctx context.Context, opts ...option.ClientOption) (kmsClient, error)
	Stitcher   func(ctx context.Context, opts ...option.ClientOption) (stitcherClient, error)
}

func gcpClients() clientFactory {
	return clientFactory{
		DLP: func(ctx context.Context, opts ...option.ClientOption) (dlpClient, error) {
			c, err := dlpapi.NewClient(ctx, opts...)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Subscriber: func(ctx context.Context, opts ...option.ClientOption) (subscriberClient, error) {
			c, err := pubsubapi.NewSubscriberClient(ctx, opts...)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		KMS: func(ctx context.Context, opts ...option.ClientOption) (kmsClient, error) {
			c, err := kmsapi.NewKeyManagementClient(ctx, opts...)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Stitcher: func(ctx context.Context, opts ...option.ClientOption) (stitcherClient, error) {
			c, err := stitcher.NewGCPClient(ctx, opts...)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}
