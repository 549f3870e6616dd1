package dlp

import (
	"context"
	"fmt"
	"time"

	"cloudsamples/internal/apperrors"
	"cloudsamples/internal/observability"

	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
)

// JobNameAttribute is the message attribute DLP sets on job notifications.
const JobNameAttribute = "DlpJobName"

// Notification is a pulled message that has not been acknowledged yet.
type Notification struct {
	AckID      string
	Attributes map[string]string
}

// JobName returns the DLP job the notification refers to, or "".
func (n Notification) JobName() string {
	return n.Attributes[JobNameAttribute]
}

// NotificationSource delivers job notifications.
type NotificationSource interface {
	// Pull returns zero or more pending notifications.
	Pull(ctx context.Context) ([]Notification, error)

	// Ack acknowledges a notification so it is not redelivered.
	Ack(ctx context.Context, n Notification) error
}

// Subscriber is the subset of the Pub/Sub subscriber API used for pulling.
// *pubsub.SubscriberClient from cloud.google.com/go/pubsub/apiv1 satisfies it.
type Subscriber interface {
	Pull(ctx context.Context, req *pubsubpb.PullRequest, opts ...gax.CallOption) (*pubsubpb.PullResponse, error)
	Acknowledge(ctx context.Context, req *pubsubpb.AcknowledgeRequest, opts ...gax.CallOption) error
}

// PubSubSource pulls notifications synchronously from a subscription.
type PubSubSource struct {
	client       Subscriber
	subscription string
	maxMessages  int32
	metrics      *observability.Metrics
}

// NewPubSubSource creates a source for the fully qualified subscription name.
func NewPubSubSource(client Subscriber, subscription string, maxMessages int, metrics *observability.Metrics) *PubSubSource {
	if maxMessages <= 0 {
		maxMessages = 10
	}
	return &PubSubSource{
		client:       client,
		subscription: subscription,
		maxMessages:  int32(maxMessages),
		metrics:      metrics,
	}
}

// Pull implements NotificationSource.
func (s *PubSubSource) Pull(ctx context.Context) ([]Notification, error) {
	start := time.Now()
	resp, err := s.client.Pull(ctx, &pubsubpb.PullRequest{
		Subscription: s.subscription,
		MaxMessages:  s.maxMessages,
	})
	s.observe(ctx, "Pull", start, err)
	if err != nil {
		return nil, err
	}

	notifications := make([]Notification, 0, len(resp.GetReceivedMessages()))
	for _, m := range resp.GetReceivedMessages() {
		notifications = append(notifications, Notification{
			AckID:      m.GetAckId(),
			Attributes: m.GetMessage().GetAttributes(),
		})
	}
	return notifications, nil
}

// Ack implements NotificationSource.
func (s *PubSubSource) Ack(ctx context.Context, n Notification) error {
	start := time.Now()
	err := s.client.Acknowledge(ctx, &pubsubpb.AcknowledgeRequest{
		Subscription: s.subscription,
		AckIds:       []string{n.AckID},
	})
	s.observe(ctx, "Acknowledge", start, err)
	if err != nil {
		return apperrors.Remote("pubsub.Acknowledge", err)
	}
	return nil
}

func (s *PubSubSource) observe(ctx context.Context, method string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordAPICall(ctx, "pubsub", method, err == nil, time.Since(start))
	}
}

// TopicName returns the fully qualified Pub/Sub topic name.
func TopicName(projectID, topicID string) string {
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
}

// SubscriptionName returns the fully qualified Pub/Sub subscription name.
func SubscriptionName(projectID, subscriptionID string) string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subscriptionID)
}
