package bus

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/authloop/authserver/config"
	"google.golang.org/api/option"
)

// PubSubBus carries audit events over a Google Cloud Pub/Sub topic.
type PubSubBus struct {
	client             *pubsub.Client
	subscriptionSuffix string
}

// NewPubSubBus constructs a Pub/Sub bus from config.
func NewPubSubBus(ctx context.Context, cfg config.PubSubConfig) (*PubSubBus, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}

	return &PubSubBus{client: client, subscriptionSuffix: suffix}, nil
}

func (b *PubSubBus) Publish(ctx context.Context, body []byte, attrs map[string]string) (string, error) {
	topic, err := b.ensureTopic(ctx)
	if err != nil {
		return "", err
	}
	result := topic.Publish(ctx, &pubsub.Message{Data: body, Attributes: attrs})
	return result.Get(ctx)
}

func (b *PubSubBus) Subscribe(ctx context.Context, handler Handler) error {
	topic, err := b.ensureTopic(ctx)
	if err != nil {
		return err
	}

	sub, err := b.ensureSubscription(ctx, topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		d := Delivery{
			ID:         msg.ID,
			Body:       msg.Data,
			Attributes: msg.Attributes,
		}
		if err := handler(ctx, d); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (b *PubSubBus) Close() error {
	return b.client.Close()
}

func (b *PubSubBus) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	topic := b.client.Topic(Channel)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return b.client.CreateTopic(ctx, Channel)
	}
	return topic, nil
}

func (b *PubSubBus) ensureSubscription(ctx context.Context, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	name := Channel + b.subscriptionSuffix
	sub := b.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return b.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{Topic: topic})
	}
	return sub, nil
}
