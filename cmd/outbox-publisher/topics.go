package main

import (
	"context"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// topicPublisher sends one message and waits for the server ack.
type topicPublisher interface {
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type publisherSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

type pubsubTopics struct {
	source publisherSource
}

func newPubSubTopics(source publisherSource) *pubsubTopics {
	return &pubsubTopics{source: source}
}

func (p *pubsubTopics) Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	publisher := p.source.Publisher(topic)
	if publisher == nil {
		return "", errTopicMissing{topic: topic}
	}
	id, err := publisher.Publish(ctx, msg).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", errTopicMissing{topic: topic}
	}
	return id, err
}

type errTopicMissing struct {
	topic string
}

func (e errTopicMissing) Error() string {
	return fmt.Sprintf("publisher not configured for topic %s", e.topic)
}
