package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Subscription is a live channel subscription. Close releases the
// underlying connection and ends Messages.
type Subscription interface {
	Messages() <-chan string
	Close() error
}

func (c *Client) Publish(ctx context.Context, channel string, message string) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Publish(ctx, channel, message).Err()
}

// Subscribe waits for the server to confirm the subscription, so anything
// published after it returns is delivered.
func (c *Client) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if c.raw == nil {
		return nil, errNotInitialized
	}
	ps := c.raw.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return newChannelSubscription(ps), nil
}

type channelSubscription struct {
	ps       *redis.PubSub
	payloads chan string
	stop     chan struct{}
	stopOnce sync.Once
}

func newChannelSubscription(ps *redis.PubSub) *channelSubscription {
	s := &channelSubscription{ps: ps, payloads: make(chan string), stop: make(chan struct{})}
	go s.forward()
	return s
}

func (s *channelSubscription) forward() {
	defer close(s.payloads)
	for msg := range s.ps.Channel() {
		select {
		case s.payloads <- msg.Payload:
		case <-s.stop:
			return
		}
	}
}

func (s *channelSubscription) Messages() <-chan string {
	return s.payloads
}

func (s *channelSubscription) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return s.ps.Close()
}
