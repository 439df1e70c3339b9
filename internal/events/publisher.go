// Package events publishes domain events (cart mutations, order
// transitions, product changes) to Kafka. Publishing is best-effort:
// callers log failures and never fail the request over them.
package events

import "context"

const (
	TopicCartEvents    = "cart_events"
	TopicOrderEvents   = "order_events"
	TopicProductEvents = "product_events"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event map[string]any) error
}

// Noop drops every event. Used in tests and when no brokers are configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, topic, key string, event map[string]any) error {
	return nil
}
