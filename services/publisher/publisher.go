package publisher

import "context"

// Publisher represents a service for publishing stored purchases
type Publisher interface {
	// Publish publishes a message under the given field key
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// Noop discards everything; used when no Redis address is configured
type Noop struct{}

// Publish implements Publisher
func (Noop) Publish(context.Context, string, []byte) error { return nil }

// TrimStreams implements Publisher
func (Noop) TrimStreams(context.Context) error { return nil }

// Close implements Publisher
func (Noop) Close() error { return nil }
