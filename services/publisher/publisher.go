package publisher

import "context"

// MessageField is the stream entry field holding the base64 record
const MessageField = "b64_doctor"

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message to one of the streams. Messages with the
	// same key always land on the same stream.
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}
