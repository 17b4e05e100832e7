package sink

import (
	"context"
	"encoding/json"

	"sjsage522/doctorworker/internal/crawler"
	"sjsage522/doctorworker/pkg/errors"
	"sjsage522/doctorworker/services/publisher"
)

// PublisherSink publishes each record as JSON to the output streams
type PublisherSink struct {
	publisher publisher.Publisher
}

// NewPublisherSink wraps a publisher
func NewPublisherSink(p publisher.Publisher) *PublisherSink {
	return &PublisherSink{publisher: p}
}

// Push publishes record keyed by its identity
func (s *PublisherSink) Push(ctx context.Context, record crawler.NormalizedRecord) error {
	message, err := json.Marshal(record)
	if err != nil {
		return errors.NewSink("publisher", "failed to encode record", err)
	}
	if err := s.publisher.Publish(ctx, record.Identity(), message); err != nil {
		return errors.NewSink("publisher", "failed to publish "+record.Identity(), err)
	}
	return nil
}

// Close closes the underlying publisher
func (s *PublisherSink) Close() error {
	return s.publisher.Close()
}
