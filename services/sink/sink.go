package sink

import (
	"context"
	stderrors "errors"

	"sjsage522/doctorworker/internal/crawler"
)

// Sink is a crawler.Sink that holds resources
type Sink interface {
	crawler.Sink
	Close() error
}

// MultiSink pushes every record to each sink in order and stops at the
// first failure
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks; nil entries are ignored
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of configured sinks
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// Push implements crawler.Sink
func (m *MultiSink) Push(ctx context.Context, record crawler.NormalizedRecord) error {
	for _, s := range m.sinks {
		if err := s.Push(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
