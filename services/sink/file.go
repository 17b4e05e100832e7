package sink

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"sjsage522/doctorworker/internal/crawler"
	"sjsage522/doctorworker/pkg/errors"
)

// FileSink appends one JSON document per line
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewFileSink opens path for appending, creating it if needed
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.NewSink("file", "failed to open "+path, err)
	}
	return &FileSink{file: file, path: path}, nil
}

// Push writes record as a single line
func (s *FileSink) Push(ctx context.Context, record crawler.NormalizedRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return errors.NewSink("file", "failed to encode record", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(line); err != nil {
		return errors.NewSink("file", "failed to write "+s.path, err)
	}
	return nil
}

// Close flushes and closes the file
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return errors.NewSink("file", "failed to sync "+s.path, err)
	}
	return s.file.Close()
}
