package helpers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test_error.log")

	logger := NewLogger(tmpFile)

	logger.LogError("detail", errors.New("https://www.marham.pk/doctors/lahore/dermatologist/dr-ali: timeout"))
	logger.LogError("detail", nil)

	data, err := os.ReadFile(tmpFile)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "[detail]")
	assert.Contains(t, string(data), "dr-ali: timeout")

	// Info messages go to stdout, not the file
	logger.LogInfo("Test info message: %s", "hello")
}

func TestLoggerWithoutFile(t *testing.T) {
	logger := NewLogger("")
	// Must not panic or create anything
	logger.LogError("detail", errors.New("ignored"))
}
