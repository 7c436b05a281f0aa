package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"igmanager/pkg/logger"
)

// Sink stores point-in-time captures taken when a surface failure aborts an
// operation. The returned reference travels with the error so the caller can
// find the artifact.
type Sink interface {
	Capture(failureContext string, data []byte) (ref string, err error)
}

// FileSink writes artifacts into a directory, one file per capture, keyed by
// timestamp and failure context.
type FileSink struct {
	dir    string
	logger logger.Logger
}

// NewFileSink creates the artifact directory if needed.
func NewFileSink(dir string, log logger.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &FileSink{dir: dir, logger: log}, nil
}

// Capture writes the artifact atomically and returns its reference.
func (s *FileSink) Capture(failureContext string, data []byte) (string, error) {
	name := fmt.Sprintf("%s_%s_%s.json",
		time.Now().UTC().Format("20060102T150405"),
		sanitize(failureContext),
		uuid.NewString()[:8],
	)
	path := filepath.Join(s.dir, name)

	// Write through a temp file so a crash never leaves a truncated artifact.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write diagnostic artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize diagnostic artifact: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"context": failureContext,
		"ref":     name,
	}).Warn("diagnostic artifact captured")
	return name, nil
}

func sanitize(s string) string {
	mapper := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}
	return strings.Map(mapper, s)
}

// Discard is a Sink that drops captures. For tests.
type Discard struct{}

func (Discard) Capture(string, []byte) (string, error) { return "discarded", nil }
