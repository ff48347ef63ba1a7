package testutils

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/stretchr/testify/require"
)

// WriteFile creates name with content in a temporary directory and returns its
// absolute path. It fails the test immediately on error.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	absPath, err := filepath.Abs(filepath.Join(t.TempDir(), name))
	require.NoError(t, err, "Failed to get absolute path for temp file")
	require.NoError(t, os.WriteFile(absPath, []byte(content), 0o644), "Failed to write temp file")
	return absPath
}

// Recorder collects the results delivered to a subscriber.
type Recorder struct {
	mu      sync.Mutex
	results []*domain.Definition
}

// Record appends a result. It is meant to be passed as a subscriber callback.
func (r *Recorder) Record(def *domain.Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, def)
}

// RecordNode is Record for subscribers receiving graph nodes.
func (r *Recorder) RecordNode(node *domain.GraphNode) {
	r.Record(node.Definition)
}

// Results returns every result received so far.
func (r *Recorder) Results() []*domain.Definition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Definition(nil), r.results...)
}

// Values returns the payloads of the settled results, skipping pending ones.
// Error results contribute their *domain.Error.
func (r *Recorder) Values() []any {
	var out []any
	for _, def := range r.Results() {
		switch {
		case domain.IsPending(def):
		case domain.IsError(def):
			out = append(out, domain.ErrorOf(def))
		default:
			out = append(out, domain.ValueOf(def))
		}
	}
	return out
}

// Last returns the latest result, or nil.
func (r *Recorder) Last() *domain.Definition {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return nil
	}
	return r.results[len(r.results)-1]
}

// Len returns the number of results received.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}
