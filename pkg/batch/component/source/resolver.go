package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
)

// FileSourceResolver resolves source names to file-backed data sources by
// extension. Resolved sources are cached per path so the executor and the
// write-back path share one instance and its file lock.
type FileSourceResolver struct {
	mu      sync.Mutex
	sources map[string]port.DataSource
}

// NewFileSourceResolver creates a resolver with an empty cache.
func NewFileSourceResolver() *FileSourceResolver {
	return &FileSourceResolver{sources: make(map[string]port.DataSource)}
}

var _ port.SourceResolver = (*FileSourceResolver)(nil)

// Resolve opens the data source at the given path.
func (r *FileSourceResolver) Resolve(ctx context.Context, name string) (port.DataSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if src, ok := r.sources[name]; ok {
		return src, nil
	}

	if _, err := os.Stat(name); err != nil {
		return nil, exception.NewBatchError("file", fmt.Sprintf("source file not found: %s", name), err, false)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		src := NewCSVSource(name)
		r.sources[name] = src
		return src, nil
	default:
		return nil, exception.NewBatchError("file",
			fmt.Sprintf("unsupported source file type: %s", filepath.Ext(name)), nil, false)
	}
}
