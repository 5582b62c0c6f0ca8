// Package source opens campaign extracts from local files or HTTP URLs.
package source

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aluiziolira/campaign-insights/config"
)

// Source yields the raw CSV bytes of a campaign extract. Callers must close
// the returned reader.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// New picks a file or remote source based on cfg.Source. Fetch metrics of
// remote sources are registered on reg when it is not nil.
func New(cfg *config.Config, reg prometheus.Registerer) (Source, error) {
	if cfg.IsRemote() {
		remote, err := NewRemoteSource(cfg, NewMetrics(reg))
		if err != nil {
			return nil, err
		}
		return remote, nil
	}
	return &FileSource{Path: cfg.Source}, nil
}

// FileSource reads a CSV file from disk.
type FileSource struct {
	Path string
}

// Open opens the file for reading.
func (s *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, &OpenError{Source: s.Path, Err: err}
	}
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrNotFound{Err: err}
		} else if errors.Is(err, fs.ErrPermission) {
			err = ErrForbidden{Err: err}
		}
		return nil, &OpenError{Source: s.Path, Err: err}
	}
	return f, nil
}

func (s *FileSource) String() string {
	return s.Path
}
