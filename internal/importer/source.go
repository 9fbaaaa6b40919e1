package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

const blobScheme = "s3://"

// Source opens the dataset for one import run.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Name() string
}

// FileSource reads a local file.
type FileSource struct {
	Path string
}

func (s FileSource) Open(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("importer: open %s: %w", s.Path, err)
	}
	return f, nil
}

func (s FileSource) Name() string { return s.Path }

// BlobSource reads an object from the configured bucket. A key ending in
// "/" is a prefix: each run reads the most recently modified object under
// it.
type BlobSource struct {
	Blobs domain.BlobReader
	Key   string
}

func (s BlobSource) Open(ctx context.Context) (io.ReadCloser, error) {
	key := s.Key
	if key == "" || strings.HasSuffix(key, "/") {
		latest, err := s.latest(ctx)
		if err != nil {
			return nil, err
		}
		key = latest
	}
	rc, err := s.Blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("importer: get %s%s: %w", blobScheme, key, err)
	}
	return rc, nil
}

func (s BlobSource) latest(ctx context.Context) (string, error) {
	infos, err := s.Blobs.List(ctx, s.Key)
	if err != nil {
		return "", fmt.Errorf("importer: list %s: %w", s.Name(), err)
	}
	var newest domain.BlobInfo
	for _, info := range infos {
		if strings.HasSuffix(info.Path, "/") {
			continue
		}
		if newest.Path == "" || info.LastModified.After(newest.LastModified) {
			newest = info
		}
	}
	if newest.Path == "" {
		return "", fmt.Errorf("importer: %s: %w", s.Name(), domain.ErrNotFound)
	}
	return newest.Path, nil
}

func (s BlobSource) Name() string { return blobScheme + s.Key }

// NewSource resolves a location: "s3://key" reads from blobs, anything else
// is a local path.
func NewSource(location string, blobs domain.BlobReader) (Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("importer: %w: empty location", domain.ErrUnsupportedSource)
	}
	if key, ok := strings.CutPrefix(location, blobScheme); ok {
		if blobs == nil {
			return nil, fmt.Errorf("importer: %w: %s needs object storage", domain.ErrUnsupportedSource, location)
		}
		return BlobSource{Blobs: blobs, Key: strings.TrimPrefix(key, "/")}, nil
	}
	return FileSource{Path: location}, nil
}
