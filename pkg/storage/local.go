package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type localStorage struct {
	dir     string
	urlBase string
}

// NewLocal stores files in dir, creating it if needed, and serves them under
// urlBase.
func NewLocal(dir string, urlBase string) (IStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create result folder: %w", err)
	}

	return &localStorage{
		dir:     dir,
		urlBase: strings.TrimSuffix(urlBase, "/"),
	}, nil
}

func (s *localStorage) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	p, err := s.pathFor(name)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}

	return s.urlBase + "/" + name, nil
}

func (s *localStorage) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	p, err := s.pathFor(name)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return f, contentType, nil
}

func (s *localStorage) URL(ctx context.Context, name string) (string, error) {
	return "", nil
}

func (s *localStorage) pathFor(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}
