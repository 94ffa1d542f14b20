package upload

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Storage persists image bytes and returns their public URL.
type Storage interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// LocalStorage writes files below Dir and serves them under BaseURL.
type LocalStorage struct {
	Dir     string
	BaseURL string
}

// NewLocalStorage creates the target directory if needed.
func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("upload: empty storage dir")
	}
	if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
		return nil, fmt.Errorf("upload: create storage dir: %w", errMkdir)
	}
	return &LocalStorage{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes data atomically to Dir/key.
func (s *LocalStorage) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if errCtx := ctx.Err(); errCtx != nil {
		return "", errCtx
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("upload: invalid key %q", key)
	}
	target := filepath.Join(s.Dir, filepath.FromSlash(clean))
	if errMkdir := os.MkdirAll(filepath.Dir(target), 0o755); errMkdir != nil {
		return "", fmt.Errorf("upload: create dir: %w", errMkdir)
	}

	tmp, errTemp := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if errTemp != nil {
		return "", fmt.Errorf("upload: create temp file: %w", errTemp)
	}
	tmpName := tmp.Name()
	if _, errWrite := tmp.Write(data); errWrite != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("upload: write file: %w", errWrite)
	}
	if errClose := tmp.Close(); errClose != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("upload: close file: %w", errClose)
	}
	if errRename := os.Rename(tmpName, target); errRename != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("upload: rename file: %w", errRename)
	}
	return s.BaseURL + "/" + clean, nil
}
