package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Store persists uploaded and generated files. Put returns the public
// reference that is saved in the database; Fetch and Delete accept it back.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Fetch(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// LocalStore keeps objects under BaseDir and serves them below PublicPrefix.
// Remote http(s) references are fetched with Client.
type LocalStore struct {
	BaseDir      string
	PublicPrefix string
	Client       *http.Client
}

func NewLocalStore(baseDir, publicPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, os.ModePerm); err != nil {
		return nil, err
	}
	if publicPrefix == "" {
		publicPrefix = "/uploads"
	}
	return &LocalStore{
		BaseDir:      baseDir,
		PublicPrefix: strings.TrimRight(publicPrefix, "/"),
		Client:       &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	if key == "" || key == "." {
		return "", ErrInvalidKey
	}
	return key, nil
}

func (s *LocalStore) URL(key string) string {
	return s.PublicPrefix + "/" + key
}

// keyFor maps a reference produced by Put back to its key. ok is false for
// references that live elsewhere.
func (s *LocalStore) keyFor(ref string) (string, bool) {
	if strings.HasPrefix(ref, s.PublicPrefix+"/") {
		key, err := cleanKey(strings.TrimPrefix(ref, s.PublicPrefix+"/"))
		return key, err == nil
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return "", false
	}
	key, err := cleanKey(ref)
	return key, err == nil
}

// Put writes to a temporary file and renames it into place so readers never
// observe a partially written object.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := filepath.Join(s.BaseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), os.ModePerm); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", err
	}

	return s.URL(key), nil
}

func (s *LocalStore) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	if key, ok := s.keyFor(ref); ok {
		f, err := os.Open(filepath.Join(s.BaseDir, filepath.FromSlash(key)))
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return f, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", ref, resp.StatusCode)
	}
	return resp.Body, nil
}

// Delete ignores references outside this store and objects that are already gone.
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	key, ok := s.keyFor(ref)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.BaseDir, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ReadAll fetches ref fully into memory.
func ReadAll(ctx context.Context, store Store, ref string) ([]byte, error) {
	rc, err := store.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
