package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore writes objects below a directory served at baseURL.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates a LocalStore rooted at dir. baseURL is the public
// prefix dir is served under, e.g. "http://localhost:8080" when the router
// exposes dir at "/uploads".
func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{root: dir, baseURL: baseURL}
}

// Root is the directory objects are written to.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Put(ctx context.Context, namespace, name string, body io.Reader, size int64, contentType string) error {
	dest, err := s.path(namespace, name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	// Write to a temp file first so a failed copy never leaves a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, io.LimitReader(body, size))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if written != size {
		return fmt.Errorf("write file: short body, %d of %d bytes", written, size)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("commit file: %w", err)
	}
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, namespace, name string) error {
	dest, err := s.path(namespace, name)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *LocalStore) Address(namespace, name string) string {
	key, err := Key(namespace, name)
	if err != nil {
		return ""
	}
	return joinURL(s.baseURL, key)
}

func (s *LocalStore) path(namespace, name string) (string, error) {
	key, err := Key(namespace, name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
