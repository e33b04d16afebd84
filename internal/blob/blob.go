// Package blob stores candidate artifacts and derives the address they can
// be retrieved from.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrInvalidKey is returned for namespaces or names that would escape the
// store's root.
var ErrInvalidKey = errors.New("invalid blob key")

// Store is a write-mostly object store.
type Store interface {
	// Put writes size bytes from body under namespace/name.
	Put(ctx context.Context, namespace, name string, body io.Reader, size int64, contentType string) error
	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, namespace, name string) error
	// Address is the retrieval URL of namespace/name. It never performs I/O.
	Address(namespace, name string) string
}

// Key joins namespace and name into an object key.
func Key(namespace, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", ErrInvalidKey
	}
	ns := strings.Trim(namespace, "/")
	if ns == "" || strings.Contains(ns, "..") {
		return "", ErrInvalidKey
	}
	return path.Join(ns, name), nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
