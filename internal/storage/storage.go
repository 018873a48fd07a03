package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// Object describes a stored blob returned by List.
type Object struct {
	Key        string
	URL        string
	Size       int64
	UploadedAt time.Time
}

// BlobStore is the storage contract consumed by the content pipeline.
// Delete must be idempotent: removing a missing key is not an error.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Copy(ctx context.Context, srcKey, dstKey string) (string, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	URL(key string) string
	// KeyFromURL resolves a public URL back to a key. ok is false for URLs
	// this store does not manage (external images, other buckets).
	KeyFromURL(rawURL string) (key string, ok bool)
}

// CleanKey normalizes a key and rejects traversal or absolute forms.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", ErrInvalidKey
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// keyFromPublicURL strips base (a URL or path prefix) from rawURL, ignoring
// any query string or fragment.
func keyFromPublicURL(base, rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if base == "" || rawURL == "" {
		return "", false
	}
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}

	rest := strings.TrimPrefix(rawURL, prefix)
	if idx := strings.IndexAny(rest, "?#"); idx >= 0 {
		rest = rest[:idx]
	}
	if unescaped, err := url.PathUnescape(rest); err == nil {
		rest = unescaped
	}

	key, err := CleanKey(rest)
	if err != nil {
		return "", false
	}
	return key, true
}

func joinURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
