package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/postdesk/internal/logger"
	"github.com/postdesk/internal/storage"
	"golang.org/x/sync/errgroup"
)

// 存储中的目录约定
const (
	TempFolder           = "temp"
	EditorImagesFolder   = "editor-images"
	FeaturedImagesFolder = "featured-images"
)

const cleanupConcurrency = 8

// BlobRelocator moves and removes blobs on top of a BlobStore.
type BlobRelocator struct {
	store storage.BlobStore
}

// NewBlobRelocator creates a BlobRelocator.
func NewBlobRelocator(store storage.BlobStore) *BlobRelocator {
	return &BlobRelocator{store: store}
}

// Store exposes the underlying blob store.
func (r *BlobRelocator) Store() storage.BlobStore {
	return r.store
}

// Move copies oldKey to newKey and then deletes oldKey, returning the URL of
// newKey. A failed copy leaves oldKey untouched and returns an error. A failed
// delete after a successful copy is only logged: the new blob is valid and the
// leftover is reclaimed by the temp sweeper.
func (r *BlobRelocator) Move(ctx context.Context, oldKey, newKey string) (string, error) {
	finalURL, err := r.store.Copy(ctx, oldKey, newKey)
	if err != nil {
		return "", fmt.Errorf("%w: move %s -> %s: %v", ErrStorage, oldKey, newKey, err)
	}

	if err := r.store.Delete(ctx, oldKey); err != nil {
		logger.Get().Warn().Err(err).
			Str("key", oldKey).
			Str("moved_to", newKey).
			Msg("blob copied but source delete failed")
	}
	return finalURL, nil
}

// Delete removes a key. Missing keys are not an error.
func (r *BlobRelocator) Delete(ctx context.Context, key string) error {
	if err := r.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStorage, key, err)
	}
	return nil
}

// DeleteURL removes the blob behind a public URL. URLs the store does not
// manage are skipped.
func (r *BlobRelocator) DeleteURL(ctx context.Context, rawURL string) error {
	key, ok := r.store.KeyFromURL(rawURL)
	if !ok {
		logger.Get().Debug().Str("url", rawURL).Msg("skip delete of unmanaged url")
		return nil
	}
	return r.Delete(ctx, key)
}

// DeleteURLs removes every URL concurrently. Each failure is logged and does
// not stop the others; the number of failures is returned.
func (r *BlobRelocator) DeleteURLs(ctx context.Context, urls []string) int {
	return r.settleAll(ctx, urls, r.DeleteURL)
}

// DeleteKeys is DeleteURLs for raw keys.
func (r *BlobRelocator) DeleteKeys(ctx context.Context, keys []string) int {
	return r.settleAll(ctx, keys, r.Delete)
}

// DeletePrefix lists every blob under prefix and removes them all. Listing
// errors are returned; individual delete failures are logged and counted.
func (r *BlobRelocator) DeletePrefix(ctx context.Context, prefix string) (deleted int, err error) {
	if strings.TrimSpace(prefix) == "" || !strings.HasSuffix(prefix, "/") {
		return 0, fmt.Errorf("%w: refusing to delete prefix %q", ErrStorage, prefix)
	}

	objects, err := r.store.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("%w: list %s: %v", ErrStorage, prefix, err)
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}
	failed := r.DeleteKeys(ctx, keys)
	return len(keys) - failed, nil
}

func (r *BlobRelocator) settleAll(ctx context.Context, items []string, fn func(context.Context, string) error) int {
	if len(items) == 0 {
		return 0
	}

	var g errgroup.Group
	g.SetLimit(cleanupConcurrency)

	errs := make([]error, len(items))
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			// 不返回错误，保证一个失败不会影响其他删除
			errs[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			logger.Get().Warn().Err(err).Str("blob", items[i]).Msg("cleanup delete failed")
		}
	}
	return failed
}

func editorImagesPrefix(slug string) string {
	return EditorImagesFolder + "/" + slug + "/"
}
