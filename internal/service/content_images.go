package service

import (
	"context"
	"path"
	"strings"

	"github.com/postdesk/internal/logger"
	"github.com/postdesk/internal/storage"
)

// ImageReconcileResult is the outcome of reconciling a post body's images.
type ImageReconcileResult struct {
	// UpdatedHTML is the content with temp image sources rewritten.
	UpdatedHTML string
	// ToDelete lists previously referenced images of this post that the new
	// content no longer uses. They are safe to delete once the new content is
	// committed.
	ToDelete []string
	// NewlyMoved lists the permanent URLs created by this run. They must be
	// deleted if the surrounding mutation fails.
	NewlyMoved []string
}

// ContentImageService relocates editor images out of temp storage and works
// out which permanent images became orphans.
type ContentImageService struct {
	blobs *BlobRelocator
}

// NewContentImageService creates a ContentImageService.
func NewContentImageService(blobs *BlobRelocator) *ContentImageService {
	return &ContentImageService{blobs: blobs}
}

func (s *ContentImageService) store() storage.BlobStore {
	return s.blobs.Store()
}

// IsTempURL reports whether rawURL points at a temp upload of this store.
func (s *ContentImageService) IsTempURL(rawURL string) bool {
	key, ok := s.store().KeyFromURL(rawURL)
	return ok && strings.HasPrefix(key, TempFolder+"/")
}

// ownedKey returns the key of rawURL when it lives in the post's image folder.
func (s *ContentImageService) ownedKey(rawURL, postSlug string) (string, bool) {
	key, ok := s.store().KeyFromURL(rawURL)
	if !ok || !strings.HasPrefix(key, editorImagesPrefix(postSlug)) {
		return "", false
	}
	return key, true
}

// Reconcile moves every temp image referenced by newHTML into
// editor-images/{postSlug}/, rewrites the sources in place and diffs the
// resulting image set against previousURLs.
//
// A failed relocation keeps the temp source so the image is not lost; the
// temp sweeper reclaims it later. Reconcile touches storage only, never the
// database, so callers can undo NewlyMoved when their transaction fails.
func (s *ContentImageService) Reconcile(ctx context.Context, newHTML, postSlug string, previousURLs []string) (*ImageReconcileResult, error) {
	result := &ImageReconcileResult{ToDelete: []string{}, NewlyMoved: []string{}}

	if strings.TrimSpace(newHTML) == "" {
		result.ToDelete = s.orphans(previousURLs, postSlug, nil)
		return result, nil
	}

	root, err := parseFragment(newHTML)
	if err != nil {
		return nil, err
	}

	// 当前内容中引用的全部 key，用于判断旧图片是否仍被使用
	keep := make(map[string]struct{})
	moved := make(map[string]string)

	for _, img := range imageNodes(root) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		src, _ := attr(img, "src")
		key, managed := s.store().KeyFromURL(src)
		if !managed || !strings.HasPrefix(key, TempFolder+"/") {
			if managed {
				keep[key] = struct{}{}
			}
			continue
		}

		// 同一张临时图片可能在正文中出现多次，只移动一次
		if finalURL, ok := moved[src]; ok {
			setAttr(img, "src", finalURL)
			continue
		}

		destKey := editorImagesPrefix(postSlug) + path.Base(key)
		finalURL, err := s.blobs.Move(ctx, key, destKey)
		if err != nil {
			logger.Get().Error().Err(err).
				Str("src", src).
				Str("post_slug", postSlug).
				Msg("failed to relocate editor image, keeping temp url")
			continue
		}

		setAttr(img, "src", finalURL)
		moved[src] = finalURL
		keep[destKey] = struct{}{}
		result.NewlyMoved = append(result.NewlyMoved, finalURL)
	}

	rendered, err := renderFragment(root)
	if err != nil {
		return nil, err
	}
	result.UpdatedHTML = rendered
	result.ToDelete = s.orphans(previousURLs, postSlug, keep)
	return result, nil
}

// orphans returns the previous URLs inside the post's own folder whose key is
// not in keep. External and foreign-post URLs are never returned.
func (s *ContentImageService) orphans(previousURLs []string, postSlug string, keep map[string]struct{}) []string {
	orphaned := []string{}
	seen := make(map[string]struct{})
	for _, prev := range previousURLs {
		key, ok := s.ownedKey(prev, postSlug)
		if !ok {
			continue
		}
		if _, used := keep[key]; used {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		orphaned = append(orphaned, prev)
	}
	return orphaned
}
