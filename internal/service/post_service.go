package service

import (
	"context"
	"errors"
	"strings"

	"github.com/postdesk/internal/auth"
	"github.com/postdesk/internal/db"
	"github.com/postdesk/internal/logger"
	"gorm.io/gorm"
)

// PostService sequences image relocation, hashtag materialization and the
// database transaction for every post mutation.
type PostService struct {
	db      *gorm.DB
	blobs   *BlobRelocator
	images  *ContentImageService
	uploads *UploadService
	tags    *TagService
}

// PostInput represents fields accepted when creating or updating a post.
// On update, empty or nil fields keep their current value.
type PostInput struct {
	Title         string
	Content       *string
	ContentFormat string
	CategoryID    uint
	Published     *bool
	FeaturedImage *ImageUpload
}

// NewPostService creates a PostService instance.
func NewPostService(gdb *gorm.DB, blobs *BlobRelocator, tags *TagService) *PostService {
	return &PostService{
		db:      gdb,
		blobs:   blobs,
		images:  NewContentImageService(blobs),
		uploads: NewUploadService(blobs.Store()),
		tags:    tags,
	}
}

// Get fetches a post by slug with author, category and tags preloaded.
func (s *PostService) Get(slug string) (*db.Post, error) {
	var post db.Post
	if err := s.db.
		Preload("Tags", func(tx *gorm.DB) *gorm.DB { return tx.Order("tags.name asc") }).
		Preload("Category").
		Preload("Author").
		Where("slug = ?", slug).
		First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// Create stores a new post. Any blob uploaded or relocated along the way is
// removed again when a later step fails.
func (s *PostService) Create(ctx context.Context, actor auth.Identity, input PostInput) (*db.Post, error) {
	if actor.UserID == 0 {
		return nil, ErrPermissionDenied
	}

	title := strings.TrimSpace(input.Title)
	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if input.Content == nil || strings.TrimSpace(*input.Content) == "" {
		missing = append(missing, "content")
	}
	if input.CategoryID == 0 {
		missing = append(missing, "categoryId")
	}
	if input.FeaturedImage == nil {
		missing = append(missing, "featuredImage")
	}
	if len(missing) > 0 {
		return nil, missingFields(missing...)
	}

	content, err := PrepareContent(*input.Content, input.ContentFormat)
	if err != nil {
		return nil, err
	}
	featuredInfo, err := InspectImage(input.FeaturedImage, "featuredImage")
	if err != nil {
		return nil, err
	}
	if err := s.requireCategory(input.CategoryID); err != nil {
		return nil, err
	}

	slug, err := UniqueSlug(s.db, title, SlugKindPost)
	if err != nil {
		return nil, err
	}

	// 封面上传失败直接终止创建
	featuredURL, err := s.uploads.UploadFeatured(ctx, slug, input.FeaturedImage, featuredInfo)
	if err != nil {
		return nil, err
	}

	post := db.Post{
		Title:               title,
		SearchableTitle:     searchableTitle(title),
		Slug:                slug,
		FeaturedImage:       featuredURL,
		FeaturedImageWidth:  featuredInfo.Width,
		FeaturedImageHeight: featuredInfo.Height,
		Published:           input.Published != nil && *input.Published,
		AuthorID:            actor.UserID,
		CategoryID:          input.CategoryID,
		Version:             1,
	}
	if err := s.db.Create(&post).Error; err != nil {
		s.discardBlobs(ctx, []string{featuredURL})
		return nil, err
	}

	if err := s.finishCreate(ctx, &post, content); err != nil {
		s.rollbackCreate(ctx, &post)
		return nil, err
	}

	return s.Get(post.Slug)
}

// finishCreate relocates the content images now that the slug is known and
// commits the final content together with the tag links.
func (s *PostService) finishCreate(ctx context.Context, post *db.Post, content string) error {
	reconciled, err := s.images.Reconcile(ctx, content, post.Slug, nil)
	if err != nil {
		return err
	}

	hashtags, err := s.tags.MaterializeHashtags(reconciled.UpdatedHTML)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := categoryExists(tx, post.CategoryID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCategoryNotFound
		}

		if err := replaceTagLinks(tx, post.ID, hashtags.TagIDs); err != nil {
			return err
		}

		res := tx.Model(&db.Post{}).
			Where("id = ?", post.ID).
			Updates(map[string]interface{}{"content": hashtags.HTML})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPostNotFound
		}
		post.Content = hashtags.HTML
		return nil
	})
}

// rollbackCreate removes the half-created post and every blob it owns.
func (s *PostService) rollbackCreate(ctx context.Context, post *db.Post) {
	ctx = context.WithoutCancel(ctx)
	log := logger.Get().With().Str("post_slug", post.Slug).Logger()

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&db.PostTag{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&db.Post{}, post.ID).Error
	}); err != nil {
		log.Error().Err(err).Msg("failed to remove post after create failure")
	}

	s.discardBlobs(ctx, []string{post.FeaturedImage})
	if _, err := s.blobs.DeletePrefix(ctx, editorImagesPrefix(post.Slug)); err != nil {
		log.Warn().Err(err).Msg("failed to clean editor images after create failure")
	}
}

// Update applies input to the post identified by slug. The slug itself never
// changes because the post's image folder is keyed by it.
func (s *PostService) Update(ctx context.Context, actor auth.Identity, slug string, input PostInput) (*db.Post, error) {
	var existing db.Post
	if err := s.db.Preload("Tags").Where("slug = ?", slug).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	if !actor.CanMutate(existing.AuthorID) {
		return nil, ErrPermissionDenied
	}

	updates := map[string]interface{}{}
	if title := strings.TrimSpace(input.Title); title != "" && title != existing.Title {
		updates["title"] = title
		updates["searchable_title"] = searchableTitle(title)
	}
	if input.Published != nil {
		updates["published"] = *input.Published
	}

	categoryChanged := input.CategoryID != 0 && input.CategoryID != existing.CategoryID
	if categoryChanged {
		if err := s.requireCategory(input.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = input.CategoryID
	}

	var content *string
	if input.Content != nil {
		prepared, err := PrepareContent(*input.Content, input.ContentFormat)
		if err != nil {
			return nil, err
		}
		content = &prepared
	}

	var featuredInfo ImageInfo
	if input.FeaturedImage != nil {
		info, err := InspectImage(input.FeaturedImage, "featuredImage")
		if err != nil {
			return nil, err
		}
		featuredInfo = info
	}

	// 以下步骤开始产生存储副作用，失败时需要撤销
	var created []string
	undo := func() { s.discardBlobs(ctx, created) }

	newFeaturedURL := ""
	if input.FeaturedImage != nil {
		url, err := s.uploads.UploadFeatured(ctx, existing.Slug, input.FeaturedImage, featuredInfo)
		if err != nil {
			return nil, err
		}
		newFeaturedURL = url
		created = append(created, url)
		updates["featured_image"] = url
		updates["featured_image_width"] = featuredInfo.Width
		updates["featured_image_height"] = featuredInfo.Height
	}

	reconciled := &ImageReconcileResult{UpdatedHTML: existing.Content, ToDelete: []string{}, NewlyMoved: []string{}}
	if content != nil {
		result, err := s.images.Reconcile(ctx, *content, existing.Slug, ExtractImageURLs(existing.Content))
		if err != nil {
			undo()
			return nil, err
		}
		reconciled = result
		created = append(created, reconciled.NewlyMoved...)
	}

	// 内容未变化时沿用已有标签，不再重新解析
	tagIDs := existing.TagIDs()
	if reconciled.UpdatedHTML != existing.Content {
		hashtags, err := s.tags.MaterializeHashtags(reconciled.UpdatedHTML)
		if err != nil {
			undo()
			return nil, err
		}
		updates["content"] = hashtags.HTML
		tagIDs = hashtags.TagIDs
	}

	updates["version"] = gorm.Expr("version + 1")
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if categoryChanged {
			ok, err := categoryExists(tx, input.CategoryID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrCategoryNotFound
			}
		}

		res := tx.Model(&db.Post{}).
			Where("id = ? AND version = ?", existing.ID, existing.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&db.Post{}).Where("id = ?", existing.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrPostNotFound
			}
			return ErrPostConflict
		}

		return replaceTagLinks(tx, existing.ID, tagIDs)
	})
	if err != nil {
		undo()
		return nil, err
	}

	// 提交之后再删除旧封面与不再引用的正文图片
	stale := append([]string{}, reconciled.ToDelete...)
	if newFeaturedURL != "" && existing.FeaturedImage != "" && existing.FeaturedImage != newFeaturedURL {
		stale = append(stale, existing.FeaturedImage)
	}
	s.discardBlobs(ctx, stale)

	return s.Get(existing.Slug)
}

// Delete removes a post, its comments, its tag links and its blobs. Blob
// deletions are best effort and never block the row deletion.
func (s *PostService) Delete(ctx context.Context, actor auth.Identity, slug string) error {
	var post db.Post
	if err := s.db.Where("slug = ?", slug).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return err
	}

	if !actor.CanMutate(post.AuthorID) {
		return ErrPermissionDenied
	}

	log := logger.Get().With().Str("post_slug", post.Slug).Logger()
	if post.FeaturedImage != "" {
		if err := s.blobs.DeleteURL(ctx, post.FeaturedImage); err != nil {
			log.Warn().Err(err).Msg("failed to delete featured image")
		}
	}
	if deleted, err := s.blobs.DeletePrefix(ctx, editorImagesPrefix(post.Slug)); err != nil {
		log.Warn().Err(err).Msg("failed to delete editor images")
	} else {
		log.Debug().Int("deleted", deleted).Msg("editor images deleted")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("post_id = ?", post.ID).Delete(&db.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&db.PostTag{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Delete(&db.Post{}, post.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPostNotFound
		}
		return nil
	})
}

func (s *PostService) requireCategory(id uint) error {
	ok, err := categoryExists(s.db, id)
	if err != nil {
		return err
	}
	if !ok {
		return &ValidationError{Message: "category does not exist", Fields: []string{"categoryId"}}
	}
	return nil
}

// discardBlobs deletes blobs created or orphaned by a mutation. Failures are
// logged by the relocator.
func (s *PostService) discardBlobs(ctx context.Context, urls []string) {
	targets := make([]string, 0, len(urls))
	for _, url := range urls {
		if url != "" {
			targets = append(targets, url)
		}
	}
	if len(targets) == 0 {
		return
	}
	if failed := s.blobs.DeleteURLs(context.WithoutCancel(ctx), targets); failed > 0 {
		logger.Get().Warn().Int("failed", failed).Int("total", len(targets)).Msg("blob cleanup incomplete")
	}
}

// replaceTagLinks rewrites the post's tag links as a whole.
func replaceTagLinks(tx *gorm.DB, postID uint, tagIDs []uint) error {
	if err := tx.Where("post_id = ?", postID).Delete(&db.PostTag{}).Error; err != nil {
		return err
	}

	seen := make(map[uint]struct{}, len(tagIDs))
	links := make([]db.PostTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		links = append(links, db.PostTag{PostID: postID, TagID: id})
	}
	if len(links) == 0 {
		return nil
	}

	var count int64
	ids := make([]uint, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.TagID)
	}
	if err := tx.Model(&db.Tag{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return err
	}
	if int(count) != len(ids) {
		return ErrTagNotFound
	}

	return tx.Create(&links).Error
}

func searchableTitle(title string) string {
	return strings.Join(strings.Fields(RemoveAccents(title)), " ")
}
