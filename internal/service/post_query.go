package service

import (
	"strings"

	"github.com/postdesk/internal/db"
	"gorm.io/gorm"
)

const (
	defaultPostPageSize = 10
	maxPostPageSize     = 100
)

// PostFilter narrows List. Empty fields do not filter.
type PostFilter struct {
	CategorySlug string
	TagSlug      string
	Published    *bool
	Limit        int
	Offset       int
}

// PostPage is one window of posts plus the total matching count.
type PostPage struct {
	Posts  []db.Post
	Total  int64
	Limit  int
	Offset int
}

func normalizeWindow(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPostPageSize
	}
	if limit > maxPostPageSize {
		limit = maxPostPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns posts newest first, optionally filtered by category slug,
// tag slug or published flag.
func (s *PostService) List(filter PostFilter) (*PostPage, error) {
	scope := func(tx *gorm.DB) *gorm.DB {
		if slug := strings.TrimSpace(filter.CategorySlug); slug != "" {
			tx = tx.Joins("JOIN categories ON categories.id = posts.category_id").
				Where("categories.slug = ?", slug)
		}
		if slug := strings.TrimSpace(filter.TagSlug); slug != "" {
			tagged := s.db.Table("post_tags").
				Select("post_tags.post_id").
				Joins("JOIN tags ON tags.id = post_tags.tag_id").
				Where("tags.slug = ?", slug)
			tx = tx.Where("posts.id IN (?)", tagged)
		}
		if filter.Published != nil {
			tx = tx.Where("posts.published = ?", *filter.Published)
		}
		return tx
	}
	return s.page(scope, filter.Limit, filter.Offset)
}

// Search matches the query against title, content and the accent-stripped
// title, case-insensitively. "cafe" finds a post titled "Café".
func (s *PostService) Search(query string, limit, offset int) (*PostPage, error) {
	term := RemoveAccents(query)
	if term == "" {
		return nil, missingFields("q")
	}

	raw := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	folded := "%" + term + "%"
	scope := func(tx *gorm.DB) *gorm.DB {
		return tx.Where(
			"LOWER(posts.title) LIKE ? OR LOWER(posts.content) LIKE ? OR LOWER(posts.content) LIKE ? OR posts.searchable_title LIKE ?",
			raw, raw, folded, folded,
		)
	}
	return s.page(scope, limit, offset)
}

func (s *PostService) page(scope func(*gorm.DB) *gorm.DB, limit, offset int) (*PostPage, error) {
	limit, offset = normalizeWindow(limit, offset)

	var total int64
	if err := s.db.Model(&db.Post{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, err
	}

	posts := []db.Post{}
	if total > 0 {
		if err := s.db.Model(&db.Post{}).
			Scopes(scope).
			Preload("Tags", func(tx *gorm.DB) *gorm.DB { return tx.Order("tags.name asc") }).
			Preload("Category").
			Preload("Author").
			Order("posts.created_at desc").
			Order("posts.id desc").
			Limit(limit).
			Offset(offset).
			Find(&posts).Error; err != nil {
			return nil, err
		}
	}

	return &PostPage{Posts: posts, Total: total, Limit: limit, Offset: offset}, nil
}
