package service

import (
	"errors"
	"strings"

	"github.com/postdesk/internal/db"
	"gorm.io/gorm"
)

var (
	ErrTagExists   = errors.New("tag already exists")
	ErrTagInUse    = errors.New("tag is associated with posts")
	ErrTagNotFound = errors.New("tag not found")
)

// maxTagCreateAttempts bounds the lookup/create loop when concurrent
// requests race on the same tag name or slug.
const maxTagCreateAttempts = 3

// TagService wraps tag related operations.
type TagService struct {
	db              *gorm.DB
	caseInsensitive bool
}

// HashtagResult is the content with hashtags styled plus the tags they map to.
type HashtagResult struct {
	HTML   string
	TagIDs []uint
	Tags   []db.Tag
}

// NewTagService creates a TagService instance. With caseInsensitive set,
// #Go and #go resolve to the same tag (the first spelling seen wins).
func NewTagService(gdb *gorm.DB, caseInsensitive bool) *TagService {
	return &TagService{db: gdb, caseInsensitive: caseInsensitive}
}

// List returns tags with their post usage counts ordered by name.
func (s *TagService) List() ([]db.Tag, error) {
	var tags []db.Tag
	if err := s.db.
		Model(&db.Tag{}).
		Select("tags.*, COUNT(post_tags.post_id) AS post_count").
		Joins("LEFT JOIN post_tags ON post_tags.tag_id = tags.id").
		Group("tags.id").
		Order("tags.name asc").
		Order("tags.id asc").
		Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// Create inserts a new tag with unique name.
func (s *TagService) Create(name string) (*db.Tag, error) {
	name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "#"))
	if name == "" {
		return nil, missingFields("name")
	}

	if _, err := s.findByName(s.db, name); err == nil {
		return nil, ErrTagExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	slug, err := UniqueSlug(s.db, name, SlugKindTag)
	if err != nil {
		return nil, err
	}

	tag := db.Tag{Name: name, Slug: slug}
	if err := s.db.Create(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrTagExists
		}
		return nil, err
	}
	return &tag, nil
}

// Delete removes a tag if it is not associated with posts.
func (s *TagService) Delete(id uint) error {
	var tag db.Tag
	if err := s.db.First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTagNotFound
		}
		return err
	}

	var count int64
	if err := s.db.Model(&db.PostTag{}).Where("tag_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrTagInUse
	}

	return s.db.Unscoped().Delete(&tag).Error
}

// MaterializeHashtags finds every #token in content, upserts one Tag per
// distinct token and wraps the occurrences in styled spans. It writes tags
// only; linking them to a post is left to the caller.
func (s *TagService) MaterializeHashtags(content string) (*HashtagResult, error) {
	result := &HashtagResult{HTML: content, TagIDs: []uint{}, Tags: []db.Tag{}}
	if strings.TrimSpace(content) == "" {
		return result, nil
	}

	root, err := parseFragment(content)
	if err != nil {
		return nil, err
	}

	recognized := make(map[string]struct{})
	for _, token := range collectHashtags(root, s.caseInsensitive) {
		tag, err := s.findOrCreate(token)
		if err != nil {
			return nil, err
		}
		recognized[hashtagKey(token, s.caseInsensitive)] = struct{}{}
		result.Tags = append(result.Tags, *tag)
		result.TagIDs = append(result.TagIDs, tag.ID)
	}

	styleHashtags(root, recognized, s.caseInsensitive)
	if result.HTML, err = renderFragment(root); err != nil {
		return nil, err
	}
	return result, nil
}

// findOrCreate looks the tag up by name before creating it. When the insert
// loses a race against the unique index the lookup is retried.
func (s *TagService) findOrCreate(name string) (*db.Tag, error) {
	var lastErr error
	for attempt := 0; attempt < maxTagCreateAttempts; attempt++ {
		tag, err := s.findByName(s.db, name)
		if err == nil {
			return tag, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		slug, err := UniqueSlug(s.db, name, SlugKindTag)
		if err != nil {
			return nil, err
		}

		created := db.Tag{Name: name, Slug: slug}
		if err := s.db.Create(&created).Error; err != nil {
			lastErr = err
			continue
		}
		return &created, nil
	}
	return nil, lastErr
}

func (s *TagService) findByName(gdb *gorm.DB, name string) (*db.Tag, error) {
	query := gdb.Model(&db.Tag{})
	if s.caseInsensitive {
		query = query.Where("LOWER(name) = LOWER(?)", name)
	} else {
		query = query.Where("name = ?", name)
	}

	var tag db.Tag
	if err := query.Order("id asc").First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}
