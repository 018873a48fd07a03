package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/postdesk/internal/db"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// SlugKind names the entity a slug must be unique among.
type SlugKind string

const (
	SlugKindPost     SlugKind = "post"
	SlugKindTag      SlugKind = "tag"
	SlugKindCategory SlugKind = "category"
)

var (
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugInvalid    = regexp.MustCompile(`[^a-z0-9-]+`)
	slugDashes     = regexp.MustCompile(`-{2,}`)
)

// RemoveAccents strips diacritics and lowercases text. It backs the
// searchable title column.
func RemoveAccents(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		stripped = text
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}

// Slugify turns text into a lowercase [a-z0-9-] identifier.
func Slugify(text string) string {
	if text == "" {
		return ""
	}
	s := RemoveAccents(text)
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func slugModel(kind SlugKind) (interface{}, error) {
	switch kind {
	case SlugKindPost:
		return &db.Post{}, nil
	case SlugKindTag:
		return &db.Tag{}, nil
	case SlugKindCategory:
		return &db.Category{}, nil
	default:
		return nil, fmt.Errorf("unsupported slug kind %q", kind)
	}
}

// UniqueSlug computes the slug for name and appends -1, -2, ... until no
// entity of kind uses it. Soft-deleted rows count as taken since the unique
// index still covers them.
//
// The probe is best-effort under concurrency; the unique index on slug is
// the final arbiter and callers surface its violation as a conflict.
func UniqueSlug(gdb *gorm.DB, name string, kind SlugKind) (string, error) {
	model, err := slugModel(kind)
	if err != nil {
		return "", err
	}

	base := Slugify(name)
	if base == "" {
		// 纯中文等无法转写的名字回退到实体类型
		base = string(kind)
	}

	candidate := base
	for counter := 1; ; counter++ {
		var count int64
		if err := gdb.Unscoped().Model(model).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}
