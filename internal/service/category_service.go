package service

import (
	"errors"
	"strings"

	"github.com/postdesk/internal/db"
	"gorm.io/gorm"
)

// CategoryService handles category CRUD.
type CategoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a CategoryService instance.
func NewCategoryService(gdb *gorm.DB) *CategoryService {
	return &CategoryService{db: gdb}
}

// List returns all categories ordered by name.
func (s *CategoryService) List() ([]db.Category, error) {
	var categories []db.Category
	if err := s.db.Order("name asc").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// Create inserts a category with a unique slug.
func (s *CategoryService) Create(name, description string) (*db.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, missingFields("name")
	}

	var count int64
	if err := s.db.Model(&db.Category{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrCategoryExists
	}

	slug, err := UniqueSlug(s.db, name, SlugKindCategory)
	if err != nil {
		return nil, err
	}

	category := db.Category{Name: name, Slug: slug, Description: strings.TrimSpace(description)}
	if err := s.db.Create(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrCategoryExists
		}
		return nil, err
	}
	return &category, nil
}

// DefaultCategorySlug names the category that receives posts of a deleted category.
const DefaultCategorySlug = "uncategorized"

// Delete removes a category. Its posts move to the default category, which
// is created on demand. The default category itself cannot be deleted while
// posts still use it. Returns the number of reassigned posts.
func (s *CategoryService) Delete(id uint) (int64, error) {
	var reassigned int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var category db.Category
		if err := tx.First(&category, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCategoryNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&db.Post{}).Where("category_id = ?", category.ID).Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			fallback, err := ensureDefaultCategory(tx)
			if err != nil {
				return err
			}
			if fallback.ID == category.ID {
				return ErrCategoryInUse
			}
			result := tx.Model(&db.Post{}).Where("category_id = ?", category.ID).Updates(map[string]interface{}{
				"category_id": fallback.ID,
				"version":     gorm.Expr("version + 1"),
			})
			if result.Error != nil {
				return result.Error
			}
			reassigned = result.RowsAffected
		}

		return tx.Unscoped().Delete(&category).Error
	})
	if err != nil {
		return 0, err
	}
	return reassigned, nil
}

func ensureDefaultCategory(tx *gorm.DB) (*db.Category, error) {
	var category db.Category
	err := tx.Where("slug = ? OR name = ?", DefaultCategorySlug, DefaultCategorySlug).First(&category).Error
	if err == nil {
		return &category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	category = db.Category{
		Name:        DefaultCategorySlug,
		Slug:        DefaultCategorySlug,
		Description: "Posts whose category was deleted",
	}
	if err := tx.Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// Exists reports whether a category with id exists.
func (s *CategoryService) Exists(id uint) (bool, error) {
	return categoryExists(s.db, id)
}

func categoryExists(gdb *gorm.DB, id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var count int64
	if err := gdb.Model(&db.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
