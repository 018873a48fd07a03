package db

import "gorm.io/gorm"

// Category 定义文章分类
type Category struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;size:191;not null"`
	Slug        string `gorm:"uniqueIndex;size:191;not null"`
	Description string
}
