package db

import "gorm.io/gorm"

// Tag 定义了标签模型
type Tag struct {
	gorm.Model
	Name      string `gorm:"uniqueIndex;size:191;not null"`
	Slug      string `gorm:"uniqueIndex;size:191;not null"`
	Posts     []Post `gorm:"many2many:post_tags;" json:"-"`
	PostCount int64  `gorm:"->;-:migration" json:"postCount"`
}
