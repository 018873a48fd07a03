package db

import "gorm.io/gorm"

// Post 定义了文章模型
type Post struct {
	gorm.Model
	Title           string `gorm:"not null"`
	SearchableTitle string `gorm:"index"`
	Slug            string `gorm:"uniqueIndex;size:191;not null"`
	Content         string `gorm:"type:text"`
	// FeaturedImage 保存封面图的公开 URL，空字符串表示没有封面
	FeaturedImage       string
	FeaturedImageWidth  int
	FeaturedImageHeight int
	Published           bool `gorm:"default:false"`
	AuthorID            uint `gorm:"index"`
	Author              User
	CategoryID          uint `gorm:"index"`
	Category            Category
	Tags                []Tag     `gorm:"many2many:post_tags;"`
	Comments            []Comment `gorm:"constraint:OnDelete:CASCADE;"`
	// Version 用于乐观锁，每次成功更新自增
	Version int `gorm:"not null;default:1"`
}

// PostTag 是文章与标签的关联表，整体替换而不是增量修改。
type PostTag struct {
	PostID uint `gorm:"primaryKey"`
	TagID  uint `gorm:"primaryKey"`
}

// TableName 与 Post.Tags 的 many2many 表名保持一致。
func (PostTag) TableName() string {
	return "post_tags"
}

// TagIDs 返回已预加载标签的 ID 列表。
func (p *Post) TagIDs() []uint {
	ids := make([]uint, 0, len(p.Tags))
	for _, tag := range p.Tags {
		ids = append(ids, tag.ID)
	}
	return ids
}
