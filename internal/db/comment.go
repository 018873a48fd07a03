package db

import "gorm.io/gorm"

// Comment 定义访客评论，随文章一起删除
type Comment struct {
	gorm.Model
	PostID       uint `gorm:"index;not null"`
	VisitorName  string
	VisitorEmail string
	Content      string `gorm:"type:text"`
	IsApproved   bool   `gorm:"default:false"`
}
