package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	RoleAdmin  = "ADMIN"
	RoleAuthor = "AUTHOR"
)

// User 定义了用户模型
type User struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;size:191;not null"`
	Password string `gorm:"not null" json:"-"`
	Name     string
	Role     string `gorm:"not null;default:AUTHOR"`
	IsActive bool   `gorm:"not null;default:true"`
}

// EnsureUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的用户。
// 返回值 created 表示本次是否新建了账号。
func EnsureUser(gdb *gorm.DB, username, password, role string) (bool, error) {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return false, nil
	}

	if gdb == nil {
		return false, errors.New("database not initialized")
	}

	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		role = RoleAdmin
	}

	var existing User
	if err := gdb.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return false, err
		}

		user := User{Username: trimmedUser, Password: string(hashed), Name: trimmedUser, Role: role, IsActive: true}
		if err := gdb.Create(&user).Error; err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}
