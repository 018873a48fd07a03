package db

import (
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:db-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gdb.AutoMigrate(Models()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

func TestEnsureUserCreatesHashedAdminOnce(t *testing.T) {
	gdb := openTestDB(t)

	created, err := EnsureUser(gdb, " root ", "s3cret", "")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if !created {
		t.Fatalf("expected user to be created")
	}

	var user User
	if err := gdb.Where("username = ?", "root").First(&user).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.Role != RoleAdmin {
		t.Fatalf("expected role %q, got %q", RoleAdmin, user.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("s3cret")); err != nil {
		t.Fatalf("password is not a bcrypt hash of the input: %v", err)
	}

	created, err = EnsureUser(gdb, "root", "other", "")
	if err != nil {
		t.Fatalf("second ensure user: %v", err)
	}
	if created {
		t.Fatalf("expected existing user to be kept")
	}
}

func TestEnsureUserSkipsBlankCredentials(t *testing.T) {
	gdb := openTestDB(t)

	created, err := EnsureUser(gdb, "", "pw", RoleAuthor)
	if err != nil || created {
		t.Fatalf("expected no-op for blank username, got created=%v err=%v", created, err)
	}

	var count int64
	gdb.Model(&User{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no users, got %d", count)
	}
}

func TestPostTagTableMatchesAssociation(t *testing.T) {
	if got := (PostTag{}).TableName(); got != "post_tags" {
		t.Fatalf("expected post_tags, got %q", got)
	}
}
