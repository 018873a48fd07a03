package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/postdesk/internal/db"
	"github.com/postdesk/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gdb.AutoMigrate(db.Models()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func newTestStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "/static/uploads")
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}
	return store
}

// flakyStore 包装真实存储，按 key 注入失败
type flakyStore struct {
	storage.BlobStore

	mu         sync.Mutex
	failCopy   map[string]bool
	failDelete map[string]bool
	failPut    bool
	deleted    []string
}

func newFlakyStore(inner storage.BlobStore) *flakyStore {
	return &flakyStore{
		BlobStore:  inner,
		failCopy:   map[string]bool{},
		failDelete: map[string]bool{},
	}
}

func (s *flakyStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	s.mu.Lock()
	fail := s.failPut
	s.mu.Unlock()
	if fail {
		return "", errors.New("put failed")
	}
	return s.BlobStore.Put(ctx, key, body, contentType)
}

func (s *flakyStore) Copy(ctx context.Context, srcKey, dstKey string) (string, error) {
	s.mu.Lock()
	fail := s.failCopy[srcKey]
	s.mu.Unlock()
	if fail {
		return "", errors.New("copy failed")
	}
	return s.BlobStore.Copy(ctx, srcKey, dstKey)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	fail := s.failDelete[key]
	if !fail {
		s.deleted = append(s.deleted, key)
	}
	s.mu.Unlock()
	if fail {
		return errors.New("delete failed")
	}
	return s.BlobStore.Delete(ctx, key)
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func pngUpload(t *testing.T, width, height int) *ImageUpload {
	t.Helper()
	return &ImageUpload{Filename: "cover.png", ContentType: "image/png", Data: pngBytes(t, width, height)}
}

// putBlob 写入一个测试文件并返回其公开 URL
func putBlob(t *testing.T, store storage.BlobStore, key string) string {
	t.Helper()
	url, err := store.Put(context.Background(), key, strings.NewReader("blob:"+key), "image/png")
	if err != nil {
		t.Fatalf("failed to put %s: %v", key, err)
	}
	return url
}

func blobExists(t *testing.T, store storage.BlobStore, key string) bool {
	t.Helper()
	objects, err := store.List(context.Background(), key)
	if err != nil {
		t.Fatalf("failed to list %s: %v", key, err)
	}
	for _, obj := range objects {
		if obj.Key == key {
			return true
		}
	}
	return false
}

func listKeys(t *testing.T, store storage.BlobStore, prefix string) []string {
	t.Helper()
	objects, err := store.List(context.Background(), prefix)
	if err != nil {
		t.Fatalf("failed to list %s: %v", prefix, err)
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}
	return keys
}

func strPtr(s string) *string {
	return &s
}
