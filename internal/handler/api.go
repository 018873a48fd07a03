package handler

import (
	"time"

	"github.com/postdesk/internal/auth"
	"github.com/postdesk/internal/service"
	"github.com/postdesk/internal/storage"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	posts      *service.PostService
	tags       *service.TagService
	categories *service.CategoryService
	uploads    *service.UploadService
	sweeper    *service.TempSweeper
	tokens     *auth.TokenManager
	tempTTL    time.Duration
}

// Options 控制 API 的可配置行为
type Options struct {
	Tokens             *auth.TokenManager
	TagCaseInsensitive bool
	TempImageTTL       time.Duration
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, store storage.BlobStore, opts Options) *API {
	blobs := service.NewBlobRelocator(store)
	tags := service.NewTagService(gdb, opts.TagCaseInsensitive)

	tokens := opts.Tokens
	if tokens == nil {
		tokens = auth.NewTokenManager("", 0)
	}
	ttl := opts.TempImageTTL
	if ttl <= 0 {
		ttl = service.DefaultTempImageTTL
	}

	return &API{
		db:         gdb,
		posts:      service.NewPostService(gdb, blobs, tags),
		tags:       tags,
		categories: service.NewCategoryService(gdb),
		uploads:    service.NewUploadService(store),
		sweeper:    service.NewTempSweeper(blobs),
		tokens:     tokens,
		tempTTL:    ttl,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}
