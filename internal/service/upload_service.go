package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/postdesk/internal/storage"
	_ "golang.org/x/image/webp"
)

// MaxImageSize bounds editor and featured image uploads.
const MaxImageSize = 10 << 20

// ImageUpload is an uploaded image file held in memory.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageInfo is what DecodeConfig reveals about an upload.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

var imageExtensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
}

var imageContentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// InspectImage validates that upload is a decodable image within size limits.
func InspectImage(upload *ImageUpload, field string) (ImageInfo, error) {
	if upload == nil || len(upload.Data) == 0 {
		return ImageInfo{}, missingFields(field)
	}
	if len(upload.Data) > MaxImageSize {
		return ImageInfo{}, &ValidationError{Message: "image is too large", Fields: []string{field}}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(upload.Data))
	if err != nil {
		return ImageInfo{}, &ValidationError{Message: "file is not a supported image", Fields: []string{field}}
	}
	if _, ok := imageExtensions[format]; !ok {
		return ImageInfo{}, &ValidationError{Message: "unsupported image format", Fields: []string{field}}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, &ValidationError{Message: "image dimensions are invalid", Fields: []string{field}}
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// UploadService writes new uploads to the blob store.
type UploadService struct {
	store storage.BlobStore
}

// NewUploadService creates an UploadService.
func NewUploadService(store storage.BlobStore) *UploadService {
	return &UploadService{store: store}
}

// UploadTemp stores an editor image under temp/ until a post claims it.
func (s *UploadService) UploadTemp(ctx context.Context, upload *ImageUpload) (string, error) {
	info, err := InspectImage(upload, "file")
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/editor-temp-%s%s", TempFolder, uuid.NewString(), imageExtensions[info.Format])
	url, err := s.store.Put(ctx, key, bytes.NewReader(upload.Data), imageContentTypes[info.Format])
	if err != nil {
		return "", fmt.Errorf("%w: upload temp image: %v", ErrStorage, err)
	}
	return url, nil
}

// UploadFeatured stores a featured image for the post slug. The upload must
// already have passed InspectImage.
func (s *UploadService) UploadFeatured(ctx context.Context, slug string, upload *ImageUpload, info ImageInfo) (string, error) {
	key := fmt.Sprintf("%s/featured-%s-%s%s", FeaturedImagesFolder, slug, uuid.NewString(), imageExtensions[info.Format])
	url, err := s.store.Put(ctx, key, bytes.NewReader(upload.Data), imageContentTypes[info.Format])
	if err != nil {
		return "", fmt.Errorf("%w: upload featured image: %v", ErrStorage, err)
	}
	return url, nil
}
