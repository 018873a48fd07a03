package service

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestInspectImage(t *testing.T) {
	info, err := InspectImage(pngUpload(t, 4, 3), "featuredImage")
	if err != nil {
		t.Fatalf("inspect png: %v", err)
	}
	if info.Format != "png" || info.Width != 4 || info.Height != 3 {
		t.Fatalf("unexpected info %+v", info)
	}

	cases := map[string]*ImageUpload{
		"nil":       nil,
		"empty":     {Filename: "a.png"},
		"not png":   {Filename: "a.png", Data: []byte("definitely not an image")},
		"too large": {Filename: "big.png", Data: make([]byte, MaxImageSize+1)},
	}
	for name, upload := range cases {
		if _, err := InspectImage(upload, "featuredImage"); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestUploadServiceKeys(t *testing.T) {
	store := newTestStore(t)
	svc := NewUploadService(store)
	ctx := context.Background()

	tempURL, err := svc.UploadTemp(ctx, pngUpload(t, 2, 2))
	if err != nil {
		t.Fatalf("upload temp: %v", err)
	}
	if !strings.HasPrefix(tempURL, "/static/uploads/temp/editor-temp-") || !strings.HasSuffix(tempURL, ".png") {
		t.Fatalf("unexpected temp url %s", tempURL)
	}

	upload := pngUpload(t, 8, 6)
	info, err := InspectImage(upload, "featuredImage")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	featuredURL, err := svc.UploadFeatured(ctx, "my-post", upload, info)
	if err != nil {
		t.Fatalf("upload featured: %v", err)
	}
	if !strings.HasPrefix(featuredURL, "/static/uploads/featured-images/featured-my-post-") {
		t.Fatalf("unexpected featured url %s", featuredURL)
	}
	if len(listKeys(t, store, "featured-images/")) != 1 {
		t.Fatalf("expected one featured image stored")
	}

	if _, err := svc.UploadTemp(ctx, &ImageUpload{Data: []byte("<svg/>")}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected non-image to be rejected, got %v", err)
	}
	if len(listKeys(t, store, "temp/")) != 1 {
		t.Fatalf("rejected upload must not be stored")
	}
}

func TestUploadServiceWrapsStorageErrors(t *testing.T) {
	store := newFlakyStore(newTestStore(t))
	store.failPut = true

	_, err := NewUploadService(store).UploadTemp(context.Background(), pngUpload(t, 1, 1))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
