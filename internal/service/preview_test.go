package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"filegate/internal/repository"
)

func seedImageFile(repo *memRepo, store *fakeStore, hasPreview bool) repository.ObjectLocation {
	location := testLocation(BucketImage, "jpg", 2048)
	repo.seed(repository.FileMetadata{
		FileKey:     "photo",
		ContentHash: "hash-p",
		FileName:    "photo.jpg",
		Object:      location,
		IsFinished:  true,
		HasPreview:  hasPreview,
		OwnerID:     "alice",
	})
	store.objects[objectKey(BucketImage, location.ObjectName("hash-p"))] = []byte("jpeg bytes")
	return location
}

func TestPreview_NonImageReturnsSuffix(t *testing.T) {
	repo := &memRepo{}
	repo.seed(repository.FileMetadata{
		FileKey:     "doc",
		ContentHash: "hash-d",
		FileName:    "report.pdf",
		Object:      testLocation(BucketDocument, "pdf", 100),
		IsFinished:  true,
		OwnerID:     "alice",
	})
	codec := &countingCodec{}
	svc := newTestService(repo, newFakeStore(), codec)

	result, err := svc.Preview(context.Background(), "doc", "alice")
	if err != nil {
		t.Fatalf("Preview returned error: %v", err)
	}
	if result != "pdf" {
		t.Fatalf("non-image preview must return the suffix sentinel, got %s", result)
	}
	if codec.calls != 0 {
		t.Fatal("non-image files never hit the codec")
	}
}

func TestPreview_GeneratesThumbnailOnce(t *testing.T) {
	repo := &memRepo{}
	store := newFakeStore()
	location := seedImageFile(repo, store, false)
	codec := &countingCodec{}
	svc := newTestService(repo, store, codec)

	url, err := svc.Preview(context.Background(), "photo", "alice")
	if err != nil {
		t.Fatalf("Preview returned error: %v", err)
	}
	if !strings.Contains(url, BucketImagePreview) {
		t.Fatalf("preview URL must point at the preview bucket, got %s", url)
	}
	if codec.calls != 1 {
		t.Fatalf("expected one thumbnail generation, got %d", codec.calls)
	}

	object := location.ObjectName("hash-p")
	if _, ok := store.objects[objectKey(BucketImagePreview, object)]; !ok {
		t.Fatal("thumbnail must be stored under the original object name")
	}
	if !repo.byKey("photo").HasPreview {
		t.Fatal("has_preview must be set after the thumbnail is durable")
	}

	// 第二次访问直接复用缓存的缩略图
	if _, err := svc.Preview(context.Background(), "photo", "alice"); err != nil {
		t.Fatalf("second Preview returned error: %v", err)
	}
	if codec.calls != 1 {
		t.Fatalf("thumbnail must be generated once, codec ran %d times", codec.calls)
	}
}

func TestPreview_CodecFailure(t *testing.T) {
	repo := &memRepo{}
	store := newFakeStore()
	seedImageFile(repo, store, false)
	codec := &countingCodec{err: errors.New("bad image data")}
	svc := newTestService(repo, store, codec)

	_, err := svc.Preview(context.Background(), "photo", "alice")
	if !errors.Is(err, ErrPreviewFailed) {
		t.Fatalf("expected ErrPreviewFailed, got %v", err)
	}
	if repo.byKey("photo").HasPreview {
		t.Fatal("has_preview must stay unset after a failed generation")
	}
}

func TestPreview_PrivateFileMasked(t *testing.T) {
	repo := &memRepo{}
	store := newFakeStore()
	repo.seed(repository.FileMetadata{
		FileKey:     "hidden",
		ContentHash: "hash-h",
		FileName:    "hidden.jpg",
		Object:      testLocation(BucketImage, "jpg", 100),
		IsFinished:  true,
		IsPrivate:   true,
		OwnerID:     "alice",
	})
	svc := newTestService(repo, store, &countingCodec{})

	_, err := svc.Preview(context.Background(), "hidden", "mallory")
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}
