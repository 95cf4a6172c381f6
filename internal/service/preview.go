package service

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"filegate/internal/repository"
)

// Thumbnailer 图像编解码协作者：将原图缩放为固定宽度、降质编码的缩略图。
type Thumbnailer interface {
	Thumbnail(r io.Reader, width, quality int) ([]byte, error)
}

// Preview 返回文件的预览地址。非图片类文件返回扩展名哨兵值，由调用方
// 渲染类型图标。图片首次访问时生成缩略图并置位 has_preview（只生成
// 一次）；并发的重复生成是可接受的，按 content hash 写入天然幂等。
func (s *StorageService) Preview(ctx context.Context, fileKey, requester string) (string, error) {
	record, err := s.getVisible(ctx, fileKey, requester)
	if err != nil {
		return "", s.maskReadError(fileKey, err)
	}

	if record.Object.Bucket != BucketImage {
		return record.Object.Suffix, nil
	}

	if !record.HasPreview {
		if err := s.generatePreview(ctx, record); err != nil {
			s.logf("generate preview for %s: %v", record.FileKey, err)
			return "", ErrPreviewFailed
		}
	}

	previewURL, err := s.store.InlineURL(ctx, BucketImagePreview, record.ObjectName(), record.Object.MimeType)
	if err != nil {
		return "", s.maskReadError(fileKey, err)
	}
	return previewURL, nil
}

// generatePreview 生成缩略图并写入预览桶。has_preview 仅在派生对象
// 落盘成功之后置位。
func (s *StorageService) generatePreview(ctx context.Context, record *repository.FileMetadata) error {
	if s.codec == nil {
		return fmt.Errorf("no image codec configured")
	}

	object := record.ObjectName()

	original, err := s.store.GetObject(ctx, record.Object.Bucket, object)
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}
	defer original.Close()

	thumb, err := s.codec.Thumbnail(original, s.previewWidth, s.previewQuality)
	if err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}

	if err := s.store.EnsureBucket(ctx, BucketImagePreview); err != nil {
		return fmt.Errorf("ensure preview bucket: %w", err)
	}
	if err := s.store.PutObject(ctx, BucketImagePreview, object, bytes.NewReader(thumb), int64(len(thumb)), record.Object.MimeType); err != nil {
		return fmt.Errorf("store thumbnail: %w", err)
	}

	hasPreview := true
	if _, err := s.repo.Update(ctx, record.ID, repository.FileUpdate{HasPreview: &hasPreview, UpdatedBy: record.OwnerID}); err != nil {
		return fmt.Errorf("mark preview generated: %w", err)
	}
	record.HasPreview = true
	previewGenerated.Inc()

	return nil
}
