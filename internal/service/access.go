package service

import (
	"context"
	"errors"
	"io"

	"filegate/internal/repository"
)

// getVisible 按可见性规则取记录：公有文件或属于请求者的文件可见。
func (s *StorageService) getVisible(ctx context.Context, fileKey, requester string) (*repository.FileMetadata, error) {
	record, err := s.repo.GetOne(ctx, repository.Filter{FileKey: fileKey})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	if record.IsPrivate && record.OwnerID != requester {
		return nil, ErrPermissionDenied
	}
	return record, nil
}

// maskReadError 读路径错误统一折叠为“文件不存在”：权限拒绝与后端
// 细节一律不跨边界泄露，原因只进日志。
func (s *StorageService) maskReadError(fileKey string, err error) error {
	s.logf("read path failure for %s: %v", fileKey, err)
	return ErrFileNotFound
}

// Download 签发附件下载地址。
func (s *StorageService) Download(ctx context.Context, fileKey, requester string) (string, error) {
	record, err := s.getVisible(ctx, fileKey, requester)
	if err != nil {
		return "", s.maskReadError(fileKey, err)
	}

	downloadURL, err := s.store.DownloadURL(ctx, record.Object.Bucket, record.ObjectName(), record.FileName, record.Object.MimeType)
	if err != nil {
		return "", s.maskReadError(fileKey, err)
	}
	return downloadURL, nil
}

// Image 签发原图内联访问地址。
func (s *StorageService) Image(ctx context.Context, fileKey, requester string) (string, error) {
	record, err := s.getVisible(ctx, fileKey, requester)
	if err != nil {
		return "", s.maskReadError(fileKey, err)
	}

	imageURL, err := s.store.InlineURL(ctx, record.Object.Bucket, record.ObjectName(), record.Object.MimeType)
	if err != nil {
		return "", s.maskReadError(fileKey, err)
	}
	return imageURL, nil
}

// OpenDownload 返回文件内容流与元数据，供服务端直接回源下载。
// 调用方负责关闭返回的流。
func (s *StorageService) OpenDownload(ctx context.Context, fileKey, requester string) (io.ReadCloser, *repository.FileMetadata, error) {
	record, err := s.getVisible(ctx, fileKey, requester)
	if err != nil {
		return nil, nil, s.maskReadError(fileKey, err)
	}

	content, err := s.store.GetObject(ctx, record.Object.Bucket, record.ObjectName())
	if err != nil {
		return nil, nil, s.maskReadError(fileKey, err)
	}
	return content, record, nil
}
