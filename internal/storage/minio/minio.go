package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"filegate/internal/storage"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config 包含 S3/MinIO 存储所需的配置。
type Config struct {
	Endpoint      string // 不含协议，如 "localhost:9000" 或 "s3.amazonaws.com"
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool          // 是否使用 HTTPS
	PresignExpiry time.Duration // 签发地址的有效期
}

// Store 实现 storage.ObjectStore，底层使用 minio.Core 以便访问
// multipart 低级接口（常规 Client 只暴露整对象上传）。
type Store struct {
	core   *minio.Core
	expiry time.Duration
}

// New 创建新的 MinIO 存储实例。
func New(cfg Config) (*Store, error) {
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio core client: %w", err)
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &Store{core: core, expiry: expiry}, nil
}

// OpenSession 创建 multipart 上传会话。
func (s *Store) OpenSession(ctx context.Context, bucket, object, mimeType string) (string, error) {
	uploadID, err := s.core.NewMultipartUpload(ctx, bucket, object, minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("new multipart upload: %w", err)
	}
	return uploadID, nil
}

// PartUploadURL 为单个分片签发预签名 PUT 地址。
func (s *Store) PartUploadURL(ctx context.Context, bucket, object, sessionID string, partIndex int) (string, error) {
	params := url.Values{}
	params.Set("partNumber", strconv.Itoa(partIndex))
	params.Set("uploadId", sessionID)

	u, err := s.core.Presign(ctx, http.MethodPut, bucket, object, s.expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign part %d: %w", partIndex, err)
	}
	return u.String(), nil
}

// ListParts 列出会话中已存储的分片，自动翻页直至取完。
func (s *Store) ListParts(ctx context.Context, bucket, object, sessionID string) ([]storage.Part, error) {
	var parts []storage.Part
	marker := 0

	for {
		result, err := s.core.ListObjectParts(ctx, bucket, object, sessionID, marker, 1000)
		if err != nil {
			return nil, mapSessionError(err, "list object parts")
		}

		for _, p := range result.ObjectParts {
			parts = append(parts, storage.Part{
				Index:    p.PartNumber,
				Checksum: trimETag(p.ETag),
				Size:     p.Size,
			})
		}

		if !result.IsTruncated {
			return parts, nil
		}
		marker = result.NextPartNumberMarker
	}
}

// Finalize 合并会话中的全部分片为最终对象。
func (s *Store) Finalize(ctx context.Context, bucket, object, sessionID string, parts []storage.Part) error {
	completeParts := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		completeParts = append(completeParts, minio.CompletePart{
			PartNumber: p.Index,
			ETag:       p.Checksum,
		})
	}

	_, err := s.core.CompleteMultipartUpload(ctx, bucket, object, sessionID, completeParts, minio.PutObjectOptions{})
	if err != nil {
		return mapSessionError(err, "complete multipart upload")
	}
	return nil
}

// PutObject 单次写入整个对象。
func (s *Store) PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, mimeType string) error {
	_, err := s.core.Client.PutObject(ctx, bucket, object, r, size, minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// GetObject 读取对象内容，对象不存在时返回错误。
func (s *Store) GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	obj, err := s.core.Client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}

	// GetObject 为惰性读取，Stat 确认对象确实存在
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat object %s/%s: %w", bucket, object, err)
	}

	return obj, nil
}

// DeleteObject 删除对象。
func (s *Store) DeleteObject(ctx context.Context, bucket, object string) error {
	if err := s.core.Client.RemoveObject(ctx, bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// EnsureBucket 确保桶存在，不存在则创建。
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.core.Client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.core.Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// DownloadURL 签发附件下载地址。
func (s *Store) DownloadURL(ctx context.Context, bucket, object, fileName, mimeType string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if mimeType != "" {
		params.Set("response-content-type", mimeType)
	}

	u, err := s.core.Client.PresignedGetObject(ctx, bucket, object, s.expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return u.String(), nil
}

// InlineURL 签发内联访问地址。
func (s *Store) InlineURL(ctx context.Context, bucket, object, mimeType string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", "inline")
	if mimeType != "" {
		params.Set("response-content-type", mimeType)
	}

	u, err := s.core.Client.PresignedGetObject(ctx, bucket, object, s.expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign inline: %w", err)
	}
	return u.String(), nil
}

// mapSessionError 把后端的会话失效错误映射为哨兵错误，其余原样包装。
func mapSessionError(err error, op string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchUpload" {
		return storage.ErrSessionNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}
