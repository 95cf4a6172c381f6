package storage

import (
	"context"
	"errors"
	"io"
)

// ErrSessionNotFound 表示后端的分片上传会话已失效或过期。
// 协调器收到该错误时会重新开启会话。
var ErrSessionNotFound = errors.New("storage: upload session not found")

// Part 是后端已存储的一个分片，Checksum 为去除引号后的 ETag。
type Part struct {
	Index    int
	Checksum string
	Size     int64
}

// ObjectStore 定义对象存储后端的完整契约（S3 multipart 兼容）。
type ObjectStore interface {
	// OpenSession 创建分片上传会话并返回会话句柄。
	OpenSession(ctx context.Context, bucket, object, mimeType string) (string, error)
	// PartUploadURL 为指定分片签发直传地址。
	PartUploadURL(ctx context.Context, bucket, object, sessionID string, partIndex int) (string, error)
	// ListParts 返回会话中已存储的全部分片（单次快照）。
	ListParts(ctx context.Context, bucket, object, sessionID string) ([]Part, error)
	// Finalize 按 (分片序号, 校验和) 列表合并会话中的分片。
	Finalize(ctx context.Context, bucket, object, sessionID string, parts []Part) error

	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, mimeType string) error
	GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, bucket, object string) error
	EnsureBucket(ctx context.Context, bucket string) error

	// DownloadURL 签发附件下载地址（Content-Disposition: attachment）。
	DownloadURL(ctx context.Context, bucket, object, fileName, mimeType string) (string, error)
	// InlineURL 签发内联访问地址，用于原图与缩略图预览。
	InlineURL(ctx context.Context, bucket, object, mimeType string) (string, error)
}
