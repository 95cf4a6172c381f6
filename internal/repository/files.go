package repository

import (
	"context"
	"time"
)

// ObjectLocation 描述文件内容在对象存储中的物理位置与内容属性。
// 同一 content hash 的所有已完成记录共享同一份 ObjectLocation（单副本）。
// 按值嵌入元数据记录，避免跨记录共享可变状态。
type ObjectLocation struct {
	Bucket    string `json:"storage_bucket"`
	Path      string `json:"storage_path"`
	MimeType  string `json:"mime_type"`
	Suffix    string `json:"suffix"`
	SizeBytes int64  `json:"size_bytes"`
}

// ObjectName 返回对象在桶内的完整名称（路径 + content hash）。
func (l ObjectLocation) ObjectName(contentHash string) string {
	return l.Path + "/" + contentHash
}

// FileMetadata 代表一次 (上传者, content hash) 上传尝试的元数据记录。
type FileMetadata struct {
	ID              int64          `json:"id"`
	FileKey         string         `json:"file_key"`
	ContentHash     string         `json:"content_hash"`
	FileName        string         `json:"file_name"`
	Object          ObjectLocation `json:"object"`
	UploadSessionID string         `json:"-"`
	IsFinished      bool           `json:"is_finished"`
	IsChunked       bool           `json:"is_chunked"`
	PartCount       int            `json:"part_count"`
	HasPreview      bool           `json:"has_preview"`
	IsPrivate       bool           `json:"is_private"`
	OwnerID         string         `json:"owner_id"`
	UpdatedBy       string         `json:"updated_by"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ObjectName 返回该记录指向的物理对象名称。
func (m *FileMetadata) ObjectName() string {
	return m.Object.ObjectName(m.ContentHash)
}

// Filter 描述元数据查询条件，零值字段不参与过滤。
type Filter struct {
	FileKey     string
	ContentHash string
	OwnerID     string
	IsFinished  *bool
}

// FileUpdate 描述一次部分更新，nil 字段保持原值。
// IsFinished 只允许 false→true 的单向变更，由调用方保证。
type FileUpdate struct {
	UploadSessionID *string
	IsFinished      *bool
	HasPreview      *bool
	UpdatedBy       string
}

// FileRepository 统一文件元数据持久层接口。
type FileRepository interface {
	List(ctx context.Context, f Filter) ([]FileMetadata, error)
	GetOne(ctx context.Context, f Filter) (*FileMetadata, error)
	Create(ctx context.Context, record *FileMetadata) (*FileMetadata, error)
	Update(ctx context.Context, id int64, changes FileUpdate) (*FileMetadata, error)
	Delete(ctx context.Context, id int64) (bool, error)
}
