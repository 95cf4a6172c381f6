package service

import (
	"log"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"filegate/internal/repository"
	"filegate/internal/storage"

	"github.com/google/uuid"
)

const (
	// DefaultPartSize 默认分片大小，与 S3 multipart 的最小分片一致。
	DefaultPartSize int64 = 5 * 1024 * 1024

	defaultPreviewWidth   = 300
	defaultPreviewQuality = 90
)

// Options 控制协调器的可调参数，零值字段使用默认值。
type Options struct {
	PartSize       int64
	PreviewWidth   int
	PreviewQuality int
}

// StorageService 是上传会话协调器：负责 init/complete 协议、
// 元数据一致性、访问控制与缩略图缓存。每次调用无内部状态，
// 并发正确性建立在元数据记录为最小变更单元之上。
type StorageService struct {
	repo           repository.FileRepository
	store          storage.ObjectStore
	codec          Thumbnailer
	logger         *log.Logger
	partSize       int64
	previewWidth   int
	previewQuality int
	now            func() time.Time
}

// New 创建上传会话协调器。
func New(repo repository.FileRepository, store storage.ObjectStore, codec Thumbnailer, logger *log.Logger, opts Options) *StorageService {
	if opts.PartSize <= 0 {
		opts.PartSize = DefaultPartSize
	}
	if opts.PreviewWidth <= 0 {
		opts.PreviewWidth = defaultPreviewWidth
	}
	if opts.PreviewQuality <= 0 {
		opts.PreviewQuality = defaultPreviewQuality
	}

	return &StorageService{
		repo:           repo,
		store:          store,
		codec:          codec,
		logger:         logger,
		partSize:       opts.PartSize,
		previewWidth:   opts.PreviewWidth,
		previewQuality: opts.PreviewQuality,
		now:            time.Now,
	}
}

// PartSize 返回配置的分片大小。
func (s *StorageService) PartSize() int64 {
	return s.partSize
}

// PreShard 计算预分片结果，纯计算，不触达后端。
func (s *StorageService) PreShard(fileSize int64) PreShardResult {
	return PreShard(fileSize, s.partSize)
}

// newFileKey 生成对外的全局唯一文件标识。
func newFileKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// datePath 生成按年月分桶的存储路径前缀，如 "2026/08"。
func (s *StorageService) datePath() string {
	return s.now().UTC().Format("2006/01")
}

// suffixOf 取文件扩展名（不含点，统一小写），无扩展名时返回空串。
func suffixOf(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

// mimeTypeOf 根据扩展名推断 MIME 类型。
func mimeTypeOf(suffix string) string {
	if suffix == "" {
		return "application/octet-stream"
	}
	if mimeType := mime.TypeByExtension("." + suffix); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

func (s *StorageService) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
