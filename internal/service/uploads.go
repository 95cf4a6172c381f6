package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"filegate/internal/repository"
	"filegate/internal/storage"
)

// InitInput 描述一次上传初始化请求。
type InitInput struct {
	ContentHash string
	FileName    string
	FileSize    int64
	IsPrivate   bool
	OwnerID     string
}

// InitResult 是 init 的出参。秒传时 Parts 为空且 IsDedupComplete 为 true，
// 其余情况 Parts 为仍需传输的分片上传目标。
type InitResult struct {
	Record          *repository.FileMetadata `json:"record"`
	IsDedupComplete bool                     `json:"is_dedup_complete"`
	PartCount       int                      `json:"part_count"`
	PartSize        int64                    `json:"part_size"`
	Parts           []PartTarget             `json:"parts"`
}

// CompleteResult 是 complete 的出参。未完成时 Parts 携带重新签发的
// 缺失分片上传目标。
type CompleteResult struct {
	IsComplete bool         `json:"is_complete"`
	Parts      []PartTarget `json:"parts"`
}

// Init 初始化上传任务。按 content hash 查询既有记录并分类：
//
//  1. 秒传：任一同内容记录已完成，直接新增完成态记录，不传输字节
//  2. 自有续传：调用方自己的未完成记录，补发缺失分片的上传目标
//  3. 他人续传：仅他人的未完成记录，以其为模板为调用方新增记录
//  4. 全新上传：该内容从未上传过，开启新会话并下发完整分片计划
func (s *StorageService) Init(ctx context.Context, input InitInput) (*InitResult, error) {
	if err := validateInitInput(input); err != nil {
		return nil, err
	}

	suffix := suffixOf(input.FileName)
	if suffix == "" {
		return nil, ErrSuffixMissing
	}

	records, err := s.repo.List(ctx, repository.Filter{ContentHash: input.ContentHash})
	if err != nil {
		return nil, fmt.Errorf("list metadata by content hash: %w", err)
	}

	decision := ClassifyInit(records, input.OwnerID)
	initTotal.WithLabelValues(decisionOutcomes[decision.Kind]).Inc()

	switch decision.Kind {
	case DecisionDedupComplete:
		return s.initDedup(ctx, decision.Donor, input)
	case DecisionResumeSelf:
		return s.initResumeSelf(ctx, decision.Donor, input)
	case DecisionResumeOther:
		return s.initResumeOther(ctx, decision.Donor, input)
	default:
		return s.initFresh(ctx, input, suffix)
	}
}

func validateInitInput(input InitInput) error {
	switch {
	case strings.TrimSpace(input.ContentHash) == "":
		return fmt.Errorf("content_hash is required")
	case input.FileName == "":
		return fmt.Errorf("file_name is required")
	case input.FileSize <= 0:
		return fmt.Errorf("file_size must be positive")
	case input.OwnerID == "":
		return fmt.Errorf("owner_id is required")
	default:
		return nil
	}
}

// initDedup 秒传：复制既有完成记录的物理描述符，新增调用方自己的完成态记录。
func (s *StorageService) initDedup(ctx context.Context, donor *repository.FileMetadata, input InitInput) (*InitResult, error) {
	record := &repository.FileMetadata{
		FileKey:     newFileKey(),
		ContentHash: input.ContentHash,
		FileName:    input.FileName,
		Object:      donor.Object,
		IsFinished:  true,
		HasPreview:  donor.HasPreview,
		IsPrivate:   input.IsPrivate,
		OwnerID:     input.OwnerID,
		UpdatedBy:   input.OwnerID,
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("create dedup record: %w", err)
	}

	return &InitResult{
		Record:          created,
		IsDedupComplete: true,
		PartSize:        s.partSize,
	}, nil
}

// initResumeSelf 自有续传：复用记录，补发缺失分片；会话失效时换新会话并回写。
func (s *StorageService) initResumeSelf(ctx context.Context, record *repository.FileMetadata, input InitInput) (*InitResult, error) {
	targets, sessionID, err := s.resumePlan(ctx, record)
	if err != nil {
		return nil, err
	}

	if sessionID != record.UploadSessionID {
		updated, err := s.repo.Update(ctx, record.ID, repository.FileUpdate{
			UploadSessionID: &sessionID,
			UpdatedBy:       input.OwnerID,
		})
		if err != nil {
			return nil, fmt.Errorf("update upload session id: %w", err)
		}
		record = updated
	}

	return &InitResult{
		Record:    record,
		PartCount: record.PartCount,
		PartSize:  s.partSize,
		Parts:     targets,
	}, nil
}

// initResumeOther 他人续传：以他人未完成记录为模板为调用方新增独立记录，
// 物理位置共享，fileKey 与可见性独立。
func (s *StorageService) initResumeOther(ctx context.Context, donor *repository.FileMetadata, input InitInput) (*InitResult, error) {
	targets, sessionID, err := s.resumePlan(ctx, donor)
	if err != nil {
		return nil, err
	}

	record := &repository.FileMetadata{
		FileKey:         newFileKey(),
		ContentHash:     input.ContentHash,
		FileName:        input.FileName,
		Object:          donor.Object,
		UploadSessionID: sessionID,
		IsChunked:       donor.IsChunked,
		PartCount:       donor.PartCount,
		IsPrivate:       input.IsPrivate,
		OwnerID:         input.OwnerID,
		UpdatedBy:       input.OwnerID,
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("create resume record: %w", err)
	}

	return &InitResult{
		Record:    created,
		PartCount: created.PartCount,
		PartSize:  s.partSize,
		Parts:     targets,
	}, nil
}

// initFresh 全新上传：分配物理路径，开启会话，下发完整分片计划。
func (s *StorageService) initFresh(ctx context.Context, input InitInput, suffix string) (*InitResult, error) {
	bucket := BucketForSuffix(suffix)
	if err := s.store.EnsureBucket(ctx, bucket); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
	}

	location := repository.ObjectLocation{
		Bucket:    bucket,
		Path:      s.datePath(),
		MimeType:  mimeTypeOf(suffix),
		Suffix:    suffix,
		SizeBytes: input.FileSize,
	}
	object := location.ObjectName(input.ContentHash)

	sessionID, err := s.store.OpenSession(ctx, bucket, object, location.MimeType)
	if err != nil {
		return nil, fmt.Errorf("open upload session: %w", err)
	}

	partCount := PartCountFor(input.FileSize, s.partSize)
	targets, err := s.planParts(ctx, bucket, object, sessionID, allIndexes(partCount), input.FileSize)
	if err != nil {
		return nil, err
	}

	record := &repository.FileMetadata{
		FileKey:         newFileKey(),
		ContentHash:     input.ContentHash,
		FileName:        input.FileName,
		Object:          location,
		UploadSessionID: sessionID,
		IsChunked:       partCount > 1,
		PartCount:       partCount,
		IsPrivate:       input.IsPrivate,
		OwnerID:         input.OwnerID,
		UpdatedBy:       input.OwnerID,
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("create metadata record: %w", err)
	}

	return &InitResult{
		Record:    created,
		PartCount: partCount,
		PartSize:  s.partSize,
		Parts:     targets,
	}, nil
}

// resumePlan 列出后端已存储的分片并为缺失分片签发上传目标。
// 会话失效时在原物理位置上开启新会话，由调用方负责回写会话句柄。
// 无缺失分片时返回空计划，客户端应直接调用 complete。
func (s *StorageService) resumePlan(ctx context.Context, record *repository.FileMetadata) ([]PartTarget, string, error) {
	object := record.ObjectName()

	stored, err := s.store.ListParts(ctx, record.Object.Bucket, object, record.UploadSessionID)
	sessionValid := true
	if errors.Is(err, storage.ErrSessionNotFound) {
		stored, sessionValid = nil, false
	} else if err != nil {
		return nil, "", fmt.Errorf("list stored parts: %w", err)
	}

	missing := missingIndexes(record.PartCount, stored)
	if len(missing) == 0 {
		return nil, record.UploadSessionID, nil
	}

	sessionID := record.UploadSessionID
	if !sessionValid {
		sessionID, err = s.store.OpenSession(ctx, record.Object.Bucket, object, record.Object.MimeType)
		if err != nil {
			return nil, "", fmt.Errorf("reopen upload session: %w", err)
		}
	}

	targets, err := s.planParts(ctx, record.Object.Bucket, object, sessionID, missing, record.Object.SizeBytes)
	if err != nil {
		return nil, "", err
	}
	return targets, sessionID, nil
}

// Complete 对上传任务做对账。以一次后端分片快照逐片核对调用方提交的
// 校验和：存在缺失或不匹配时重新签发缺失分片，不做合并；全部通过时
// 合并分片，将本记录标记完成，并级联完成所有同内容的未完成记录。
func (s *StorageService) Complete(ctx context.Context, fileKey string, partHashes []string, ownerID string) (*CompleteResult, error) {
	record, err := s.repo.GetOne(ctx, repository.Filter{FileKey: fileKey, OwnerID: ownerID})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("load metadata record: %w", err)
	}

	// 幂等：后端合并成功但元数据更新前崩溃时，重试会走到这里
	if record.IsFinished {
		return &CompleteResult{IsComplete: true}, nil
	}

	if len(partHashes) != record.PartCount {
		return nil, ErrPartCountMismatch
	}

	object := record.ObjectName()
	stored, err := s.store.ListParts(ctx, record.Object.Bucket, object, record.UploadSessionID)
	sessionValid := true
	if errors.Is(err, storage.ErrSessionNotFound) {
		stored, sessionValid = nil, false
	} else if err != nil {
		return nil, fmt.Errorf("list stored parts: %w", err)
	}

	// 单次快照内逐片核对序号与校验和（大小写不敏感）
	byIndex := make(map[int]storage.Part, len(stored))
	for _, p := range stored {
		byIndex[p.Index] = p
	}

	var missing []int
	for index := 1; index <= record.PartCount; index++ {
		p, ok := byIndex[index]
		if !ok || !strings.EqualFold(p.Checksum, partHashes[index-1]) {
			missing = append(missing, index)
		}
	}

	if len(missing) > 0 {
		return s.reissueParts(ctx, record, object, missing, sessionValid)
	}

	finalParts := make([]storage.Part, 0, record.PartCount)
	for index := 1; index <= record.PartCount; index++ {
		finalParts = append(finalParts, storage.Part{Index: index, Checksum: byIndex[index].Checksum})
	}

	if err := s.store.Finalize(ctx, record.Object.Bucket, object, record.UploadSessionID, finalParts); err != nil {
		return nil, fmt.Errorf("finalize upload session: %w", err)
	}
	finalizeTotal.Inc()

	finished := true
	if _, err := s.repo.Update(ctx, record.ID, repository.FileUpdate{IsFinished: &finished, UpdatedBy: ownerID}); err != nil {
		return nil, fmt.Errorf("mark record finished: %w", err)
	}

	s.cascadeFinished(ctx, record, ownerID)

	return &CompleteResult{IsComplete: true}, nil
}

// reissueParts 为缺失分片重新签发上传目标，必要时换新会话并回写记录。
func (s *StorageService) reissueParts(ctx context.Context, record *repository.FileMetadata, object string, missing []int, sessionValid bool) (*CompleteResult, error) {
	sessionID := record.UploadSessionID
	if !sessionValid {
		var err error
		sessionID, err = s.store.OpenSession(ctx, record.Object.Bucket, object, record.Object.MimeType)
		if err != nil {
			return nil, fmt.Errorf("reopen upload session: %w", err)
		}
	}

	targets, err := s.planParts(ctx, record.Object.Bucket, object, sessionID, missing, record.Object.SizeBytes)
	if err != nil {
		return nil, err
	}

	if sessionID != record.UploadSessionID {
		if _, err := s.repo.Update(ctx, record.ID, repository.FileUpdate{
			UploadSessionID: &sessionID,
			UpdatedBy:       record.OwnerID,
		}); err != nil {
			return nil, fmt.Errorf("update upload session id: %w", err)
		}
	}

	return &CompleteResult{IsComplete: false, Parts: targets}, nil
}

// cascadeFinished 物理对象已完成合并，级联标记所有同内容的未完成记录。
// 单条失败只记录日志：重复执行安全，遗漏的记录可由下一次 complete 补上。
func (s *StorageService) cascadeFinished(ctx context.Context, record *repository.FileMetadata, ownerID string) {
	unfinished := false
	siblings, err := s.repo.List(ctx, repository.Filter{ContentHash: record.ContentHash, IsFinished: &unfinished})
	if err != nil {
		s.logf("cascade list siblings for hash %s: %v", record.ContentHash, err)
		return
	}

	finished := true
	for i := range siblings {
		if siblings[i].ID == record.ID {
			continue
		}
		if _, err := s.repo.Update(ctx, siblings[i].ID, repository.FileUpdate{IsFinished: &finished, UpdatedBy: ownerID}); err != nil {
			s.logf("cascade finish record %d: %v", siblings[i].ID, err)
			continue
		}
		cascadeTotal.Inc()
	}
}

// UploadSingleInput 描述一次小文件直传。
type UploadSingleInput struct {
	FileName  string
	SizeBytes int64
	IsPrivate bool
	OwnerID   string
	Reader    io.Reader
}

// UploadSingle 小文件单次上传：不开会话、不做秒传查询，写入后直接
// 创建完成态记录。内容 hash 由服务端计算，存储路径与分片上传一致。
func (s *StorageService) UploadSingle(ctx context.Context, input UploadSingleInput) (*repository.FileMetadata, error) {
	switch {
	case input.FileName == "":
		return nil, fmt.Errorf("file_name is required")
	case input.OwnerID == "":
		return nil, fmt.Errorf("owner_id is required")
	case input.Reader == nil:
		return nil, fmt.Errorf("file content is required")
	}

	data, err := io.ReadAll(input.Reader)
	if err != nil {
		return nil, fmt.Errorf("read upload content: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("file must not be empty")
	}

	sum := md5.Sum(data)
	contentHash := hex.EncodeToString(sum[:])

	suffix := suffixOf(input.FileName)
	bucket := BucketForSuffix(suffix)
	if err := s.store.EnsureBucket(ctx, bucket); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
	}

	location := repository.ObjectLocation{
		Bucket:    bucket,
		Path:      s.datePath(),
		MimeType:  mimeTypeOf(suffix),
		Suffix:    suffix,
		SizeBytes: int64(len(data)),
	}
	object := location.ObjectName(contentHash)

	if err := s.store.PutObject(ctx, bucket, object, bytes.NewReader(data), int64(len(data)), location.MimeType); err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	record := &repository.FileMetadata{
		FileKey:     newFileKey(),
		ContentHash: contentHash,
		FileName:    input.FileName,
		Object:      location,
		IsFinished:  true,
		IsPrivate:   input.IsPrivate,
		OwnerID:     input.OwnerID,
		UpdatedBy:   input.OwnerID,
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("create metadata record: %w", err)
	}
	return created, nil
}
