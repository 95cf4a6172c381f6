package service

import (
	"context"
	"errors"
	"fmt"

	"filegate/internal/repository"
)

// Remove 删除元数据记录。requester 为空串时视为可信内部调用，
// 跳过所有权校验。记录不存在或不属于请求者时按幂等删除处理。
// 元数据删除后执行物理对象垃圾回收，这是物理字节唯一的回收路径。
func (s *StorageService) Remove(ctx context.Context, fileKey, requester string) (bool, error) {
	record, err := s.repo.GetOne(ctx, repository.Filter{FileKey: fileKey})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("load metadata record: %w", err)
	}

	if requester != "" && record.OwnerID != requester {
		return true, nil
	}

	deleted, err := s.repo.Delete(ctx, record.ID)
	if err != nil {
		return false, fmt.Errorf("delete metadata record: %w", err)
	}
	if deleted {
		s.collectGarbage(ctx, record)
	}

	return true, nil
}

// collectGarbage 在不再有任何完成记录指向该 content hash 时删除物理对象，
// 以及曾生成过的缩略图。查询与删除之间与并发 init 存在已知竞争，
// 属已接受的边界。回收失败只记录日志，不影响删除结果。
func (s *StorageService) collectGarbage(ctx context.Context, record *repository.FileMetadata) {
	finished := true
	_, err := s.repo.GetOne(ctx, repository.Filter{ContentHash: record.ContentHash, IsFinished: &finished})
	if err == nil {
		// 仍有完成记录共享该物理对象
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.logf("gc lookup for hash %s: %v", record.ContentHash, err)
		return
	}

	object := record.ObjectName()
	if err := s.store.DeleteObject(ctx, record.Object.Bucket, object); err != nil {
		s.logf("gc delete object %s/%s: %v", record.Object.Bucket, object, err)
	} else {
		gcObjects.Inc()
	}

	if record.HasPreview {
		if err := s.store.DeleteObject(ctx, BucketImagePreview, object); err != nil {
			s.logf("gc delete preview %s/%s: %v", BucketImagePreview, object, err)
		}
	}
}
