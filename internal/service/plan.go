package service

import (
	"context"
	"fmt"

	"filegate/internal/storage"
)

// PartTarget 是下发给客户端的单个分片上传目标。
// 字节区间为 [Start, End)，End 不超过文件长度。
type PartTarget struct {
	Index     int    `json:"index"`
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
	UploadURL string `json:"upload_url,omitempty"`
}

// PreShardResult 是预分片计算结果，供客户端在 init 前按片计算校验和。
type PreShardResult struct {
	FileSize  int64        `json:"file_size"`
	PartCount int          `json:"part_count"`
	PartSize  int64        `json:"part_size"`
	Parts     []PartTarget `json:"parts"`
}

// PartCountFor 计算文件需要的分片数量（向上取整）。
func PartCountFor(fileSize, partSize int64) int {
	if fileSize <= 0 || partSize <= 0 {
		return 0
	}
	return int((fileSize + partSize - 1) / partSize)
}

// partRange 返回第 index 片（1 起始）的字节区间 [start, end)。
func partRange(index int, partSize, fileSize int64) (int64, int64) {
	start := int64(index-1) * partSize
	end := start + partSize
	if end > fileSize {
		end = fileSize
	}
	return start, end
}

// PreShard 计算全部分片的字节区间，不涉及任何后端调用。
func PreShard(fileSize, partSize int64) PreShardResult {
	count := PartCountFor(fileSize, partSize)
	parts := make([]PartTarget, 0, count)
	for index := 1; index <= count; index++ {
		start, end := partRange(index, partSize, fileSize)
		parts = append(parts, PartTarget{Index: index, Start: start, End: end})
	}
	return PreShardResult{
		FileSize:  fileSize,
		PartCount: count,
		PartSize:  partSize,
		Parts:     parts,
	}
}

// missingIndexes 返回 1..partCount 中后端没有存储分片的序号。
func missingIndexes(partCount int, stored []storage.Part) []int {
	exists := make([]bool, partCount+1)
	for _, p := range stored {
		if p.Index >= 1 && p.Index <= partCount {
			exists[p.Index] = true
		}
	}

	var missing []int
	for index := 1; index <= partCount; index++ {
		if !exists[index] {
			missing = append(missing, index)
		}
	}
	return missing
}

// planParts 为给定分片序号集合（可稀疏）逐片签发上传目标。
func (s *StorageService) planParts(ctx context.Context, bucket, object, sessionID string, indexes []int, fileSize int64) ([]PartTarget, error) {
	targets := make([]PartTarget, 0, len(indexes))
	for _, index := range indexes {
		uploadURL, err := s.store.PartUploadURL(ctx, bucket, object, sessionID, index)
		if err != nil {
			return nil, fmt.Errorf("issue upload target for part %d: %w", index, err)
		}
		start, end := partRange(index, s.partSize, fileSize)
		targets = append(targets, PartTarget{
			Index:     index,
			Start:     start,
			End:       end,
			UploadURL: uploadURL,
		})
	}
	return targets, nil
}

func allIndexes(partCount int) []int {
	indexes := make([]int, partCount)
	for i := range indexes {
		indexes[i] = i + 1
	}
	return indexes
}
