package service

import "filegate/internal/repository"

// DecisionKind 是 init 分类结果的变体标签。
type DecisionKind int

const (
	// DecisionFresh 该 content hash 从未上传过，走全新上传。
	DecisionFresh DecisionKind = iota
	// DecisionDedupComplete 已存在完成的同内容记录，秒传。
	DecisionDedupComplete
	// DecisionResumeSelf 调用方自己的未完成记录，断点续传。
	DecisionResumeSelf
	// DecisionResumeOther 仅他人的未完成记录，以其为模板续传。
	DecisionResumeOther
)

// Decision 是 init 的分类结果。除 Fresh 外 Donor 均指向作为
// 模板或续传对象的既有记录。
type Decision struct {
	Kind  DecisionKind
	Donor *repository.FileMetadata
}

// ClassifyInit 对同 content hash 的既有记录做纯分类，不做任何 I/O。
// 优先级：秒传 > 自有续传 > 他人续传 > 全新上传。
func ClassifyInit(records []repository.FileMetadata, ownerID string) Decision {
	for i := range records {
		if records[i].IsFinished {
			return Decision{Kind: DecisionDedupComplete, Donor: &records[i]}
		}
	}

	for i := range records {
		if records[i].OwnerID == ownerID {
			return Decision{Kind: DecisionResumeSelf, Donor: &records[i]}
		}
	}

	if len(records) > 0 {
		return Decision{Kind: DecisionResumeOther, Donor: &records[0]}
	}

	return Decision{Kind: DecisionFresh}
}
