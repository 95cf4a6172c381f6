package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// initTotal 按分类结果统计 init 调用
	initTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filegate_upload_init_total",
			Help: "Upload init calls by classification outcome",
		},
		[]string{"outcome"},
	)

	// finalizeTotal 成功合并的上传数
	finalizeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filegate_upload_finalize_total",
		Help: "Successfully finalized multipart uploads",
	})

	// cascadeTotal 因合并完成被级联标记完成的兄弟记录数
	cascadeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filegate_upload_cascade_total",
		Help: "Sibling records marked finished by completion cascade",
	})

	// previewGenerated 实际生成的缩略图数（命中缓存不计）
	previewGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filegate_preview_generated_total",
		Help: "Thumbnails generated (cache hits excluded)",
	})

	// gcObjects 被垃圾回收删除的物理对象数
	gcObjects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filegate_gc_objects_total",
		Help: "Physical objects deleted by metadata garbage collection",
	})
)

var decisionOutcomes = map[DecisionKind]string{
	DecisionFresh:         "fresh",
	DecisionDedupComplete: "dedup",
	DecisionResumeSelf:    "resume_self",
	DecisionResumeOther:   "resume_other",
}
