package service

import "errors"

// 服务层错误分类。读路径（下载、原图、预览）上的权限与后端错误
// 在返回给调用方前统一折叠为 ErrFileNotFound，避免泄露文件是否存在。
var (
	// ErrFileNotFound 元数据记录不存在，或调用方无权知道其存在。
	ErrFileNotFound = errors.New("file not found")

	// ErrPermissionDenied 私有文件且请求者不是所有者。仅内部使用。
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPartCountMismatch 调用方提交的分片校验和数量与记录的分片数不一致。
	ErrPartCountMismatch = errors.New("part hash count does not match part count")

	// ErrSuffixMissing 文件名没有可用的扩展名。
	ErrSuffixMissing = errors.New("file name has no usable suffix")

	// ErrPreviewFailed 缩略图生成或写入失败，原文件不受影响。
	ErrPreviewFailed = errors.New("preview generation failed")
)
