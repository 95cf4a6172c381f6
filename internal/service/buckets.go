package service

import "strings"

// 按文件类型划分的存储桶。新上传的文件根据扩展名落入对应的桶，
// 缩略图统一写入 BucketImagePreview，对象名与原图一致。
const (
	BucketImage        = "image"
	BucketVideo        = "video"
	BucketAudio        = "audio"
	BucketDocument     = "document"
	BucketArchive      = "archive"
	BucketOther        = "other"
	BucketImagePreview = "image-preview"
)

var suffixBuckets = map[string]string{
	"bmp": BucketImage, "gif": BucketImage, "ico": BucketImage,
	"jpe": BucketImage, "jpeg": BucketImage, "jpg": BucketImage,
	"png": BucketImage, "svg": BucketImage, "tif": BucketImage,
	"tiff": BucketImage, "webp": BucketImage,

	"avi": BucketVideo, "flv": BucketVideo, "m4v": BucketVideo,
	"mkv": BucketVideo, "mov": BucketVideo, "mp4": BucketVideo,
	"mpeg": BucketVideo, "mpg": BucketVideo, "webm": BucketVideo,
	"wmv": BucketVideo,

	"aac": BucketAudio, "flac": BucketAudio, "m4a": BucketAudio,
	"mp3": BucketAudio, "ogg": BucketAudio, "wav": BucketAudio,
	"wma": BucketAudio,

	"csv": BucketDocument, "doc": BucketDocument, "docx": BucketDocument,
	"md": BucketDocument, "pdf": BucketDocument, "ppt": BucketDocument,
	"pptx": BucketDocument, "txt": BucketDocument, "xls": BucketDocument,
	"xlsx": BucketDocument,

	"7z": BucketArchive, "bz2": BucketArchive, "gz": BucketArchive,
	"rar": BucketArchive, "tar": BucketArchive, "xz": BucketArchive,
	"zip": BucketArchive,
}

// BucketForSuffix 根据扩展名返回文件应落入的存储桶，未知类型归入 other。
func BucketForSuffix(suffix string) string {
	if bucket, ok := suffixBuckets[strings.ToLower(suffix)]; ok {
		return bucket
	}
	return BucketOther
}
