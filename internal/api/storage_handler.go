package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"filegate/internal/middleware"
	"filegate/internal/service"

	"github.com/go-chi/chi/v5"
)

// StorageHandler 提供上传会话协调与文件访问的 HTTP 端点。
type StorageHandler struct {
	service           *service.StorageService
	singleUploadLimit int64
}

func NewStorageHandler(s *service.StorageService, singleUploadLimit int64) *StorageHandler {
	return &StorageHandler{service: s, singleUploadLimit: singleUploadLimit}
}

func (h *StorageHandler) RegisterRoutes(r chi.Router) {
	r.Route("/storage", func(r chi.Router) {
		r.Get("/upload/sharding", h.PreShard)
		r.Post("/upload/init", h.InitUpload)
		r.Post("/upload/complete", h.CompleteUpload)
		r.Post("/upload/file", h.UploadFile)
		r.Get("/download/url", h.DownloadURL)
		r.Get("/download/{fileKey}", h.DownloadFile)
		r.Get("/image", h.ImageURL)
		r.Get("/preview", h.PreviewURL)
		r.Delete("/{fileKey}", h.RemoveFile)
	})
}

type envelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

const multipartMemoryBudget int64 = 16 * 1024 * 1024

// PreShard 返回文件的分片区间计划，供客户端在 init 前逐片计算校验和。
func (h *StorageHandler) PreShard(w http.ResponseWriter, r *http.Request) {
	fileSize, err := strconv.ParseInt(r.URL.Query().Get("file_size"), 10, 64)
	if err != nil || fileSize <= 0 {
		writeError(w, http.StatusBadRequest, "file_size must be a positive integer")
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: h.service.PreShard(fileSize)})
}

type initUploadRequest struct {
	ContentHash string `json:"content_hash"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	IsPrivate   bool   `json:"is_private"`
}

// InitUpload 初始化上传任务：秒传、续传或全新会话。
func (h *StorageHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	var req initUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Init(r.Context(), service.InitInput{
		ContentHash: req.ContentHash,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		IsPrivate:   req.IsPrivate,
		OwnerID:     middleware.GetOwnerID(r.Context()),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: result})
}

type completeUploadRequest struct {
	FileKey    string   `json:"file_key"`
	PartHashes []string `json:"part_hashes"`
}

// CompleteUpload 对上传任务做对账：全部分片通过则合并完成，否则
// 返回需重传的分片目标。
func (h *StorageHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	var req completeUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.FileKey == "" {
		writeError(w, http.StatusBadRequest, "file_key is required")
		return
	}

	result, err := h.service.Complete(r.Context(), req.FileKey, req.PartHashes, middleware.GetOwnerID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: result})
}

// UploadFile 接受 multipart/form-data 小文件直传。
func (h *StorageHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.singleUploadLimit+multipartMemoryBudget)
	defer r.Body.Close()

	if err := r.ParseMultipartForm(multipartMemoryBudget); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Size > h.singleUploadLimit {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds single upload limit")
		return
	}

	isPrivate := r.FormValue("is_private") == "true"

	record, err := h.service.UploadSingle(r.Context(), service.UploadSingleInput{
		FileName:  header.Filename,
		SizeBytes: header.Size,
		IsPrivate: isPrivate,
		OwnerID:   middleware.GetOwnerID(r.Context()),
		Reader:    file,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{Data: record})
}

// DownloadURL 签发附件下载地址。
func (h *StorageHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	fileKey := r.URL.Query().Get("file_key")
	if fileKey == "" {
		writeError(w, http.StatusBadRequest, "file_key is required")
		return
	}

	downloadURL, err := h.service.Download(r.Context(), fileKey, middleware.GetOwnerID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: map[string]string{"url": downloadURL}})
}

// DownloadFile 由服务端回源并以附件形式返回文件内容。
func (h *StorageHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileKey := chi.URLParam(r, "fileKey")
	if fileKey == "" {
		writeError(w, http.StatusBadRequest, "file key is required")
		return
	}

	content, record, err := h.service.OpenDownload(r.Context(), fileKey, middleware.GetOwnerID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", record.Object.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(record.Object.SizeBytes, 10))

	if _, err := io.Copy(w, content); err != nil {
		// 客户端可能已断开，无法再写入错误响应
		return
	}
}

// ImageURL 签发原图内联访问地址。
func (h *StorageHandler) ImageURL(w http.ResponseWriter, r *http.Request) {
	fileKey := r.URL.Query().Get("file_key")
	if fileKey == "" {
		writeError(w, http.StatusBadRequest, "file_key is required")
		return
	}

	imageURL, err := h.service.Image(r.Context(), fileKey, middleware.GetOwnerID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: map[string]string{"url": imageURL}})
}

// PreviewURL 返回预览地址。非图片文件返回扩展名哨兵值，由前端渲染
// 类型图标。
func (h *StorageHandler) PreviewURL(w http.ResponseWriter, r *http.Request) {
	fileKey := r.URL.Query().Get("file_key")
	if fileKey == "" {
		writeError(w, http.StatusBadRequest, "file_key is required")
		return
	}

	previewURL, err := h.service.Preview(r.Context(), fileKey, middleware.GetOwnerID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: map[string]string{"url": previewURL}})
}

// RemoveFile 删除文件记录，幂等。
func (h *StorageHandler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	fileKey := chi.URLParam(r, "fileKey")
	if fileKey == "" {
		writeError(w, http.StatusBadRequest, "file key is required")
		return
	}

	removed, err := h.service.Remove(r.Context(), fileKey, middleware.GetOwnerID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: map[string]any{"file_key": fileKey, "removed": removed}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Error: message})
}

// writeServiceError 将业务错误映射为 HTTP 状态码。
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrFileNotFound):
		writeError(w, http.StatusNotFound, "file not found")
	case errors.Is(err, service.ErrPartCountMismatch):
		writeError(w, http.StatusBadRequest, "part count does not match upload plan")
	case errors.Is(err, service.ErrSuffixMissing):
		writeError(w, http.StatusBadRequest, "file name must carry an extension")
	case errors.Is(err, service.ErrPreviewFailed):
		writeError(w, http.StatusBadGateway, "preview generation failed")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
