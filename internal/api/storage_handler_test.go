package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"filegate/internal/middleware"
	"filegate/internal/repository"
	"filegate/internal/service"
	"filegate/internal/storage"

	"github.com/go-chi/chi/v5"
)

type handlerRepo struct {
	mu      sync.Mutex
	nextID  int64
	records []repository.FileMetadata
}

func (m *handlerRepo) match(f repository.Filter, r repository.FileMetadata) bool {
	if f.FileKey != "" && r.FileKey != f.FileKey {
		return false
	}
	if f.ContentHash != "" && r.ContentHash != f.ContentHash {
		return false
	}
	if f.OwnerID != "" && r.OwnerID != f.OwnerID {
		return false
	}
	if f.IsFinished != nil && r.IsFinished != *f.IsFinished {
		return false
	}
	return true
}

func (m *handlerRepo) List(ctx context.Context, f repository.Filter) ([]repository.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.FileMetadata
	for _, r := range m.records {
		if m.match(f, r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *handlerRepo) GetOne(ctx context.Context, f repository.Filter) (*repository.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if m.match(f, r) {
			record := r
			return &record, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *handlerRepo) Create(ctx context.Context, record *repository.FileMetadata) (*repository.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	created := *record
	created.ID = m.nextID
	m.records = append(m.records, created)
	return &created, nil
}

func (m *handlerRepo) Update(ctx context.Context, id int64, changes repository.FileUpdate) (*repository.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID != id {
			continue
		}
		if changes.UploadSessionID != nil {
			m.records[i].UploadSessionID = *changes.UploadSessionID
		}
		if changes.IsFinished != nil {
			m.records[i].IsFinished = *changes.IsFinished
		}
		if changes.HasPreview != nil {
			m.records[i].HasPreview = *changes.HasPreview
		}
		updated := m.records[i]
		return &updated, nil
	}
	return nil, repository.ErrNotFound
}

func (m *handlerRepo) Delete(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type handlerStore struct {
	mu       sync.Mutex
	sessions int
	objects  map[string][]byte
}

func newHandlerStore() *handlerStore {
	return &handlerStore{objects: make(map[string][]byte)}
}

func (s *handlerStore) OpenSession(ctx context.Context, bucket, object, mimeType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions++
	return fmt.Sprintf("session-%d", s.sessions), nil
}

func (s *handlerStore) PartUploadURL(ctx context.Context, bucket, object, sessionID string, partIndex int) (string, error) {
	return fmt.Sprintf("https://upload.test/%s/%s?partNumber=%d", bucket, object, partIndex), nil
}

func (s *handlerStore) ListParts(ctx context.Context, bucket, object, sessionID string) ([]storage.Part, error) {
	return nil, nil
}

func (s *handlerStore) Finalize(ctx context.Context, bucket, object, sessionID string, parts []storage.Part) error {
	return nil
}

func (s *handlerStore) PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, mimeType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+object] = data
	return nil
}

func (s *handlerStore) GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	s.mu.Lock()
	data, ok := s.objects[bucket+"/"+object]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, object)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *handlerStore) DeleteObject(ctx context.Context, bucket, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+object)
	return nil
}

func (s *handlerStore) EnsureBucket(ctx context.Context, bucket string) error { return nil }

func (s *handlerStore) DownloadURL(ctx context.Context, bucket, object, fileName, mimeType string) (string, error) {
	return "https://dl.test/" + bucket + "/" + object, nil
}

func (s *handlerStore) InlineURL(ctx context.Context, bucket, object, mimeType string) (string, error) {
	return "https://view.test/" + bucket + "/" + object, nil
}

func newTestRouter(repo *handlerRepo, store *handlerStore) http.Handler {
	svc := service.New(repo, store, nil, nil, service.Options{})
	handler := NewStorageHandler(svc, 1024*1024)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func asOwner(req *http.Request, owner string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.OwnerContextKey{}, owner))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body.Data
}

func TestStorageHandler_PreShard(t *testing.T) {
	router := newTestRouter(&handlerRepo{}, newHandlerStore())

	req := httptest.NewRequest(http.MethodGet, "/storage/upload/sharding?file_size=10000000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	if data["part_count"].(float64) != 2 {
		t.Fatalf("expected 2 parts, got %v", data["part_count"])
	}
}

func TestStorageHandler_PreShard_InvalidSize(t *testing.T) {
	router := newTestRouter(&handlerRepo{}, newHandlerStore())

	req := httptest.NewRequest(http.MethodGet, "/storage/upload/sharding?file_size=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStorageHandler_InitUpload_Fresh(t *testing.T) {
	repo := &handlerRepo{}
	router := newTestRouter(repo, newHandlerStore())

	payload := `{"content_hash":"abc123","file_name":"movie.mp4","file_size":10000000}`
	req := asOwner(httptest.NewRequest(http.MethodPost, "/storage/upload/init", strings.NewReader(payload)), "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	if data["is_dedup_complete"].(bool) {
		t.Fatal("fresh upload must not report dedup")
	}
	parts := data["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected 2 upload targets, got %d", len(parts))
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected one metadata record, got %d", len(repo.records))
	}
}

func TestStorageHandler_InitUpload_UnknownField(t *testing.T) {
	router := newTestRouter(&handlerRepo{}, newHandlerStore())

	payload := `{"content_hash":"abc","file_name":"a.jpg","file_size":10,"bogus":true}`
	req := asOwner(httptest.NewRequest(http.MethodPost, "/storage/upload/init", strings.NewReader(payload)), "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestStorageHandler_CompleteUpload_UnknownKey(t *testing.T) {
	router := newTestRouter(&handlerRepo{}, newHandlerStore())

	payload := `{"file_key":"ghost","part_hashes":["a"]}`
	req := asOwner(httptest.NewRequest(http.MethodPost, "/storage/upload/complete", strings.NewReader(payload)), "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStorageHandler_UploadFile(t *testing.T) {
	repo := &handlerRepo{}
	store := newHandlerStore()
	router := newTestRouter(repo, store)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "note.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("hello world")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	form.Close()

	req := asOwner(httptest.NewRequest(http.MethodPost, "/storage/upload/file", &buf), "alice")
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected one metadata record, got %d", len(repo.records))
	}
	if !repo.records[0].IsFinished {
		t.Fatal("single upload record must be finished")
	}
	if len(store.objects) != 1 {
		t.Fatalf("expected stored object, got %d", len(store.objects))
	}
}

func TestStorageHandler_DownloadFile_NotFound(t *testing.T) {
	router := newTestRouter(&handlerRepo{}, newHandlerStore())

	req := asOwner(httptest.NewRequest(http.MethodGet, "/storage/download/ghost", nil), "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStorageHandler_DownloadFile_StreamsAttachment(t *testing.T) {
	repo := &handlerRepo{}
	store := newHandlerStore()
	repo.records = append(repo.records, repository.FileMetadata{
		ID:          1,
		FileKey:     "pub",
		ContentHash: "hash-1",
		FileName:    "note.txt",
		Object: repository.ObjectLocation{
			Bucket:    "document",
			Path:      "2026/08",
			MimeType:  "text/plain; charset=utf-8",
			Suffix:    "txt",
			SizeBytes: 11,
		},
		IsFinished: true,
		OwnerID:    "alice",
	})
	store.objects["document/2026/08/hash-1"] = []byte("hello world")
	router := newTestRouter(repo, store)

	req := httptest.NewRequest(http.MethodGet, "/storage/download/pub", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "hello world" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "note.txt") {
		t.Fatalf("attachment must carry the file name, got %s", rec.Header().Get("Content-Disposition"))
	}
}

func TestStorageHandler_RemoveFile(t *testing.T) {
	repo := &handlerRepo{}
	repo.records = append(repo.records, repository.FileMetadata{
		ID:          1,
		FileKey:     "mine",
		ContentHash: "hash-1",
		Object:      repository.ObjectLocation{Bucket: "other", Path: "2026/08"},
		IsFinished:  true,
		OwnerID:     "alice",
	})
	router := newTestRouter(repo, newHandlerStore())

	req := asOwner(httptest.NewRequest(http.MethodDelete, "/storage/mine", nil), "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.records) != 0 {
		t.Fatal("record must be deleted")
	}
}
