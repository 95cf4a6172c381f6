package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"filegate/internal/repository"
	"filegate/internal/storage"
)

// memRepo 是内存版元数据仓库，按插入顺序匹配过滤条件。
type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	records []repository.FileMetadata

	listErr   error
	createErr error
	updateErr error
}

func (m *memRepo) seed(records ...repository.FileMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.nextID++
		if r.ID == 0 {
			r.ID = m.nextID
		}
		m.records = append(m.records, r)
	}
}

func (m *memRepo) byKey(fileKey string) *repository.FileMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].FileKey == fileKey {
			r := m.records[i]
			return &r
		}
	}
	return nil
}

func matches(f repository.Filter, r repository.FileMetadata) bool {
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

func (m *memRepo) List(ctx context.Context, f repository.Filter) ([]repository.FileMetadata, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.FileMetadata
	for _, r := range m.records {
		if matches(f, r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) GetOne(ctx context.Context, f repository.Filter) (*repository.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if matches(f, r) {
			record := r
			return &record, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memRepo) Create(ctx context.Context, record *repository.FileMetadata) (*repository.FileMetadata, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	created := *record
	created.ID = m.nextID
	m.records = append(m.records, created)
	return &created, nil
}

func (m *memRepo) Update(ctx context.Context, id int64, changes repository.FileUpdate) (*repository.FileMetadata, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
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
		m.records[i].UpdatedBy = changes.UpdatedBy
		updated := m.records[i]
		return &updated, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memRepo) Delete(ctx context.Context, id int64) (bool, error) {
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

// fakeStore 是内存版对象存储，分片按会话句柄归档。
type fakeStore struct {
	mu sync.Mutex

	sessionSeq int
	sessions   []string
	parts      map[string][]storage.Part // sessionID -> 已存储分片
	listErr    error

	finalizedParts []storage.Part
	finalizeCalls  int
	finalizeErr    error

	objects map[string][]byte // bucket/object -> 内容
	deleted []string
	buckets map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		parts:   make(map[string][]storage.Part),
		objects: make(map[string][]byte),
		buckets: make(map[string]bool),
	}
}

func objectKey(bucket, object string) string {
	return bucket + "/" + object
}

func (s *fakeStore) OpenSession(ctx context.Context, bucket, object, mimeType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionSeq++
	id := fmt.Sprintf("session-%d", s.sessionSeq)
	s.sessions = append(s.sessions, id)
	return id, nil
}

func (s *fakeStore) PartUploadURL(ctx context.Context, bucket, object, sessionID string, partIndex int) (string, error) {
	return fmt.Sprintf("https://upload.test/%s/%s?uploadId=%s&partNumber=%d", bucket, object, sessionID, partIndex), nil
}

func (s *fakeStore) ListParts(ctx context.Context, bucket, object, sessionID string) ([]storage.Part, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parts[sessionID], nil
}

func (s *fakeStore) Finalize(ctx context.Context, bucket, object, sessionID string, parts []storage.Part) error {
	if s.finalizeErr != nil {
		return s.finalizeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeCalls++
	s.finalizedParts = append([]storage.Part(nil), parts...)
	s.objects[objectKey(bucket, object)] = []byte("merged")
	return nil
}

func (s *fakeStore) PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, mimeType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey(bucket, object)] = data
	return nil
}

func (s *fakeStore) GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	s.mu.Lock()
	data, ok := s.objects[objectKey(bucket, object)]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, object)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStore) DeleteObject(ctx context.Context, bucket, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey(bucket, object))
	s.deleted = append(s.deleted, objectKey(bucket, object))
	return nil
}

func (s *fakeStore) EnsureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[bucket] = true
	return nil
}

func (s *fakeStore) DownloadURL(ctx context.Context, bucket, object, fileName, mimeType string) (string, error) {
	return fmt.Sprintf("https://dl.test/%s/%s?name=%s", bucket, object, fileName), nil
}

func (s *fakeStore) InlineURL(ctx context.Context, bucket, object, mimeType string) (string, error) {
	return fmt.Sprintf("https://view.test/%s/%s", bucket, object), nil
}

// countingCodec 记录缩略图生成次数的假编解码器。
type countingCodec struct {
	calls int
	out   []byte
	err   error
}

func (c *countingCodec) Thumbnail(r io.Reader, width, quality int) ([]byte, error) {
	c.calls++
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	if c.out == nil {
		return []byte("thumb"), nil
	}
	return c.out, nil
}

func newTestService(repo *memRepo, store *fakeStore, codec Thumbnailer) *StorageService {
	return New(repo, store, codec, nil, Options{})
}
