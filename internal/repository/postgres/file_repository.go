package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"filegate/internal/repository"
)

// NewFileRepository 返回基于 *sql.DB 的 Postgres 实现。
func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

// FileRepository 实现 repository.FileRepository。
type FileRepository struct {
	db *sql.DB
}

var fileSelectColumns = []string{
	"id",
	"file_key",
	"content_hash",
	"file_name",
	"storage_bucket",
	"storage_path",
	"mime_type",
	"suffix",
	"size_bytes",
	"upload_session_id",
	"is_finished",
	"is_chunked",
	"part_count",
	"has_preview",
	"is_private",
	"owner_id",
	"updated_by",
	"created_at",
	"updated_at",
}

var fileInsertColumns = []string{
	"file_key",
	"content_hash",
	"file_name",
	"storage_bucket",
	"storage_path",
	"mime_type",
	"suffix",
	"size_bytes",
	"upload_session_id",
	"is_finished",
	"is_chunked",
	"part_count",
	"has_preview",
	"is_private",
	"owner_id",
	"updated_by",
}

// Create 插入元数据记录并返回数据库生成字段（主键、时间戳）。
func (r *FileRepository) Create(ctx context.Context, record *repository.FileMetadata) (*repository.FileMetadata, error) {
	if record == nil {
		return nil, fmt.Errorf("file metadata record is nil")
	}

	placeholders := make([]string, len(fileInsertColumns))
	for i := range fileInsertColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`INSERT INTO file_metadata (%s)
	VALUES (%s)
	RETURNING %s`,
		strings.Join(fileInsertColumns, ","),
		strings.Join(placeholders, ","),
		strings.Join(fileSelectColumns, ","),
	)

	row := r.db.QueryRowContext(
		ctx,
		query,
		record.FileKey,
		record.ContentHash,
		record.FileName,
		record.Object.Bucket,
		record.Object.Path,
		record.Object.MimeType,
		record.Object.Suffix,
		record.Object.SizeBytes,
		record.UploadSessionID,
		record.IsFinished,
		record.IsChunked,
		record.PartCount,
		record.HasPreview,
		record.IsPrivate,
		record.OwnerID,
		record.UpdatedBy,
	)

	return scanFileMetadata(row)
}

// GetOne 按过滤条件取单条记录，不存在时返回 repository.ErrNotFound。
func (r *FileRepository) GetOne(ctx context.Context, f repository.Filter) (*repository.FileMetadata, error) {
	where, args := buildWhere(f)
	query := fmt.Sprintf(`SELECT %s FROM file_metadata %s LIMIT 1`,
		strings.Join(fileSelectColumns, ","), where)

	row := r.db.QueryRowContext(ctx, query, args...)
	record, err := scanFileMetadata(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// List 按过滤条件返回全部匹配记录。
func (r *FileRepository) List(ctx context.Context, f repository.Filter) ([]repository.FileMetadata, error) {
	where, args := buildWhere(f)
	query := fmt.Sprintf(`SELECT %s FROM file_metadata %s ORDER BY id`,
		strings.Join(fileSelectColumns, ","), where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []repository.FileMetadata
	for rows.Next() {
		record, err := scanFileMetadata(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Update 按主键做部分更新并返回更新后的记录。
func (r *FileRepository) Update(ctx context.Context, id int64, changes repository.FileUpdate) (*repository.FileMetadata, error) {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}

	if changes.UploadSessionID != nil {
		args = append(args, *changes.UploadSessionID)
		sets = append(sets, fmt.Sprintf("upload_session_id = $%d", len(args)))
	}
	if changes.IsFinished != nil {
		args = append(args, *changes.IsFinished)
		sets = append(sets, fmt.Sprintf("is_finished = $%d", len(args)))
	}
	if changes.HasPreview != nil {
		args = append(args, *changes.HasPreview)
		sets = append(sets, fmt.Sprintf("has_preview = $%d", len(args)))
	}
	if changes.UpdatedBy != "" {
		args = append(args, changes.UpdatedBy)
		sets = append(sets, fmt.Sprintf("updated_by = $%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE file_metadata SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), strings.Join(fileSelectColumns, ","))

	row := r.db.QueryRowContext(ctx, query, args...)
	record, err := scanFileMetadata(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// Delete 按主键删除记录，返回是否确有删除。
func (r *FileRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM file_metadata WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func buildWhere(f repository.Filter) (string, []any) {
	var conditions []string
	var args []any

	if f.FileKey != "" {
		args = append(args, f.FileKey)
		conditions = append(conditions, fmt.Sprintf("file_key = $%d", len(args)))
	}
	if f.ContentHash != "" {
		args = append(args, f.ContentHash)
		conditions = append(conditions, fmt.Sprintf("content_hash = $%d", len(args)))
	}
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if f.IsFinished != nil {
		args = append(args, *f.IsFinished)
		conditions = append(conditions, fmt.Sprintf("is_finished = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileMetadata(rs rowScanner) (*repository.FileMetadata, error) {
	var record repository.FileMetadata

	if err := rs.Scan(
		&record.ID,
		&record.FileKey,
		&record.ContentHash,
		&record.FileName,
		&record.Object.Bucket,
		&record.Object.Path,
		&record.Object.MimeType,
		&record.Object.Suffix,
		&record.Object.SizeBytes,
		&record.UploadSessionID,
		&record.IsFinished,
		&record.IsChunked,
		&record.PartCount,
		&record.HasPreview,
		&record.IsPrivate,
		&record.OwnerID,
		&record.UpdatedBy,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &record, nil
}
