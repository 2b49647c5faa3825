package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/molar/internal/database"
	"github.com/BradenHooton/molar/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AttachmentRepository struct {
	pool *pgxpool.Pool
}

func NewAttachmentRepository(db *database.DB) *AttachmentRepository {
	return &AttachmentRepository{pool: db.Pool}
}

const attachmentColumns = `id, client_id, file_name, content_type, size_bytes, storage_key, created_at`

func scanAttachmentRow(scanner rowScanner) (*models.Attachment, error) {
	var a models.Attachment
	err := scanner.Scan(&a.ID, &a.ClientID, &a.FileName, &a.ContentType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

func scanAttachmentRows(rows pgx.Rows) ([]models.Attachment, error) {
	defer rows.Close()

	attachments := make([]models.Attachment, 0)
	for rows.Next() {
		a, err := scanAttachmentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return attachments, nil
}

// Create records an attachment whose object has already been stored; the
// caller supplies the id so it can be embedded in the storage key.
func (r *AttachmentRepository) Create(ctx context.Context, a *models.Attachment) (*models.Attachment, error) {
	query := `
		INSERT INTO attachments (id, client_id, file_name, content_type, size_bytes, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		a.ID, a.ClientID, a.FileName, a.ContentType, a.SizeBytes, a.StorageKey,
	).Scan(&a.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return a, nil
}

func (r *AttachmentRepository) ListByClient(ctx context.Context, clientID string) ([]models.Attachment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE client_id = $1 ORDER BY created_at, id`, clientID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanAttachmentRows(rows)
}

// ListOrphaned returns attachments of clients soft-deleted before the cutoff
func (r *AttachmentRepository) ListOrphaned(ctx context.Context, deactivatedBefore time.Time, limit int) ([]models.Attachment, error) {
	query := `
		SELECT a.id, a.client_id, a.file_name, a.content_type, a.size_bytes, a.storage_key, a.created_at
		FROM attachments a
		JOIN clients c ON c.id = a.client_id
		WHERE c.is_active = FALSE AND c.deactivated_at IS NOT NULL AND c.deactivated_at < $1
		ORDER BY a.created_at
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, deactivatedBefore, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanAttachmentRows(rows)
}

// DeleteByIDs removes attachment records and returns how many were deleted
func (r *AttachmentRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.pool.Exec(ctx, `DELETE FROM attachments WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
