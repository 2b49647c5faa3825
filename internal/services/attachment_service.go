package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/BradenHooton/molar/internal/metrics"
	"github.com/BradenHooton/molar/internal/models"
	"github.com/BradenHooton/molar/internal/storage"
	"github.com/BradenHooton/molar/pkg/sanitize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ObjectStore holds attachment bytes
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	DeleteByKeys(ctx context.Context, keys []string) ([]string, error)
}

// AttachmentRepository defines the storage operations on attachment records
type AttachmentRepository interface {
	Create(ctx context.Context, a *models.Attachment) (*models.Attachment, error)
	ListByClient(ctx context.Context, clientID string) ([]models.Attachment, error)
	ListOrphaned(ctx context.Context, deactivatedBefore time.Time, limit int) ([]models.Attachment, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// ClientChecker reports whether an active client exists
type ClientChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// allowedAttachmentTypes are the sniffed types accepted for upload
var allowedAttachmentTypes = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}

// AttachmentService stores client files such as x-rays and consent forms
type AttachmentService struct {
	repo     AttachmentRepository
	clients  ClientChecker
	store    ObjectStore
	maxBytes int64
	logger   *slog.Logger
}

// NewAttachmentService creates a new AttachmentService; store may be nil when storage is disabled
func NewAttachmentService(repo AttachmentRepository, clients ClientChecker, store ObjectStore, maxBytes int64, logger *slog.Logger) *AttachmentService {
	return &AttachmentService{
		repo:     repo,
		clients:  clients,
		store:    store,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// MaxBytes is the upload size limit
func (s *AttachmentService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores a file for a client. The content type is sniffed from the
// bytes; the name and declared type supplied by the browser are not trusted.
func (s *AttachmentService) Upload(ctx context.Context, clientID, fileName string, body io.Reader) (*models.Attachment, error) {
	if s.store == nil {
		return nil, models.ErrStorageDisabled
	}
	if _, err := uuid.Parse(clientID); err != nil {
		return nil, models.ErrNotFound
	}

	exists, err := s.clients.Exists(ctx, clientID)
	if err != nil {
		s.logger.Error("failed to check client", slog.Any("error", err))
		return nil, err
	}
	if !exists {
		return nil, models.ErrNotFound
	}

	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, models.ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, badRequest("file is empty")
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedAttachmentTypes...) {
		s.logger.Warn("rejected attachment type", slog.String("detected", mtype.String()))
		return nil, models.ErrUnsupportedFileType
	}

	att := &models.Attachment{
		ID:          uuid.New().String(),
		ClientID:    clientID,
		FileName:    sanitize.FileName(fileName),
		ContentType: mtype.String(),
		SizeBytes:   int64(len(data)),
	}
	att.StorageKey = storage.AttachmentKey(clientID, att.ID, att.FileName)

	if err := s.store.Put(ctx, att.StorageKey, att.ContentType, bytes.NewReader(data), att.SizeBytes); err != nil {
		s.logger.Error("failed to upload attachment", slog.Any("error", err))
		return nil, err
	}

	created, err := s.repo.Create(ctx, att)
	if err != nil {
		s.logger.Error("failed to record attachment", slog.Any("error", err))
		if _, delErr := s.store.DeleteByKeys(ctx, []string{att.StorageKey}); delErr != nil {
			s.logger.Warn("failed to remove unrecorded object", slog.Any("error", delErr))
		}
		return nil, err
	}

	s.logger.Info("attachment stored",
		slog.String("client_id", clientID),
		slog.String("content_type", created.ContentType),
		slog.Int64("size_bytes", created.SizeBytes))
	return created, nil
}

// PurgeOrphans removes the stored files of clients soft-deleted before the
// cutoff, one batch at a time. Records are dropped only for objects the store
// confirmed deleted.
func (s *AttachmentService) PurgeOrphans(ctx context.Context, deactivatedBefore time.Time, batchSize int) (int, error) {
	if s.store == nil {
		return 0, nil
	}

	total := 0
	for {
		orphans, err := s.repo.ListOrphaned(ctx, deactivatedBefore, batchSize)
		if err != nil {
			return total, fmt.Errorf("list orphaned attachments: %w", err)
		}
		if len(orphans) == 0 {
			return total, nil
		}

		byKey := make(map[string]string, len(orphans))
		keys := make([]string, 0, len(orphans))
		for _, a := range orphans {
			byKey[a.StorageKey] = a.ID
			keys = append(keys, a.StorageKey)
		}

		deletedKeys, err := s.store.DeleteByKeys(ctx, keys)
		ids := make([]string, 0, len(deletedKeys))
		for _, k := range deletedKeys {
			if id, ok := byKey[k]; ok {
				ids = append(ids, id)
			}
		}
		if _, dbErr := s.repo.DeleteByIDs(ctx, ids); dbErr != nil {
			return total, fmt.Errorf("delete attachment records: %w", dbErr)
		}
		total += len(ids)
		metrics.RecordOrphansRemoved(len(ids))

		if err != nil {
			return total, err
		}
		// Stop when the store refused some objects; they would be listed again forever.
		if len(ids) < len(orphans) || len(orphans) < batchSize {
			return total, nil
		}
	}
}
