package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/molar/internal/auth"
	"github.com/BradenHooton/molar/internal/metrics"
	"github.com/BradenHooton/molar/internal/models"
	"github.com/BradenHooton/molar/pkg/logger"
	"github.com/BradenHooton/molar/pkg/sanitize"
	"github.com/google/uuid"
)

// MaxBulkIDs caps the number of clients one bulk request may touch
const MaxBulkIDs = 500

// ClientRepository defines the storage operations on client records
type ClientRepository interface {
	List(ctx context.Context, q models.ClientQuery, now time.Time) (*models.ClientPage, error)
	GetByID(ctx context.Context, id string, now time.Time) (*models.ClientSummary, error)
	Create(ctx context.Context, client *models.Client) (*models.Client, error)
	UpdateStatus(ctx context.Context, id string, status models.ClientStatus) error
	BulkUpdateStatus(ctx context.Context, ids []string, status models.ClientStatus) (int64, error)
	BulkDeactivate(ctx context.Context, ids []string) (int64, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// TreatmentRepository defines the storage operations on treatments
type TreatmentRepository interface {
	Create(ctx context.Context, t *models.Treatment) (*models.Treatment, error)
	ListByClient(ctx context.Context, clientID string) ([]models.Treatment, error)
}

// AttachmentLister lists the attachments of one client
type AttachmentLister interface {
	ListByClient(ctx context.Context, clientID string) ([]models.Attachment, error)
}

// ClientDetail is a single client with its full treatment history
type ClientDetail struct {
	models.ClientSummary
	Treatments []models.Treatment
}

// ClientService implements the roster listing and client mutations
type ClientService struct {
	clients     ClientRepository
	treatments  TreatmentRepository
	attachments AttachmentLister
	logger      *slog.Logger
	audit       *logger.AuditLogger
	now         func() time.Time
}

// NewClientService creates a new ClientService
func NewClientService(clients ClientRepository, treatments TreatmentRepository, attachments AttachmentLister, log *slog.Logger) *ClientService {
	return &ClientService{
		clients:     clients,
		treatments:  treatments,
		attachments: attachments,
		logger:      log,
		audit:       logger.NewAuditLogger(log),
		now:         time.Now,
	}
}

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", models.ErrBadRequest, msg)
}

// NormalizeQuery fills defaults and rejects values outside the accepted ranges
func NormalizeQuery(q models.ClientQuery) (models.ClientQuery, error) {
	def := models.DefaultClientQuery()
	if q.Page == 0 {
		q.Page = def.Page
	}
	if q.Limit == 0 {
		q.Limit = def.Limit
	}
	if q.Status == "" {
		q.Status = def.Status
	}
	if q.SortBy == "" {
		q.SortBy = def.SortBy
	}
	if q.SortOrder == "" {
		q.SortOrder = def.SortOrder
	}
	q.Search = strings.TrimSpace(q.Search)

	if q.Page < 1 {
		return q, badRequest("page must be at least 1")
	}
	if q.Limit < 1 || q.Limit > models.MaxPageSize {
		return q, badRequest(fmt.Sprintf("limit must be between 1 and %d", models.MaxPageSize))
	}
	if len([]rune(q.Search)) > models.MaxSearchLength {
		return q, badRequest(fmt.Sprintf("search must be at most %d characters", models.MaxSearchLength))
	}
	switch q.Status {
	case models.FilterAll, models.FilterInTreatment, models.FilterCompleted:
	default:
		return q, badRequest("status must be one of: all inTreatment completed")
	}
	switch q.SortBy {
	case models.SortByName, models.SortByPhone, models.SortByLastVisit, models.SortByNextAppointment, models.SortByDateOfBirth:
	default:
		return q, badRequest("sortBy must be one of: name phone lastVisit nextAppointment dateOfBirth")
	}
	if q.SortOrder != models.SortAsc && q.SortOrder != models.SortDesc {
		return q, badRequest("sortOrder must be one of: asc desc")
	}
	return q, nil
}

// List returns one page of the roster
func (s *ClientService) List(ctx context.Context, q models.ClientQuery) (*models.ClientPage, error) {
	q, err := NormalizeQuery(q)
	if err != nil {
		return nil, err
	}

	defer metrics.TimeRosterList()()

	page, err := s.clients.List(ctx, q, s.now())
	if err != nil {
		s.logger.Error("failed to list clients", slog.Any("error", err))
		return nil, err
	}
	return page, nil
}

// Get returns a client with treatments, attachments and derived fields
func (s *ClientService) Get(ctx context.Context, id string) (*ClientDetail, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	now := s.now()
	summary, err := s.clients.GetByID(ctx, id, now)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to get client", slog.Any("error", err))
		}
		return nil, err
	}

	treatments, err := s.treatments.ListByClient(ctx, id)
	if err != nil {
		s.logger.Error("failed to list treatments", slog.Any("error", err))
		return nil, err
	}

	stats := models.SummarizeTreatments(treatments, now)
	summary.TreatmentCount = stats.TreatmentCount
	summary.LastVisit = stats.LastVisit
	summary.NextAppointment = stats.NextAppointment

	if s.attachments != nil {
		attachments, err := s.attachments.ListByClient(ctx, id)
		if err != nil {
			s.logger.Error("failed to list attachments", slog.Any("error", err))
			return nil, err
		}
		summary.Attachments = attachments
	}

	return &ClientDetail{ClientSummary: *summary, Treatments: treatments}, nil
}

// Create stores a new client after sanitizing its free-text fields
func (s *ClientService) Create(ctx context.Context, c *models.Client) (*models.Client, error) {
	c.FirstName = sanitize.Text(c.FirstName)
	c.LastName = sanitize.Text(c.LastName)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = sanitize.Text(c.Phone)
	c.Address = sanitize.Text(c.Address)
	c.MedicalNotes = sanitize.Text(c.MedicalNotes)
	c.Notes = sanitize.Text(c.Notes)

	if c.FirstName == "" || c.LastName == "" {
		return nil, badRequest("firstName and lastName are required")
	}
	if c.Status == "" {
		c.Status = models.StatusInTreatment
	}
	if !c.Status.Valid() {
		return nil, badRequest("status must be one of: inTreatment completed")
	}

	created, err := s.clients.Create(ctx, c)
	if err != nil {
		s.logger.Error("failed to create client", slog.Any("error", err))
		return nil, err
	}

	attrs := []any{slog.String("client_id", created.ID)}
	if created.Email != "" {
		attrs = append(attrs, slog.String("email", logger.SanitizedEmail(created.Email)))
	}
	s.logger.Info("client created", attrs...)
	return created, nil
}

// AddTreatment records a treatment against an active client
func (s *ClientService) AddTreatment(ctx context.Context, t *models.Treatment) (*models.Treatment, error) {
	if _, err := uuid.Parse(t.ClientID); err != nil {
		return nil, models.ErrNotFound
	}
	t.Procedure = sanitize.Text(t.Procedure)
	t.Tooth = sanitize.Text(t.Tooth)
	t.Notes = sanitize.Text(t.Notes)
	if t.Procedure == "" {
		return nil, badRequest("procedure is required")
	}
	if t.TreatmentDate.IsZero() {
		return nil, badRequest("treatmentDate is required")
	}
	if t.CostCents < 0 {
		return nil, badRequest("costCents cannot be negative")
	}

	exists, err := s.clients.Exists(ctx, t.ClientID)
	if err != nil {
		s.logger.Error("failed to check client", slog.Any("error", err))
		return nil, err
	}
	if !exists {
		return nil, models.ErrNotFound
	}

	created, err := s.treatments.Create(ctx, t)
	if err != nil {
		s.logger.Error("failed to create treatment", slog.Any("error", err))
		return nil, err
	}
	return created, nil
}

// UpdateStatus changes the status of one client
func (s *ClientService) UpdateStatus(ctx context.Context, id string, status models.ClientStatus) error {
	if !status.Valid() {
		return badRequest("status must be one of: inTreatment completed")
	}
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}
	if err := s.clients.UpdateStatus(ctx, id, status); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to update client status", slog.Any("error", err))
		}
		return err
	}
	metrics.RecordBulk("status", 1)
	return nil
}

// validateIDs checks count and format and removes duplicates
func validateIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, badRequest("ids must not be empty")
	}
	if len(ids) > MaxBulkIDs {
		return nil, badRequest(fmt.Sprintf("at most %d ids per request", MaxBulkIDs))
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(strings.TrimSpace(id))
		if err != nil {
			return nil, badRequest(fmt.Sprintf("invalid id %q", id))
		}
		key := parsed.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out, nil
}

// BulkUpdateStatus sets status on every listed active client and returns the
// number changed. Ids that do not match an active client are skipped.
func (s *ClientService) BulkUpdateStatus(ctx context.Context, ids []string, status models.ClientStatus) (int64, error) {
	if !status.Valid() {
		return 0, badRequest("status must be one of: inTreatment completed")
	}
	ids, err := validateIDs(ids)
	if err != nil {
		return 0, err
	}

	n, err := s.clients.BulkUpdateStatus(ctx, ids, status)
	if err != nil {
		s.logger.Error("failed to bulk update status", slog.Any("error", err), slog.Int("requested", len(ids)))
		return 0, err
	}
	metrics.RecordBulk("status", n)
	s.audit.LogBulkMutation(ctx, "bulk_status", auth.OperatorFromContext(ctx), len(ids), n)
	return n, nil
}

// BulkDelete soft-deletes every listed active client. Attachments stay in
// storage until the orphan cleanup removes them.
func (s *ClientService) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	ids, err := validateIDs(ids)
	if err != nil {
		return 0, err
	}

	n, err := s.clients.BulkDeactivate(ctx, ids)
	if err != nil {
		s.logger.Error("failed to bulk delete clients", slog.Any("error", err), slog.Int("requested", len(ids)))
		return 0, err
	}
	metrics.RecordBulk("delete", n)
	s.audit.LogBulkMutation(ctx, "bulk_delete", auth.OperatorFromContext(ctx), len(ids), n)
	return n, nil
}
