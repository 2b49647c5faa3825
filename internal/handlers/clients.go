package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/molar/internal/models"
	"github.com/BradenHooton/molar/internal/services"
	pkghttp "github.com/BradenHooton/molar/pkg/http"
	"github.com/go-chi/chi/v5"
)

// ClientServiceInterface defines the roster and client operations
type ClientServiceInterface interface {
	List(ctx context.Context, q models.ClientQuery) (*models.ClientPage, error)
	Get(ctx context.Context, id string) (*services.ClientDetail, error)
	Create(ctx context.Context, c *models.Client) (*models.Client, error)
	AddTreatment(ctx context.Context, t *models.Treatment) (*models.Treatment, error)
	UpdateStatus(ctx context.Context, id string, status models.ClientStatus) error
	BulkUpdateStatus(ctx context.Context, ids []string, status models.ClientStatus) (int64, error)
	BulkDelete(ctx context.Context, ids []string) (int64, error)
}

// AttachmentServiceInterface defines the attachment upload operation
type AttachmentServiceInterface interface {
	Upload(ctx context.Context, clientID, fileName string, body io.Reader) (*models.Attachment, error)
	MaxBytes() int64
}

// ClientHandler handles roster and client HTTP requests
type ClientHandler struct {
	service     ClientServiceInterface
	attachments AttachmentServiceInterface
	logger      *slog.Logger
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(service ClientServiceInterface, attachments AttachmentServiceInterface, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{service: service, attachments: attachments, logger: logger}
}

// Request DTOs

// CreateClientRequest represents the request body for creating a client
type CreateClientRequest struct {
	FirstName    string `json:"firstName" validate:"required,max=100"`
	LastName     string `json:"lastName" validate:"required,max=100"`
	Email        string `json:"email" validate:"omitempty,email,max=254"`
	Phone        string `json:"phone" validate:"omitempty,max=40"`
	DateOfBirth  string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Address      string `json:"address" validate:"omitempty,max=500"`
	Status       string `json:"status" validate:"omitempty,oneof=inTreatment completed"`
	MedicalNotes string `json:"medicalNotes" validate:"omitempty,max=5000"`
	Notes        string `json:"notes" validate:"omitempty,max=5000"`
}

// CreateTreatmentRequest represents the request body for recording a treatment
type CreateTreatmentRequest struct {
	TreatmentDate string `json:"treatmentDate" validate:"required"`
	Procedure     string `json:"procedure" validate:"required,max=200"`
	Tooth         string `json:"tooth" validate:"omitempty,max=20"`
	Notes         string `json:"notes" validate:"omitempty,max=5000"`
	CostCents     int64  `json:"costCents" validate:"gte=0"`
	FollowUpDate  string `json:"followUpDate"`
}

// UpdateStatusRequest represents the request body for a single status change
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=inTreatment completed"`
}

// BulkStatusRequest represents the request body for a bulk status change
type BulkStatusRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
	Status string   `json:"status" validate:"required,oneof=inTreatment completed"`
}

// BulkDeleteRequest represents the request body for a bulk soft delete
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
}

// parseListQuery reads roster parameters; defaults are filled by the service
func parseListQuery(r *http.Request) (models.ClientQuery, error) {
	v := r.URL.Query()
	q := models.ClientQuery{
		Search:    v.Get("search"),
		Status:    models.StatusFilter(v.Get("status")),
		SortBy:    models.SortField(v.Get("sortBy")),
		SortOrder: models.SortOrder(strings.ToLower(v.Get("sortOrder"))),
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &q.Page}, {"limit", &q.Limit}} {
		raw := strings.TrimSpace(v.Get(p.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%s must be an integer", p.name)
		}
		*p.dst = n
	}
	return q, nil
}

// badRequestMessage strips the sentinel prefix from a service validation error
func badRequestMessage(err error) string {
	return strings.TrimPrefix(err.Error(), models.ErrBadRequest.Error()+": ")
}

// writeServiceError translates service errors into the JSON envelope
func (h *ClientHandler) writeServiceError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, badRequestMessage(err))
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, notFound)
	case errors.Is(err, models.ErrStorageDisabled):
		pkghttp.WriteServiceUnavailable(w, "Attachment storage is not configured")
	case errors.Is(err, models.ErrFileTooLarge):
		pkghttp.WriteRequestTooLarge(w, fmt.Sprintf("File exceeds the %d byte limit", h.attachments.MaxBytes()))
	case errors.Is(err, models.ErrUnsupportedFileType):
		pkghttp.WriteUnsupportedMediaType(w, "Only JPEG, PNG, WebP and PDF files are accepted")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// ListClients returns one page of the roster
// @Summary List clients
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 30, max 100)"
// @Param search query string false "Name, phone or email substring"
// @Param status query string false "all, inTreatment or completed"
// @Param sortBy query string false "name, phone, lastVisit, nextAppointment or dateOfBirth"
// @Param sortOrder query string false "asc or desc"
// @Produce json
// @Success 200 {object} ClientListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ListErrorResponse
// @Router /clients [get]
func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	page, err := h.service.List(r.Context(), q)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, badRequestMessage(err))
			return
		}
		pkghttp.WriteJSON(w, http.StatusInternalServerError, ListErrorResponse{
			Success: false,
			Message: "Could not load clients. Please try again.",
			Data:    []ClientResponse{},
		})
		return
	}

	data := make([]ClientResponse, 0, len(page.Rows))
	for i := range page.Rows {
		data = append(data, toClientResponse(&page.Rows[i]))
	}
	pkghttp.WriteJSON(w, http.StatusOK, ClientListResponse{
		Success:             true,
		Data:                data,
		Pagination:          page.Pagination,
		TotalClientsOverall: page.TotalOverall,
	})
}

// GetClient returns a client with treatments and attachments
// @Summary Get client
// @Param id path string true "Client ID"
// @Produce json
// @Success 200 {object} ClientDetailResponse
// @Failure 404 {object} ErrorResponse
// @Router /clients/{id} [get]
func (h *ClientHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Client not found")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, DataResponse{Success: true, Data: toClientDetailResponse(detail)})
}

// CreateClient adds a client to the roster
func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	client := &models.Client{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		Status:       models.ClientStatus(req.Status),
		MedicalNotes: req.MedicalNotes,
		Notes:        req.Notes,
	}
	if req.DateOfBirth != "" {
		dob, _ := time.Parse(dateLayout, req.DateOfBirth)
		client.DateOfBirth = &dob
	}

	created, err := h.service.Create(r.Context(), client)
	if err != nil {
		h.writeServiceError(w, err, "Client not found")
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, DataResponse{
		Success: true,
		Data:    toClientResponse(&models.ClientSummary{Client: *created}),
	})
}

// AddTreatment records a treatment for a client
func (h *ClientHandler) AddTreatment(w http.ResponseWriter, r *http.Request) {
	var req CreateTreatmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	date, err := parseDate(req.TreatmentDate)
	if err != nil {
		pkghttp.WriteBadRequest(w, "treatmentDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		return
	}
	t := &models.Treatment{
		ClientID:      chi.URLParam(r, "id"),
		TreatmentDate: date,
		Procedure:     req.Procedure,
		Tooth:         req.Tooth,
		Notes:         req.Notes,
		CostCents:     req.CostCents,
	}
	if req.FollowUpDate != "" {
		followUp, err := parseDate(req.FollowUpDate)
		if err != nil {
			pkghttp.WriteBadRequest(w, "followUpDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
			return
		}
		t.FollowUpDate = &followUp
	}

	created, err := h.service.AddTreatment(r.Context(), t)
	if err != nil {
		h.writeServiceError(w, err, "Client not found")
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, DataResponse{Success: true, Data: toTreatmentResponse(created)})
}

// multipartOverhead allows for form boundaries and headers around the file part
const multipartOverhead = 64 << 10

// UploadAttachment stores a file sent as the "file" part of a multipart form
func (h *ClientHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.attachments.MaxBytes()+multipartOverhead)

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			h.writeServiceError(w, models.ErrFileTooLarge, "")
		case errors.Is(err, http.ErrNotMultipart):
			pkghttp.WriteUnsupportedMediaType(w, "Expected multipart/form-data")
		default:
			pkghttp.WriteBadRequest(w, "Invalid multipart form")
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		pkghttp.WriteBadRequest(w, "file is required")
		return
	}
	defer file.Close()

	att, err := h.attachments.Upload(r.Context(), chi.URLParam(r, "id"), header.Filename, file)
	if err != nil {
		h.writeServiceError(w, err, "Client not found")
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, DataResponse{Success: true, Data: toAttachmentResponse(att)})
}

// UpdateStatus changes one client's status
// @Summary Update client status
// @Param id path string true "Client ID"
// @Param request body UpdateStatusRequest true "New status"
// @Produce json
// @Success 200 {object} MutationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /clients/{id}/status [put]
func (h *ClientHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), models.ClientStatus(req.Status)); err != nil {
		h.writeServiceError(w, err, "Client not found")
		return
	}
	one := int64(1)
	pkghttp.WriteJSON(w, http.StatusOK, MutationResponse{
		Success:       true,
		Message:       "Client status updated",
		ModifiedCount: &one,
	})
}

// BulkUpdateStatus changes the status of several clients
// @Summary Bulk status update
// @Param request body BulkStatusRequest true "Client IDs and new status"
// @Produce json
// @Success 200 {object} MutationResponse
// @Failure 400 {object} ErrorResponse
// @Router /clients/bulk-status [post]
func (h *ClientHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	n, err := h.service.BulkUpdateStatus(r.Context(), req.IDs, models.ClientStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, err, "")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, MutationResponse{
		Success:       true,
		Message:       fmt.Sprintf("Updated %d client(s)", n),
		ModifiedCount: &n,
	})
}

// BulkDelete soft-deletes several clients
// @Summary Bulk soft delete
// @Param request body BulkDeleteRequest true "Client IDs"
// @Produce json
// @Success 200 {object} MutationResponse
// @Failure 400 {object} ErrorResponse
// @Router /clients/bulk-delete [post]
func (h *ClientHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	n, err := h.service.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		h.writeServiceError(w, err, "")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, MutationResponse{
		Success:      true,
		Message:      fmt.Sprintf("Deleted %d client(s)", n),
		DeletedCount: &n,
	})
}
