package handlers

import (
	"time"

	"github.com/BradenHooton/molar/internal/models"
	"github.com/BradenHooton/molar/internal/services"
)

// ClientResponse is the JSON shape of a roster row
type ClientResponse struct {
	ID              string               `json:"id"`
	FirstName       string               `json:"firstName"`
	LastName        string               `json:"lastName"`
	Email           string               `json:"email,omitempty"`
	Phone           string               `json:"phone,omitempty"`
	DateOfBirth     *string              `json:"dateOfBirth"`
	Address         string               `json:"address,omitempty"`
	Status          models.ClientStatus  `json:"status"`
	MedicalNotes    string               `json:"medicalNotes,omitempty"`
	Notes           string               `json:"notes,omitempty"`
	IsActive        bool                 `json:"isActive"`
	TreatmentCount  int                  `json:"treatmentCount"`
	LastVisit       *time.Time           `json:"lastVisit"`
	NextAppointment *time.Time           `json:"nextAppointment"`
	Attachments     []AttachmentResponse `json:"attachments,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// ClientDetailResponse is a client with its treatment history
type ClientDetailResponse struct {
	ClientResponse
	Treatments []TreatmentResponse `json:"treatments"`
}

// TreatmentResponse is the JSON shape of a treatment
type TreatmentResponse struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"clientId"`
	TreatmentDate time.Time  `json:"treatmentDate"`
	Procedure     string     `json:"procedure"`
	Tooth         string     `json:"tooth,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CostCents     int64      `json:"costCents"`
	FollowUpDate  *time.Time `json:"followUpDate"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// AttachmentResponse is the JSON shape of an attachment record
type AttachmentResponse struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ClientListResponse is the body of GET /clients
type ClientListResponse struct {
	Success             bool              `json:"success"`
	Data                []ClientResponse  `json:"data"`
	Pagination          models.Pagination `json:"pagination"`
	TotalClientsOverall int64             `json:"totalClientsOverall"`
}

// ListErrorResponse is returned when the roster could not be loaded
type ListErrorResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    []ClientResponse `json:"data"`
}

// MutationResponse is returned by status and bulk endpoints
type MutationResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ModifiedCount *int64 `json:"modifiedCount,omitempty"`
	DeletedCount  *int64 `json:"deletedCount,omitempty"`
}

// DataResponse wraps a single created or fetched resource
type DataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

const dateLayout = "2006-01-02"

func toClientResponse(s *models.ClientSummary) ClientResponse {
	resp := ClientResponse{
		ID:              s.ID,
		FirstName:       s.FirstName,
		LastName:        s.LastName,
		Email:           s.Email,
		Phone:           s.Phone,
		Address:         s.Address,
		Status:          s.Status,
		MedicalNotes:    s.MedicalNotes,
		Notes:           s.Notes,
		IsActive:        s.IsActive,
		TreatmentCount:  s.TreatmentCount,
		LastVisit:       s.LastVisit,
		NextAppointment: s.NextAppointment,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if s.DateOfBirth != nil {
		d := s.DateOfBirth.Format(dateLayout)
		resp.DateOfBirth = &d
	}
	for i := range s.Attachments {
		resp.Attachments = append(resp.Attachments, toAttachmentResponse(&s.Attachments[i]))
	}
	return resp
}

func toClientDetailResponse(d *services.ClientDetail) ClientDetailResponse {
	resp := ClientDetailResponse{
		ClientResponse: toClientResponse(&d.ClientSummary),
		Treatments:     make([]TreatmentResponse, 0, len(d.Treatments)),
	}
	for i := range d.Treatments {
		resp.Treatments = append(resp.Treatments, toTreatmentResponse(&d.Treatments[i]))
	}
	return resp
}

func toTreatmentResponse(t *models.Treatment) TreatmentResponse {
	return TreatmentResponse{
		ID:            t.ID,
		ClientID:      t.ClientID,
		TreatmentDate: t.TreatmentDate,
		Procedure:     t.Procedure,
		Tooth:         t.Tooth,
		Notes:         t.Notes,
		CostCents:     t.CostCents,
		FollowUpDate:  t.FollowUpDate,
		CreatedAt:     t.CreatedAt,
	}
}

func toAttachmentResponse(a *models.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt,
	}
}

// parseDate accepts a calendar date or an RFC 3339 timestamp
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
