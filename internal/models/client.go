package models

import (
	"time"
)

// ClientStatus is the treatment status of a clinic client.
type ClientStatus string

const (
	StatusInTreatment ClientStatus = "inTreatment"
	StatusCompleted   ClientStatus = "completed"
)

// Valid reports whether s is one of the stored client statuses.
func (s ClientStatus) Valid() bool {
	return s == StatusInTreatment || s == StatusCompleted
}

// Client is a patient record owned by the clinic.
type Client struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	DateOfBirth   *time.Time
	Address       string
	Status        ClientStatus
	MedicalNotes  string
	Notes         string
	IsActive      bool
	DeactivatedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ClientSummary is a roster row: the client plus fields derived from its treatments.
type ClientSummary struct {
	Client
	TreatmentCount  int
	LastVisit       *time.Time
	NextAppointment *time.Time
	Attachments     []Attachment
}

// Treatment is a single visit/procedure recorded against a client.
type Treatment struct {
	ID            string
	ClientID      string
	TreatmentDate time.Time
	Procedure     string
	Tooth         string
	Notes         string
	CostCents     int64
	FollowUpDate  *time.Time
	CreatedAt     time.Time
}

// Attachment references an uploaded file held in object storage.
type Attachment struct {
	ID          string
	ClientID    string
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageKey  string
	CreatedAt   time.Time
}

// TreatmentStats holds the values derived from a client's treatment history.
type TreatmentStats struct {
	TreatmentCount  int
	LastVisit       *time.Time
	NextAppointment *time.Time
}

// SummarizeTreatments derives count, last visit and next appointment.
// Last visit is the latest treatment date not after now; next appointment is
// the earliest follow-up strictly after now. Past follow-ups are ignored.
func SummarizeTreatments(treatments []Treatment, now time.Time) TreatmentStats {
	stats := TreatmentStats{TreatmentCount: len(treatments)}
	for i := range treatments {
		t := &treatments[i]
		if !t.TreatmentDate.After(now) {
			if stats.LastVisit == nil || t.TreatmentDate.After(*stats.LastVisit) {
				d := t.TreatmentDate
				stats.LastVisit = &d
			}
		}
		if t.FollowUpDate != nil && t.FollowUpDate.After(now) {
			if stats.NextAppointment == nil || t.FollowUpDate.Before(*stats.NextAppointment) {
				d := *t.FollowUpDate
				stats.NextAppointment = &d
			}
		}
	}
	return stats
}
