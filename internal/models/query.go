package models

import "math"

const (
	DefaultPageSize = 30
	MaxPageSize     = 100
	MaxSearchLength = 100
)

// SortField is a roster column the operator can sort by.
type SortField string

const (
	SortByName            SortField = "name"
	SortByPhone           SortField = "phone"
	SortByLastVisit       SortField = "lastVisit"
	SortByNextAppointment SortField = "nextAppointment"
	SortByDateOfBirth     SortField = "dateOfBirth"
)

// SortOrder is the direction of a roster sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// StatusFilter narrows the roster by client status; "all" disables the filter.
type StatusFilter string

const (
	FilterAll         StatusFilter = "all"
	FilterInTreatment StatusFilter = StatusFilter(StatusInTreatment)
	FilterCompleted   StatusFilter = StatusFilter(StatusCompleted)
)

// ClientQuery is a validated roster listing request.
type ClientQuery struct {
	Page      int
	Limit     int
	Search    string
	Status    StatusFilter
	SortBy    SortField
	SortOrder SortOrder
}

// DefaultClientQuery returns the first page sorted by name ascending.
func DefaultClientQuery() ClientQuery {
	return ClientQuery{
		Page:      1,
		Limit:     DefaultPageSize,
		Status:    FilterAll,
		SortBy:    SortByName,
		SortOrder: SortAsc,
	}
}

// Offset is the number of rows skipped before the current page. It saturates
// at math.MaxInt instead of overflowing for very large pages.
func (q ClientQuery) Offset() int {
	if q.Page < 1 || q.Limit < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Pagination is the page metadata returned with a roster listing.
type Pagination struct {
	Current int   `json:"current"`
	Limit   int   `json:"limit"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

// NewPagination computes page metadata for a filtered total.
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Current: page,
		Limit:   limit,
		Pages:   pages,
		Total:   total,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

// ClientPage is one page of the roster plus the lifetime client count.
type ClientPage struct {
	Rows         []ClientSummary
	Pagination   Pagination
	TotalOverall int64
}
