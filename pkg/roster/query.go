// Package roster is a Go client for the clinic roster listing. It keeps the
// operator's query state consistent and applies only the newest response.
package roster

import (
	"net/url"
	"strconv"
)

// PageSize is the number of rows the dashboard requests per page
const PageSize = 30

type SortField string

const (
	SortByName            SortField = "name"
	SortByPhone           SortField = "phone"
	SortByLastVisit       SortField = "lastVisit"
	SortByNextAppointment SortField = "nextAppointment"
	SortByDateOfBirth     SortField = "dateOfBirth"
)

type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

type StatusFilter string

const (
	StatusAll         StatusFilter = "all"
	StatusInTreatment StatusFilter = "inTreatment"
	StatusCompleted   StatusFilter = "completed"
)

// QueryState is the roster query the operator has built up. The zero value is
// not ready for use; start from NewQueryState.
type QueryState struct {
	page      int
	search    string
	status    StatusFilter
	sortField SortField
	sortDir   SortDirection
}

// NewQueryState returns page 1 of all clients sorted by name ascending
func NewQueryState() QueryState {
	return QueryState{
		page:      1,
		status:    StatusAll,
		sortField: SortByName,
		sortDir:   Ascending,
	}
}

func (q QueryState) Page() int                    { return q.page }
func (q QueryState) Search() string               { return q.search }
func (q QueryState) Status() StatusFilter         { return q.status }
func (q QueryState) SortField() SortField         { return q.sortField }
func (q QueryState) SortDirection() SortDirection { return q.sortDir }

// SetSortField switches the sort column. A different column resets the
// direction to ascending, clears the search and returns to page 1; choosing
// the current column changes nothing.
func (q *QueryState) SetSortField(field SortField) {
	if field == q.sortField {
		return
	}
	q.sortField = field
	q.sortDir = Ascending
	q.search = ""
	q.page = 1
}

// ToggleSortDirection flips between ascending and descending
func (q *QueryState) ToggleSortDirection() {
	if q.sortDir == Descending {
		q.sortDir = Ascending
		return
	}
	q.sortDir = Descending
}

// SetSearch replaces the search term and returns to page 1
func (q *QueryState) SetSearch(term string) {
	q.search = term
	q.page = 1
}

// SetStatus replaces the status filter and returns to page 1
func (q *QueryState) SetStatus(status StatusFilter) {
	q.status = status
	q.page = 1
}

// SetPage moves to page n; pages below 1 clamp to 1
func (q *QueryState) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	q.page = n
}

// Params encodes the query for GET /clients. An empty search is omitted.
func (q QueryState) Params() url.Values {
	v := url.Values{}
	page := q.page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("limit", strconv.Itoa(PageSize))
	if q.search != "" {
		v.Set("search", q.search)
	}
	status := q.status
	if status == "" {
		status = StatusAll
	}
	v.Set("status", string(status))
	if q.sortField != "" {
		v.Set("sortBy", string(q.sortField))
	}
	if q.sortDir != "" {
		v.Set("sortOrder", string(q.sortDir))
	}
	return v
}
