package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNewQueryState_Defaults(t *testing.T) {
	q := NewQueryState()

	assert.Equal(t, 1, q.Page())
	assert.Equal(t, "", q.Search())
	assert.Equal(t, StatusAll, q.Status())
	assert.Equal(t, SortByName, q.SortField())
	assert.Equal(t, Ascending, q.SortDirection())
}

func TestSetSortField_ResetsDirectionSearchAndPage(t *testing.T) {
	q := NewQueryState()
	q.SetSearch("ana")
	q.ToggleSortDirection()
	q.SetPage(4)

	q.SetSortField(SortByLastVisit)

	assert.Equal(t, SortByLastVisit, q.SortField())
	assert.Equal(t, Ascending, q.SortDirection())
	assert.Equal(t, "", q.Search())
	assert.Equal(t, 1, q.Page())
}

func TestSetSortField_SameFieldIsNoop(t *testing.T) {
	q := NewQueryState()
	q.SetSearch("ana")
	q.ToggleSortDirection()
	q.SetPage(3)

	q.SetSortField(SortByName)

	assert.Equal(t, Descending, q.SortDirection())
	assert.Equal(t, "ana", q.Search())
	assert.Equal(t, 3, q.Page())
}

func TestSetSearchAndStatus_ResetPage(t *testing.T) {
	q := NewQueryState()
	q.SetPage(5)
	q.SetSearch("555")
	assert.Equal(t, 1, q.Page())

	q.SetPage(5)
	q.SetStatus(StatusCompleted)
	assert.Equal(t, 1, q.Page())
	assert.Equal(t, StatusCompleted, q.Status())
}

func TestSetPage_ClampsToOne(t *testing.T) {
	q := NewQueryState()
	q.SetPage(0)
	assert.Equal(t, 1, q.Page())
	q.SetPage(-3)
	assert.Equal(t, 1, q.Page())
}

func TestParams(t *testing.T) {
	q := NewQueryState()
	v := q.Params()

	assert.Equal(t, "1", v.Get("page"))
	assert.Equal(t, "30", v.Get("limit"))
	assert.Equal(t, "all", v.Get("status"))
	assert.Equal(t, "name", v.Get("sortBy"))
	assert.Equal(t, "asc", v.Get("sortOrder"))
	_, hasSearch := v["search"]
	assert.False(t, hasSearch)

	q.SetSortField(SortByDateOfBirth)
	q.ToggleSortDirection()
	q.SetSearch("o'neil")
	q.SetPage(2)
	v = q.Params()

	assert.Equal(t, "2", v.Get("page"))
	assert.Equal(t, "o'neil", v.Get("search"))
	assert.Equal(t, "dateOfBirth", v.Get("sortBy"))
	assert.Equal(t, "desc", v.Get("sortOrder"))
}

func TestQueryState_Invariants(t *testing.T) {
	fields := []SortField{SortByName, SortByPhone, SortByLastVisit, SortByNextAppointment, SortByDateOfBirth}
	statuses := []StatusFilter{StatusAll, StatusInTreatment, StatusCompleted}

	rapid.Check(t, func(t *rapid.T) {
		q := NewQueryState()
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			before := q
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				f := rapid.SampledFrom(fields).Draw(t, "field")
				q.SetSortField(f)
				if f != before.SortField() {
					if q.SortDirection() != Ascending || q.Search() != "" || q.Page() != 1 {
						t.Fatalf("sort change did not reset: %+v", q)
					}
				}
			case 1:
				q.ToggleSortDirection()
				if q.SortDirection() == before.SortDirection() {
					t.Fatalf("direction did not flip")
				}
			case 2:
				q.SetSearch(rapid.StringN(0, 10, -1).Draw(t, "search"))
				if q.Page() != 1 {
					t.Fatalf("search did not reset page")
				}
			case 3:
				q.SetStatus(rapid.SampledFrom(statuses).Draw(t, "status"))
				if q.Page() != 1 {
					t.Fatalf("status did not reset page")
				}
			case 4:
				q.SetPage(rapid.IntRange(-5, 50).Draw(t, "page"))
			}
			if q.Page() < 1 {
				t.Fatalf("page below 1: %d", q.Page())
			}
		}
	})
}
