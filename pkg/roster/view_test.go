package roster

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listerFunc func(ctx context.Context, q QueryState) (*Page, error)

func (f listerFunc) List(ctx context.Context, q QueryState) (*Page, error) {
	return f(ctx, q)
}

func pageOf(q QueryState, pages int, names ...string) *Page {
	rows := make([]Row, 0, len(names))
	for _, n := range names {
		rows = append(rows, Row{FirstName: n})
	}
	return &Page{
		Rows:       rows,
		Pagination: Pagination{Current: q.Page(), Limit: PageSize, Pages: pages},
	}
}

func TestView_AppliesLatestResponseOnly(t *testing.T) {
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})

	lister := listerFunc(func(ctx context.Context, q QueryState) (*Page, error) {
		if q.Search() == "slow" {
			close(slowStarted)
			<-releaseSlow
			return pageOf(q, 1, "Stale"), nil
		}
		return pageOf(q, 1, "Fresh"), nil
	})
	v := NewView(lister)

	var wg sync.WaitGroup
	var slowApplied bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, slowApplied = v.Update(context.Background(), func(q *QueryState) { q.SetSearch("slow") })
	}()

	<-slowStarted
	snap, applied := v.Update(context.Background(), func(q *QueryState) { q.SetSearch("fast") })
	require.True(t, applied)
	assert.Equal(t, "Fresh", snap.Rows[0].FirstName)

	close(releaseSlow)
	wg.Wait()

	assert.False(t, slowApplied)
	assert.Equal(t, "Fresh", v.Snapshot().Rows[0].FirstName)
	assert.Equal(t, "fast", v.Snapshot().Query.Search())
}

func TestView_NewRequestCancelsPrevious(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})

	lister := listerFunc(func(ctx context.Context, q QueryState) (*Page, error) {
		if q.Page() == 2 {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}
		return pageOf(q, 3, "Ana"), nil
	})
	v := NewView(lister)

	done := make(chan bool)
	go func() {
		_, applied := v.Update(context.Background(), func(q *QueryState) { q.SetPage(2) })
		done <- applied
	}()

	<-started
	_, applied := v.Update(context.Background(), func(q *QueryState) { q.SetPage(3) })
	assert.True(t, applied)

	<-cancelled
	assert.False(t, <-done)
}

func TestView_FailureYieldsEmptySnapshotAndRetries(t *testing.T) {
	fail := true
	lister := listerFunc(func(ctx context.Context, q QueryState) (*Page, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return pageOf(q, 1, "Ana"), nil
	})
	v := NewView(lister)

	snap, applied := v.Refresh(context.Background())
	require.True(t, applied)
	assert.Error(t, snap.Err)
	assert.Empty(t, snap.Rows)
	assert.NotNil(t, snap.Rows)

	fail = false
	snap, applied = v.Refresh(context.Background())
	require.True(t, applied)
	assert.NoError(t, snap.Err)
	assert.Len(t, snap.Rows, 1)
}

func TestView_PageBeyondRangeReloadsFirstPage(t *testing.T) {
	var requested []int
	lister := listerFunc(func(ctx context.Context, q QueryState) (*Page, error) {
		requested = append(requested, q.Page())
		if q.Page() > 2 {
			return pageOf(q, 2), nil
		}
		return pageOf(q, 2, "Ana"), nil
	})
	v := NewView(lister)

	snap, applied := v.Update(context.Background(), func(q *QueryState) { q.SetPage(7) })
	require.True(t, applied)

	assert.Equal(t, []int{7, 1}, requested)
	assert.Equal(t, 1, snap.Query.Page())
	assert.Equal(t, 1, v.Query().Page())
	assert.Len(t, snap.Rows, 1)
}

func TestView_EmptyRosterStaysOnPage(t *testing.T) {
	calls := 0
	lister := listerFunc(func(ctx context.Context, q QueryState) (*Page, error) {
		calls++
		return pageOf(q, 0), nil
	})
	v := NewView(lister)

	snap, applied := v.Update(context.Background(), func(q *QueryState) { q.SetPage(3) })
	require.True(t, applied)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, snap.Query.Page())
	assert.Empty(t, snap.Rows)
}
