package roster

import (
	"context"
	"sync"
)

// Lister fetches one roster page; *Client implements it
type Lister interface {
	List(ctx context.Context, q QueryState) (*Page, error)
}

// Snapshot is what the view currently shows. After a failed load Rows is
// empty and Err holds the cause; calling Refresh again retries.
type Snapshot struct {
	Query               QueryState
	Rows                []Row
	Pagination          Pagination
	TotalClientsOverall int64
	Err                 error
	Seq                 uint64
}

// View applies query changes to a roster and keeps only the response of the
// most recently issued request. Starting a request cancels the one before it.
type View struct {
	lister Lister

	mu       sync.Mutex
	query    QueryState
	seq      uint64
	cancel   context.CancelFunc
	snapshot Snapshot
}

func NewView(lister Lister) *View {
	q := NewQueryState()
	return &View{
		lister:   lister,
		query:    q,
		snapshot: Snapshot{Query: q, Rows: []Row{}},
	}
}

// Query returns the current query state
func (v *View) Query() QueryState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

// Snapshot returns the last applied result
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot
}

// Update changes the query and loads the matching page
func (v *View) Update(ctx context.Context, change func(q *QueryState)) (Snapshot, bool) {
	v.mu.Lock()
	change(&v.query)
	v.mu.Unlock()
	return v.Refresh(ctx)
}

// Refresh loads the page for the current query. It reports false when a newer
// request superseded this one, in which case nothing was applied.
func (v *View) Refresh(ctx context.Context) (Snapshot, bool) {
	seq, q, reqCtx, cancel := v.begin(ctx)
	page, err := v.lister.List(reqCtx, q)
	cancel()

	v.mu.Lock()
	if seq != v.seq {
		v.mu.Unlock()
		return Snapshot{}, false
	}

	// Rows can shrink under a deep page, e.g. after a bulk delete
	if err == nil && page.Pagination.Pages > 0 && q.page > page.Pagination.Pages {
		v.query.page = 1
		v.mu.Unlock()
		return v.Refresh(ctx)
	}

	v.cancel = nil
	if err != nil {
		v.snapshot = Snapshot{Query: q, Rows: []Row{}, Err: err, Seq: seq}
	} else {
		v.snapshot = Snapshot{
			Query:               q,
			Rows:                page.Rows,
			Pagination:          page.Pagination,
			TotalClientsOverall: page.TotalClientsOverall,
			Seq:                 seq,
		}
	}
	snap := v.snapshot
	v.mu.Unlock()
	return snap, true
}

// begin issues a new sequence number and cancels the request in flight
func (v *View) begin(ctx context.Context) (uint64, QueryState, context.Context, context.CancelFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		v.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	v.seq++
	v.cancel = cancel
	return v.seq, v.query, reqCtx, cancel
}
