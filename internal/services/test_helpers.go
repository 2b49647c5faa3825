package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/BradenHooton/molar/internal/auth"
	"github.com/BradenHooton/molar/internal/models"
)

// MemoryLockoutStore is a LockoutStore kept in a map
type MemoryLockoutStore struct {
	mu     sync.Mutex
	states map[string]models.LoginAttemptState
}

func NewMemoryLockoutStore() *MemoryLockoutStore {
	return &MemoryLockoutStore{states: make(map[string]models.LoginAttemptState)}
}

func (m *MemoryLockoutStore) Get(_ context.Context, deviceID string) (*models.LoginAttemptState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.states[deviceID]
	return &s, nil
}

func (m *MemoryLockoutStore) Save(_ context.Context, deviceID string, state *models.LoginAttemptState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[deviceID] = *state
	return nil
}

func (m *MemoryLockoutStore) Clear(_ context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, deviceID)
	return nil
}

// MockLockoutStore implements LockoutStore for testing
type MockLockoutStore struct {
	GetFunc   func(ctx context.Context, deviceID string) (*models.LoginAttemptState, error)
	SaveFunc  func(ctx context.Context, deviceID string, state *models.LoginAttemptState) error
	ClearFunc func(ctx context.Context, deviceID string) error
}

func (m *MockLockoutStore) Get(ctx context.Context, deviceID string) (*models.LoginAttemptState, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, deviceID)
	}
	return &models.LoginAttemptState{}, nil
}

func (m *MockLockoutStore) Save(ctx context.Context, deviceID string, state *models.LoginAttemptState) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, deviceID, state)
	}
	return nil
}

func (m *MockLockoutStore) Clear(ctx context.Context, deviceID string) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, deviceID)
	}
	return nil
}

// MockVerifier implements auth.CredentialVerifier and counts calls
type MockVerifier struct {
	mu         sync.Mutex
	Calls      int
	VerifyFunc func(ctx context.Context, creds auth.Credentials) error
}

func (m *MockVerifier) Verify(ctx context.Context, creds auth.Credentials) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, creds)
	}
	return models.ErrInvalidCredentials
}

// MockDelayer implements Delayer for testing
type MockDelayer struct {
	Calls    int
	WaitFunc func(ctx context.Context) error
}

func (m *MockDelayer) Wait(ctx context.Context) error {
	m.Calls++
	if m.WaitFunc != nil {
		return m.WaitFunc(ctx)
	}
	return nil
}

// FakeClock is a settable time source
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockClientRepository implements ClientRepository for testing
type MockClientRepository struct {
	ListFunc             func(ctx context.Context, q models.ClientQuery, now time.Time) (*models.ClientPage, error)
	GetByIDFunc          func(ctx context.Context, id string, now time.Time) (*models.ClientSummary, error)
	CreateFunc           func(ctx context.Context, client *models.Client) (*models.Client, error)
	UpdateStatusFunc     func(ctx context.Context, id string, status models.ClientStatus) error
	BulkUpdateStatusFunc func(ctx context.Context, ids []string, status models.ClientStatus) (int64, error)
	BulkDeactivateFunc   func(ctx context.Context, ids []string) (int64, error)
	ExistsFunc           func(ctx context.Context, id string) (bool, error)
}

func (m *MockClientRepository) List(ctx context.Context, q models.ClientQuery, now time.Time) (*models.ClientPage, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, q, now)
	}
	return &models.ClientPage{Rows: []models.ClientSummary{}, Pagination: models.NewPagination(q.Page, q.Limit, 0)}, nil
}

func (m *MockClientRepository) GetByID(ctx context.Context, id string, now time.Time) (*models.ClientSummary, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id, now)
	}
	return nil, models.ErrNotFound
}

func (m *MockClientRepository) Create(ctx context.Context, client *models.Client) (*models.Client, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, client)
	}
	return nil, models.ErrInternalServer
}

func (m *MockClientRepository) UpdateStatus(ctx context.Context, id string, status models.ClientStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return models.ErrNotFound
}

func (m *MockClientRepository) BulkUpdateStatus(ctx context.Context, ids []string, status models.ClientStatus) (int64, error) {
	if m.BulkUpdateStatusFunc != nil {
		return m.BulkUpdateStatusFunc(ctx, ids, status)
	}
	return 0, nil
}

func (m *MockClientRepository) BulkDeactivate(ctx context.Context, ids []string) (int64, error) {
	if m.BulkDeactivateFunc != nil {
		return m.BulkDeactivateFunc(ctx, ids)
	}
	return 0, nil
}

func (m *MockClientRepository) Exists(ctx context.Context, id string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, id)
	}
	return false, nil
}

// MockTreatmentRepository implements TreatmentRepository for testing
type MockTreatmentRepository struct {
	CreateFunc       func(ctx context.Context, t *models.Treatment) (*models.Treatment, error)
	ListByClientFunc func(ctx context.Context, clientID string) ([]models.Treatment, error)
}

func (m *MockTreatmentRepository) Create(ctx context.Context, t *models.Treatment) (*models.Treatment, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	return t, nil
}

func (m *MockTreatmentRepository) ListByClient(ctx context.Context, clientID string) ([]models.Treatment, error) {
	if m.ListByClientFunc != nil {
		return m.ListByClientFunc(ctx, clientID)
	}
	return []models.Treatment{}, nil
}

// MockAttachmentRepository implements AttachmentRepository for testing
type MockAttachmentRepository struct {
	CreateFunc       func(ctx context.Context, a *models.Attachment) (*models.Attachment, error)
	ListByClientFunc func(ctx context.Context, clientID string) ([]models.Attachment, error)
	ListOrphanedFunc func(ctx context.Context, before time.Time, limit int) ([]models.Attachment, error)
	DeleteByIDsFunc  func(ctx context.Context, ids []string) (int64, error)
}

func (m *MockAttachmentRepository) Create(ctx context.Context, a *models.Attachment) (*models.Attachment, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, a)
	}
	return a, nil
}

func (m *MockAttachmentRepository) ListByClient(ctx context.Context, clientID string) ([]models.Attachment, error) {
	if m.ListByClientFunc != nil {
		return m.ListByClientFunc(ctx, clientID)
	}
	return []models.Attachment{}, nil
}

func (m *MockAttachmentRepository) ListOrphaned(ctx context.Context, before time.Time, limit int) ([]models.Attachment, error) {
	if m.ListOrphanedFunc != nil {
		return m.ListOrphanedFunc(ctx, before, limit)
	}
	return nil, nil
}

func (m *MockAttachmentRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if m.DeleteByIDsFunc != nil {
		return m.DeleteByIDsFunc(ctx, ids)
	}
	return int64(len(ids)), nil
}

// MockObjectStore implements ObjectStore for testing
type MockObjectStore struct {
	PutFunc          func(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	DeleteByKeysFunc func(ctx context.Context, keys []string) ([]string, error)
}

func (m *MockObjectStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, contentType, body, size)
	}
	return nil
}

func (m *MockObjectStore) DeleteByKeys(ctx context.Context, keys []string) ([]string, error) {
	if m.DeleteByKeysFunc != nil {
		return m.DeleteByKeysFunc(ctx, keys)
	}
	return keys, nil
}
