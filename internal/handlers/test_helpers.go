package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/molar/internal/auth"
	"github.com/BradenHooton/molar/internal/models"
	"github.com/BradenHooton/molar/internal/services"
	pkghttp "github.com/BradenHooton/molar/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithOperatorContext adds session claims to the request context for testing authenticated endpoints
func WithOperatorContext(req *http.Request, operator string) *http.Request {
	claims := &models.SessionClaims{Type: "session", Operator: operator}
	return req.WithContext(auth.WithSession(req.Context(), claims))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.False(t, resp.Success)
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLockoutGuard implements LockoutGuard for testing
type MockLockoutGuard struct {
	StatusFunc  func(ctx context.Context, deviceID string) (models.LockoutStatus, error)
	AttemptFunc func(ctx context.Context, deviceID string, creds auth.Credentials) (*models.AttemptResult, error)
}

func (m *MockLockoutGuard) Status(ctx context.Context, deviceID string) (models.LockoutStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, deviceID)
	}
	return models.LockoutStatus{State: models.LockoutOpen, RemainingAttempts: 6}, nil
}

func (m *MockLockoutGuard) Attempt(ctx context.Context, deviceID string, creds auth.Credentials) (*models.AttemptResult, error) {
	if m.AttemptFunc != nil {
		return m.AttemptFunc(ctx, deviceID, creds)
	}
	return nil, models.ErrInternalServer
}

// MockSessionIssuer implements SessionIssuer for testing
type MockSessionIssuer struct {
	GenerateSessionTokenFunc func(operator string) (string, time.Time, error)
}

func (m *MockSessionIssuer) GenerateSessionToken(operator string) (string, time.Time, error) {
	if m.GenerateSessionTokenFunc != nil {
		return m.GenerateSessionTokenFunc(operator)
	}
	return "session-token", time.Now().Add(time.Hour), nil
}

// MockClientService implements ClientServiceInterface for testing
type MockClientService struct {
	ListFunc             func(ctx context.Context, q models.ClientQuery) (*models.ClientPage, error)
	GetFunc              func(ctx context.Context, id string) (*services.ClientDetail, error)
	CreateFunc           func(ctx context.Context, c *models.Client) (*models.Client, error)
	AddTreatmentFunc     func(ctx context.Context, t *models.Treatment) (*models.Treatment, error)
	UpdateStatusFunc     func(ctx context.Context, id string, status models.ClientStatus) error
	BulkUpdateStatusFunc func(ctx context.Context, ids []string, status models.ClientStatus) (int64, error)
	BulkDeleteFunc       func(ctx context.Context, ids []string) (int64, error)
}

func (m *MockClientService) List(ctx context.Context, q models.ClientQuery) (*models.ClientPage, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, q)
	}
	return &models.ClientPage{Rows: []models.ClientSummary{}}, nil
}

func (m *MockClientService) Get(ctx context.Context, id string) (*services.ClientDetail, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockClientService) Create(ctx context.Context, c *models.Client) (*models.Client, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	return c, nil
}

func (m *MockClientService) AddTreatment(ctx context.Context, t *models.Treatment) (*models.Treatment, error) {
	if m.AddTreatmentFunc != nil {
		return m.AddTreatmentFunc(ctx, t)
	}
	return t, nil
}

func (m *MockClientService) UpdateStatus(ctx context.Context, id string, status models.ClientStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *MockClientService) BulkUpdateStatus(ctx context.Context, ids []string, status models.ClientStatus) (int64, error) {
	if m.BulkUpdateStatusFunc != nil {
		return m.BulkUpdateStatusFunc(ctx, ids, status)
	}
	return int64(len(ids)), nil
}

func (m *MockClientService) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	if m.BulkDeleteFunc != nil {
		return m.BulkDeleteFunc(ctx, ids)
	}
	return int64(len(ids)), nil
}

// MockAttachmentService implements AttachmentServiceInterface for testing
type MockAttachmentService struct {
	UploadFunc func(ctx context.Context, clientID, fileName string, body io.Reader) (*models.Attachment, error)
	Max        int64
}

func (m *MockAttachmentService) Upload(ctx context.Context, clientID, fileName string, body io.Reader) (*models.Attachment, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, clientID, fileName, body)
	}
	return nil, models.ErrStorageDisabled
}

func (m *MockAttachmentService) MaxBytes() int64 {
	if m.Max == 0 {
		return 10 << 20
	}
	return m.Max
}
