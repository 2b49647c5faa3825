package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/molar/internal/handlers"
	"github.com/BradenHooton/molar/internal/models"
	"github.com/BradenHooton/molar/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "0b6d2c1e-8f0a-4c55-9f1e-3b7a9e2d4c10"

func clientRouter(svc handlers.ClientServiceInterface, att handlers.AttachmentServiceInterface) http.Handler {
	h := handlers.NewClientHandler(svc, att, slog.Default())
	r := chi.NewRouter()
	r.Get("/clients", h.ListClients)
	r.Post("/clients", h.CreateClient)
	r.Post("/clients/bulk-status", h.BulkUpdateStatus)
	r.Post("/clients/bulk-delete", h.BulkDelete)
	r.Get("/clients/{id}", h.GetClient)
	r.Put("/clients/{id}/status", h.UpdateStatus)
	r.Post("/clients/{id}/treatments", h.AddTreatment)
	r.Post("/clients/{id}/attachments", h.UploadAttachment)
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestListClients_Success(t *testing.T) {
	var got models.ClientQuery
	visit := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	svc := &handlers.MockClientService{
		ListFunc: func(ctx context.Context, q models.ClientQuery) (*models.ClientPage, error) {
			got = q
			return &models.ClientPage{
				Rows: []models.ClientSummary{{
					Client:         models.Client{ID: testClientID, FirstName: "Ana", LastName: "Silva", Status: models.StatusInTreatment, IsActive: true},
					TreatmentCount: 2,
					LastVisit:      &visit,
				}},
				Pagination:   models.NewPagination(2, 10, 11),
				TotalOverall: 40,
			}, nil
		},
	}

	w := serve(clientRouter(svc, &handlers.MockAttachmentService{}),
		httptest.NewRequest("GET", "/clients?page=2&limit=10&search=ana&status=inTreatment&sortBy=lastVisit&sortOrder=DESC", nil))

	var resp handlers.ClientListResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Ana", resp.Data[0].FirstName)
	assert.Equal(t, 2, resp.Data[0].TreatmentCount)
	assert.Nil(t, resp.Data[0].NextAppointment)
	assert.Equal(t, models.Pagination{Current: 2, Limit: 10, Pages: 2, Total: 11, HasNext: false, HasPrev: true}, resp.Pagination)
	assert.Equal(t, int64(40), resp.TotalClientsOverall)

	assert.Equal(t, models.ClientQuery{Page: 2, Limit: 10, Search: "ana", Status: "inTreatment", SortBy: "lastVisit", SortOrder: "desc"}, got)
}

func TestListClients_ZeroTreatmentClientShape(t *testing.T) {
	svc := &handlers.MockClientService{
		ListFunc: func(ctx context.Context, q models.ClientQuery) (*models.ClientPage, error) {
			return &models.ClientPage{
				Rows:       []models.ClientSummary{{Client: models.Client{ID: testClientID, FirstName: "Bo"}}},
				Pagination: models.NewPagination(1, 30, 1),
			}, nil
		},
	}

	w := serve(clientRouter(svc, &handlers.MockAttachmentService{}), httptest.NewRequest("GET", "/clients", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"treatmentCount":0`)
	assert.Contains(t, body, `"lastVisit":null`)
	assert.Contains(t, body, `"nextAppointment":null`)
}

func TestListClients_NonIntegerPage(t *testing.T) {
	w := serve(clientRouter(&handlers.MockClientService{}, &handlers.MockAttachmentService{}), httptest.NewRequest("GET", "/clients?page=two", nil))

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	assert.Contains(t, w.Body.String(), "page must be an integer")
}

func TestListClients_ServiceValidationError(t *testing.T) {
	svc := &handlers.MockClientService{
		ListFunc: func(ctx context.Context, q models.ClientQuery) (*models.ClientPage, error) {
			_, err := services.NormalizeQuery(q)
			return nil, err
		},
	}

	w := serve(clientRouter(svc, &handlers.MockAttachmentService{}), httptest.NewRequest("GET", "/clients?limit=500", nil))

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	assert.Contains(t, w.Body.String(), "limit must be between 1 and 100")
}

func TestListClients_StorageFailure(t *testing.T) {
	svc := &handlers.MockClientService{
		ListFunc: func(ctx context.Context, q models.ClientQuery) (*models.ClientPage, error) {
			return nil, errors.New("connection reset")
		},
	}

	w := serve(clientRouter(svc, &handlers.MockAttachmentService{}), httptest.NewRequest("GET", "/clients", nil))

	var resp handlers.ListErrorResponse
	handlers.AssertJSONResponse(t, w, http.StatusInternalServerError, &resp)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
	assert.NotNil(t, resp.Data)
	assert.Empty(t, resp.Data)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestGetClient(t *testing.T) {
	svc := &handlers.MockClientService{
		GetFunc: func(ctx context.Context, id string) (*services.ClientDetail, error) {
			if id != testClientID {
				return nil, models.ErrNotFound
			}
			return &services.ClientDetail{
				ClientSummary: models.ClientSummary{Client: models.Client{ID: id, FirstName: "Ana"}, TreatmentCount: 1},
				Treatments:    []models.Treatment{{ID: "t1", ClientID: id, Procedure: "Filling"}},
			}, nil
		},
	}
	router := clientRouter(svc, &handlers.MockAttachmentService{})

	w := serve(router, httptest.NewRequest("GET", "/clients/"+testClientID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"procedure":"Filling"`)

	w = serve(router, httptest.NewRequest("GET", "/clients/nope", nil))
	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
}

func TestCreateClient(t *testing.T) {
	var got *models.Client
	svc := &handlers.MockClientService{
		CreateFunc: func(ctx context.Context, c *models.Client) (*models.Client, error) {
			got = c
			c.ID = testClientID
			return c, nil
		},
	}
	router := clientRouter(svc, &handlers.MockAttachmentService{})

	w := serve(router, handlers.NewTestRequest(t, "POST", "/clients", handlers.CreateClientRequest{
		FirstName:   "Ana",
		LastName:    "Silva",
		DateOfBirth: "1990-04-12",
	}))
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, got.DateOfBirth)
	assert.Equal(t, "1990-04-12", got.DateOfBirth.Format("2006-01-02"))
	assert.Contains(t, w.Body.String(), `"dateOfBirth":"1990-04-12"`)

	w = serve(router, handlers.NewTestRequest(t, "POST", "/clients", handlers.CreateClientRequest{FirstName: "Ana", LastName: "Silva", DateOfBirth: "12/04/1990"}))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	assert.Contains(t, w.Body.String(), "dateOfBirth")

	w = serve(router, handlers.NewTestRequest(t, "POST", "/clients", handlers.CreateClientRequest{FirstName: "Ana"}))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	assert.Contains(t, w.Body.String(), "lastName")
}

func TestAddTreatment(t *testing.T) {
	var got *models.Treatment
	svc := &handlers.MockClientService{
		AddTreatmentFunc: func(ctx context.Context, tr *models.Treatment) (*models.Treatment, error) {
			got = tr
			tr.ID = "t1"
			return tr, nil
		},
	}
	router := clientRouter(svc, &handlers.MockAttachmentService{})

	w := serve(router, handlers.NewTestRequest(t, "POST", "/clients/"+testClientID+"/treatments", handlers.CreateTreatmentRequest{
		TreatmentDate: "2026-03-01",
		Procedure:     "Root canal",
		FollowUpDate:  "2026-03-15T09:30:00Z",
	}))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, testClientID, got.ClientID)
	require.NotNil(t, got.FollowUpDate)
	assert.Equal(t, 9, got.FollowUpDate.Hour())

	w = serve(router, handlers.NewTestRequest(t, "POST", "/clients/"+testClientID+"/treatments", handlers.CreateTreatmentRequest{
		TreatmentDate: "yesterday",
		Procedure:     "Root canal",
	}))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestUpdateStatus(t *testing.T) {
	svc := &handlers.MockClientService{
		UpdateStatusFunc: func(ctx context.Context, id string, status models.ClientStatus) error {
			if id != testClientID {
				return models.ErrNotFound
			}
			return nil
		},
	}
	router := clientRouter(svc, &handlers.MockAttachmentService{})

	w := serve(router, handlers.NewTestRequest(t, "PUT", "/clients/"+testClientID+"/status", handlers.UpdateStatusRequest{Status: "completed"}))
	var resp handlers.MutationResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	require.NotNil(t, resp.ModifiedCount)
	assert.Equal(t, int64(1), *resp.ModifiedCount)

	w = serve(router, handlers.NewTestRequest(t, "PUT", "/clients/"+testClientID+"/status", handlers.UpdateStatusRequest{Status: "archived"}))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")

	w = serve(router, handlers.NewTestRequest(t, "PUT", "/clients/6f1c1bde-4b43-4b5e-9a57-0d1f2b5b8a99/status", handlers.UpdateStatusRequest{Status: "completed"}))
	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
}

func TestBulkUpdateStatus(t *testing.T) {
	svc := &handlers.MockClientService{
		BulkUpdateStatusFunc: func(ctx context.Context, ids []string, status models.ClientStatus) (int64, error) {
			return 1, nil
		},
	}
	router := clientRouter(svc, &handlers.MockAttachmentService{})

	w := serve(router, handlers.NewTestRequest(t, "POST", "/clients/bulk-status", handlers.BulkStatusRequest{
		IDs:    []string{testClientID, "6f1c1bde-4b43-4b5e-9a57-0d1f2b5b8a99"},
		Status: "completed",
	}))
	var resp handlers.MutationResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	require.NotNil(t, resp.ModifiedCount)
	assert.Equal(t, int64(1), *resp.ModifiedCount)
	assert.Nil(t, resp.DeletedCount)
}

func TestBulkUpdateStatus_Validation(t *testing.T) {
	called := false
	svc := &handlers.MockClientService{
		BulkUpdateStatusFunc: func(ctx context.Context, ids []string, status models.ClientStatus) (int64, error) {
			called = true
			return 0, nil
		},
	}
	router := clientRouter(svc, &handlers.MockAttachmentService{})

	tests := []struct {
		name string
		body handlers.BulkStatusRequest
		want string
	}{
		{"empty ids", handlers.BulkStatusRequest{IDs: []string{}, Status: "completed"}, "ids"},
		{"bad id", handlers.BulkStatusRequest{IDs: []string{"123"}, Status: "completed"}, "valid client id"},
		{"bad status", handlers.BulkStatusRequest{IDs: []string{testClientID}, Status: "done"}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, handlers.NewTestRequest(t, "POST", "/clients/bulk-status", tt.body))
			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
	assert.False(t, called)
}

func TestBulkDelete(t *testing.T) {
	var got []string
	svc := &handlers.MockClientService{
		BulkDeleteFunc: func(ctx context.Context, ids []string) (int64, error) {
			got = ids
			return 2, nil
		},
	}
	router := clientRouter(svc, &handlers.MockAttachmentService{})

	ids := []string{testClientID, "6f1c1bde-4b43-4b5e-9a57-0d1f2b5b8a99"}
	w := serve(router, handlers.NewTestRequest(t, "POST", "/clients/bulk-delete", handlers.BulkDeleteRequest{IDs: ids}))

	var resp handlers.MutationResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	require.NotNil(t, resp.DeletedCount)
	assert.Equal(t, int64(2), *resp.DeletedCount)
	assert.Equal(t, ids, got)
	assert.Contains(t, resp.Message, "2")
}

func TestBulkDelete_InternalError(t *testing.T) {
	svc := &handlers.MockClientService{
		BulkDeleteFunc: func(ctx context.Context, ids []string) (int64, error) {
			return 0, errors.New("deadlock")
		},
	}
	w := serve(clientRouter(svc, &handlers.MockAttachmentService{}),
		handlers.NewTestRequest(t, "POST", "/clients/bulk-delete", handlers.BulkDeleteRequest{IDs: []string{testClientID}}))

	handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}

func multipartUpload(t *testing.T, url, field, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadAttachment(t *testing.T) {
	var gotName string
	var gotBody []byte
	att := &handlers.MockAttachmentService{
		UploadFunc: func(ctx context.Context, clientID, fileName string, body io.Reader) (*models.Attachment, error) {
			gotName = fileName
			gotBody, _ = io.ReadAll(body)
			return &models.Attachment{ID: "a1", ClientID: clientID, FileName: fileName, ContentType: "image/png", SizeBytes: int64(len(gotBody))}, nil
		},
	}
	router := clientRouter(&handlers.MockClientService{}, att)

	w := serve(router, multipartUpload(t, "/clients/"+testClientID+"/attachments", "file", "xray.png", []byte("pngdata")))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "xray.png", gotName)
	assert.Equal(t, []byte("pngdata"), gotBody)
	assert.Contains(t, w.Body.String(), `"contentType":"image/png"`)
}

func TestUploadAttachment_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		errorTag string
	}{
		{"disabled", models.ErrStorageDisabled, http.StatusServiceUnavailable, "service_unavailable"},
		{"too large", models.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"bad type", models.ErrUnsupportedFileType, http.StatusUnsupportedMediaType, "unsupported_media_type"},
		{"no client", models.ErrNotFound, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att := &handlers.MockAttachmentService{
				UploadFunc: func(ctx context.Context, clientID, fileName string, body io.Reader) (*models.Attachment, error) {
					return nil, tt.err
				},
			}
			w := serve(clientRouter(&handlers.MockClientService{}, att),
				multipartUpload(t, "/clients/"+testClientID+"/attachments", "file", "x.png", []byte("data")))
			handlers.AssertErrorResponse(t, w, tt.status, tt.errorTag)
		})
	}
}

func TestUploadAttachment_NotMultipart(t *testing.T) {
	req := httptest.NewRequest("POST", "/clients/"+testClientID+"/attachments", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	w := serve(clientRouter(&handlers.MockClientService{}, &handlers.MockAttachmentService{}), req)
	handlers.AssertErrorResponse(t, w, http.StatusUnsupportedMediaType, "unsupported_media_type")
}

func TestUploadAttachment_MissingFilePart(t *testing.T) {
	w := serve(clientRouter(&handlers.MockClientService{}, &handlers.MockAttachmentService{}),
		multipartUpload(t, "/clients/"+testClientID+"/attachments", "document", "x.png", []byte("data")))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}
