package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "portfolio_ingest/pkg/core/errors"
	"portfolio_ingest/pkg/core/logger"
	"portfolio_ingest/pkg/core/pipeline"
	"portfolio_ingest/pkg/models"
)

type memRepo struct {
	mu   sync.Mutex
	runs map[string]*models.ProcessedData
}

func (m *memRepo) Save(_ context.Context, data *models.ProcessedData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[data.Meta.RunID] = data
	return nil
}

func (m *memRepo) Load(_ context.Context, runID string) (*models.ProcessedData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.runs[runID]; ok {
		return d, nil
	}
	return nil, apperrors.NewNotFoundError("ingestion result", runID)
}

func newRouter(t *testing.T, maxUpload int64) (chi.Router, *memRepo) {
	t.Helper()
	repo := &memRepo{runs: map[string]*models.ProcessedData{}}
	svc := pipeline.NewIngestionService(
		pipeline.WithLogger(logger.NewTestLogger(t)),
		pipeline.WithSeed(7),
		pipeline.WithRepository(repo),
	)
	r := chi.NewRouter()
	NewHandler(svc, logger.NewTestLogger(t), maxUpload, 0).RegisterRoutes(r)
	return r, repo
}

func uploadRequest(t *testing.T, target, field, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload_Success(t *testing.T) {
	router, repo := newRouter(t, 0)
	req := uploadRequest(t, "/api/ingest", "file", "portfolio.csv", "country,capacity,investment\nRomania,50,40\n")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var data models.ProcessedData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	require.Len(t, data.Projects, 1)
	assert.Equal(t, "Romania", data.Projects[0].Country)
	assert.Equal(t, models.StructureProjects, data.Meta.Structure)
	assert.Equal(t, "portfolio.csv", data.Meta.FileName)
	assert.Empty(t, data.Warnings)
	assert.Contains(t, repo.runs, data.Meta.RunID)
}

func TestUpload_Diagnostics(t *testing.T) {
	router, _ := newRouter(t, 0)
	req := uploadRequest(t, "/api/ingest?diagnostics=true", "file", "p.csv", "name,capacity\nA,lots\n")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var data models.ProcessedData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.NotEmpty(t, data.Warnings)
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		status   int
		code     string
	}{
		{"unsupported format", "notes.txt", "hello", http.StatusUnprocessableEntity, string(apperrors.ErrCodeUnsupportedFormat)},
		{"unknown structure", "x.csv", "foo,bar\n1,2\n", http.StatusUnprocessableEntity, string(apperrors.ErrCodeStructureDetection)},
		{"corrupt workbook", "book.xlsx", "not a zip archive", http.StatusBadRequest, string(apperrors.ErrCodeParseFailed)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newRouter(t, 0)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, uploadRequest(t, "/api/ingest", "file", tt.filename, tt.content))

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	router, _ := newRouter(t, 0)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, uploadRequest(t, "/api/ingest", "attachment", "p.csv", "name\nA\n"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	router, _ := newRouter(t, 64)
	content := "name,capacity\n" + string(bytes.Repeat([]byte("Solar,1\n"), 100))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, uploadRequest(t, "/api/ingest", "file", "p.csv", content))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetResult(t *testing.T) {
	router, _ := newRouter(t, 0)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/ingest", "file", "p.csv", "name,capacity\nA,5\n"))
	require.Equal(t, http.StatusOK, rec.Code)

	var uploaded models.ProcessedData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ingest/"+uploaded.Meta.RunID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched models.ProcessedData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, uploaded.Meta.RunID, fetched.Meta.RunID)
	assert.Len(t, fetched.Projects, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ingest/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	router, _ := newRouter(t, 0)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(apperrors.NewNotFoundError("run", "x")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(apperrors.NewStorageError("load", errors.New("down"))))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("plain")))
}
