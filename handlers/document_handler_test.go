package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/services"
)

// fakeIngestService scripts ingestion outcomes
type fakeIngestService struct {
	summary     *models.IngestSummary
	err         error
	lastReq     models.IngestRequest
	deletedDocs []string
}

func (f *fakeIngestService) Ingest(ctx context.Context, tenantID uuid.UUID, req models.IngestRequest) (*models.IngestSummary, error) {
	f.lastReq = req
	return f.summary, f.err
}

func (f *fakeIngestService) DeleteDocument(ctx context.Context, tenantID uuid.UUID, documentID string) error {
	f.deletedDocs = append(f.deletedDocs, documentID)
	return f.err
}

// fakeEnqueuer records enqueued payloads
type fakeEnqueuer struct {
	lastType    models.JobType
	lastPayload []models.IngestRequest
	job         *models.Job
}

func (f *fakeEnqueuer) Enqueue(tenantID uuid.UUID, jobType models.JobType, payload []models.IngestRequest) *models.Job {
	f.lastType = jobType
	f.lastPayload = payload
	if f.job == nil {
		f.job = models.NewJob(tenantID, jobType, payload)
	}
	return f.job
}

func TestHandleIngest(t *testing.T) {
	logger := zap.NewNop()

	t.Run("ingests a document synchronously", func(t *testing.T) {
		svc := &fakeIngestService{summary: &models.IngestSummary{DocumentID: "doc-1", Chunks: 4}}
		handler := NewDocumentHandler(svc, &fakeEnqueuer{}, logger)

		req := authedRequest(http.MethodPost, "/documents",
			`{"document_id":"doc-1","text":"some text","metadata":{"lang":"en"}}`)
		w := httptest.NewRecorder()

		handler.HandleIngest(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "doc-1", svc.lastReq.DocumentID)
		assert.Equal(t, map[string]string{"lang": "en"}, svc.lastReq.Metadata)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, float64(4), data["chunks"])
	})

	t.Run("missing text is a bad request", func(t *testing.T) {
		handler := NewDocumentHandler(&fakeIngestService{}, &fakeEnqueuer{}, logger)

		req := authedRequest(http.MethodPost, "/documents", `{"document_id":"doc-1"}`)
		w := httptest.NewRecorder()

		handler.HandleIngest(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("storage failure maps to 503", func(t *testing.T) {
		svc := &fakeIngestService{err: services.NewDomainError(services.ErrorTypeStorage, "write failed", nil)}
		handler := NewDocumentHandler(svc, &fakeEnqueuer{}, logger)

		req := authedRequest(http.MethodPost, "/documents", `{"document_id":"doc-1","text":"x"}`)
		w := httptest.NewRecorder()

		handler.HandleIngest(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHandleBatchIngest(t *testing.T) {
	logger := zap.NewNop()

	t.Run("enqueues a batch job", func(t *testing.T) {
		queue := &fakeEnqueuer{}
		handler := NewDocumentHandler(&fakeIngestService{}, queue, logger)

		req := authedRequest(http.MethodPost, "/documents/batch",
			`{"documents":[{"document_id":"doc-1","text":"a"},{"document_id":"doc-2","text":"b"}]}`)
		w := httptest.NewRecorder()

		handler.HandleBatchIngest(w, req)

		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, models.JobTypeBatchIngest, queue.lastType)
		require.Len(t, queue.lastPayload, 2)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, string(models.JobPending), data["status"])
		assert.NotEmpty(t, data["job_id"])
	})

	t.Run("empty batch is a bad request", func(t *testing.T) {
		handler := NewDocumentHandler(&fakeIngestService{}, &fakeEnqueuer{}, logger)

		req := authedRequest(http.MethodPost, "/documents/batch", `{"documents":[]}`)
		w := httptest.NewRecorder()

		handler.HandleBatchIngest(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("document missing text is a bad request", func(t *testing.T) {
		handler := NewDocumentHandler(&fakeIngestService{}, &fakeEnqueuer{}, logger)

		req := authedRequest(http.MethodPost, "/documents/batch",
			`{"documents":[{"document_id":"doc-1"}]}`)
		w := httptest.NewRecorder()

		handler.HandleBatchIngest(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDelete(t *testing.T) {
	logger := zap.NewNop()

	deleteRequest := func(documentID string) *http.Request {
		req := authedRequest(http.MethodDelete, "/documents/"+documentID, "")
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("id", documentID)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	}

	t.Run("deletes a document", func(t *testing.T) {
		svc := &fakeIngestService{}
		handler := NewDocumentHandler(svc, &fakeEnqueuer{}, logger)

		w := httptest.NewRecorder()
		handler.HandleDelete(w, deleteRequest("doc-1"))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{"doc-1"}, svc.deletedDocs)
	})

	t.Run("deleting an absent document succeeds", func(t *testing.T) {
		svc := &fakeIngestService{}
		handler := NewDocumentHandler(svc, &fakeEnqueuer{}, logger)

		w := httptest.NewRecorder()
		handler.HandleDelete(w, deleteRequest("missing"))

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
