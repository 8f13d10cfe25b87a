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

// fakeJobService scripts job lookups and cancellations
type fakeJobService struct {
	job  *models.Job
	jobs []*models.Job
	err  error
}

func (f *fakeJobService) Get(tenantID, jobID uuid.UUID) (*models.Job, error) {
	return f.job, f.err
}

func (f *fakeJobService) List(tenantID uuid.UUID) []*models.Job {
	return f.jobs
}

func (f *fakeJobService) Cancel(tenantID, jobID uuid.UUID) (*models.Job, error) {
	return f.job, f.err
}

func jobRequest(method, target string, jobID string) *http.Request {
	req := authedRequest(method, target, "")
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", jobID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestHandleJobGet(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns job state without the payload", func(t *testing.T) {
		job := models.NewJob(uuid.New(), models.JobTypeBatchIngest, []models.IngestRequest{
			{DocumentID: "doc-1", Text: "large document body"},
		})
		job.Status = models.JobCompleted
		job.Result = []models.IngestSummary{{DocumentID: "doc-1", Chunks: 7}}
		handler := NewJobHandler(&fakeJobService{job: job}, logger)

		w := httptest.NewRecorder()
		handler.HandleGet(w, jobRequest(http.MethodGet, "/jobs/"+job.ID.String(), job.ID.String()))

		require.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, string(models.JobCompleted), data["status"])
		assert.NotContains(t, data, "payload")
		assert.Len(t, data["result"], 1)
	})

	t.Run("invalid job id is a bad request", func(t *testing.T) {
		handler := NewJobHandler(&fakeJobService{}, logger)

		w := httptest.NewRecorder()
		handler.HandleGet(w, jobRequest(http.MethodGet, "/jobs/nope", "nope"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown job is not found", func(t *testing.T) {
		svc := &fakeJobService{err: services.NewDomainError(services.ErrorTypeNotFound, "job not found", nil)}
		handler := NewJobHandler(svc, logger)

		id := uuid.New().String()
		w := httptest.NewRecorder()
		handler.HandleGet(w, jobRequest(http.MethodGet, "/jobs/"+id, id))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleJobList(t *testing.T) {
	logger := zap.NewNop()

	t.Run("lists jobs without payloads", func(t *testing.T) {
		tenantID := uuid.New()
		jobs := []*models.Job{
			models.NewJob(tenantID, models.JobTypeBatchIngest, []models.IngestRequest{{DocumentID: "doc-1", Text: "body"}}),
			models.NewJob(tenantID, models.JobTypeIngest, []models.IngestRequest{{DocumentID: "doc-2", Text: "body"}}),
		}
		handler := NewJobHandler(&fakeJobService{jobs: jobs}, logger)

		w := httptest.NewRecorder()
		handler.HandleList(w, authedRequest(http.MethodGet, "/jobs", ""))

		require.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		listed := data["jobs"].([]interface{})
		require.Len(t, listed, 2)
		assert.NotContains(t, listed[0].(map[string]interface{}), "payload")
	})

	t.Run("empty list", func(t *testing.T) {
		handler := NewJobHandler(&fakeJobService{}, logger)

		w := httptest.NewRecorder()
		handler.HandleList(w, authedRequest(http.MethodGet, "/jobs", ""))

		require.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		assert.Empty(t, data["jobs"])
	})
}

func TestHandleJobCancel(t *testing.T) {
	logger := zap.NewNop()

	t.Run("reports the resulting status", func(t *testing.T) {
		job := models.NewJob(uuid.New(), models.JobTypeIngest, nil)
		job.Status = models.JobCancelled
		handler := NewJobHandler(&fakeJobService{job: job}, logger)

		id := job.ID.String()
		w := httptest.NewRecorder()
		handler.HandleCancel(w, jobRequest(http.MethodPost, "/jobs/"+id+"/cancel", id))

		require.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, string(models.JobCancelled), data["status"])
	})

	t.Run("cancelling a terminal job reports its state", func(t *testing.T) {
		job := models.NewJob(uuid.New(), models.JobTypeIngest, nil)
		job.Status = models.JobCompleted
		handler := NewJobHandler(&fakeJobService{job: job}, logger)

		id := job.ID.String()
		w := httptest.NewRecorder()
		handler.HandleCancel(w, jobRequest(http.MethodPost, "/jobs/"+id+"/cancel", id))

		require.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, string(models.JobCompleted), data["status"])
	})
}
