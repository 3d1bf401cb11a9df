package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/tourhub/internal/domain/job"
	"github.com/geocoder89/tourhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeJobsRepo struct {
	jobs       map[string]job.Job
	lastStatus *job.Status
	lastLimit  int
	requeued   int64
}

func (f *fakeJobsRepo) List(_ context.Context, status *job.Status, limit int) ([]job.Job, error) {
	f.lastStatus, f.lastLimit = status, limit
	out := make([]job.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		if status == nil || j.Status == *status {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobsRepo) GetByID(_ context.Context, id string) (job.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return job.Job{}, job.ErrNotFound
	}
	return j, nil
}

func (f *fakeJobsRepo) Retry(_ context.Context, id string) error {
	j, ok := f.jobs[id]
	if !ok {
		return job.ErrNotFound
	}
	if j.Status != job.StatusFailed {
		return job.ErrNotFailed
	}
	j.Status = job.StatusPending
	f.jobs[id] = j
	return nil
}

func (f *fakeJobsRepo) RetryManyFailed(_ context.Context, limit int) (int64, error) {
	f.lastLimit = limit
	return f.requeued, nil
}

func jobsRouter(repo handlers.AdminJobsRepo) *gin.Engine {
	h := handlers.NewAdminJobsHandler(repo, nil)
	r := gin.New()
	r.GET("/admin/jobs", h.List)
	r.GET("/admin/jobs/:id", h.GetByID)
	r.POST("/admin/jobs/:id/retry", h.Retry)
	r.POST("/admin/jobs/retry-failed", h.RetryFailed)
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestAdminJobs_List(t *testing.T) {
	failed := job.New(job.CreateRequest{Type: "booking.confirmation"})
	failed.Status = job.StatusFailed
	done := job.New(job.CreateRequest{Type: "booking.confirmation"})
	done.Status = job.StatusDone

	repo := &fakeJobsRepo{jobs: map[string]job.Job{failed.ID: failed, done.ID: done}}
	r := jobsRouter(repo)

	w := serve(r, http.MethodGet, "/admin/jobs?status=failed&limit=10")
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, body=%s", w.Code, w.Body.String())
	}
	if repo.lastStatus == nil || *repo.lastStatus != job.StatusFailed || repo.lastLimit != 10 {
		t.Fatalf("unexpected repo args: status=%v limit=%d", repo.lastStatus, repo.lastLimit)
	}

	var body struct {
		Count int       `json:"count"`
		Items []job.Job `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Items[0].ID != failed.ID {
		t.Fatalf("unexpected items: %+v", body)
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("expected ETag header")
	}
}

func TestAdminJobs_ListRejectsBadQuery(t *testing.T) {
	r := jobsRouter(&fakeJobsRepo{jobs: map[string]job.Job{}})

	for _, path := range []string{
		"/admin/jobs?limit=0",
		"/admin/jobs?limit=500",
		"/admin/jobs?status=stuck",
	} {
		if w := serve(r, http.MethodGet, path); w.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: got %d, want 422", path, w.Code)
		}
	}
}

func TestAdminJobs_GetByID(t *testing.T) {
	j := job.New(job.CreateRequest{Type: "booking.confirmation"})
	r := jobsRouter(&fakeJobsRepo{jobs: map[string]job.Job{j.ID: j}})

	if w := serve(r, http.MethodGet, "/admin/jobs/"+j.ID); w.Code != http.StatusOK {
		t.Fatalf("existing job: got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/admin/jobs/"+uuid.NewString()); w.Code != http.StatusNotFound {
		t.Fatalf("missing job: got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/admin/jobs/not-a-uuid"); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad id: got %d", w.Code)
	}
}

func TestAdminJobs_Retry(t *testing.T) {
	failed := job.New(job.CreateRequest{Type: "booking.confirmation"})
	failed.Status = job.StatusFailed
	pending := job.New(job.CreateRequest{Type: "booking.confirmation"})

	repo := &fakeJobsRepo{jobs: map[string]job.Job{failed.ID: failed, pending.ID: pending}}
	r := jobsRouter(repo)

	w := serve(r, http.MethodPost, "/admin/jobs/"+failed.ID+"/retry")
	if w.Code != http.StatusOK {
		t.Fatalf("retry failed job: got %d, body=%s", w.Code, w.Body.String())
	}
	if repo.jobs[failed.ID].Status != job.StatusPending {
		t.Fatalf("job not requeued")
	}

	w = serve(r, http.MethodPost, "/admin/jobs/"+pending.ID+"/retry")
	if w.Code != http.StatusConflict {
		t.Fatalf("retry pending job: got %d", w.Code)
	}
	var resp bindErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "job_not_failed" {
		t.Fatalf("unexpected code %q", resp.Error.Code)
	}

	if w := serve(r, http.MethodPost, "/admin/jobs/"+uuid.NewString()+"/retry"); w.Code != http.StatusNotFound {
		t.Fatalf("retry missing job: got %d", w.Code)
	}
}

func TestAdminJobs_RetryFailed(t *testing.T) {
	repo := &fakeJobsRepo{requeued: 3}
	r := jobsRouter(repo)

	w := serve(r, http.MethodPost, "/admin/jobs/retry-failed?limit=25")
	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}
	if repo.lastLimit != 25 {
		t.Fatalf("limit not passed through: %d", repo.lastLimit)
	}
	var body struct {
		Requeued int64 `json:"requeued"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Requeued != 3 {
		t.Fatalf("requeued = %d", body.Requeued)
	}

	if w := serve(r, http.MethodPost, "/admin/jobs/retry-failed?limit=abc"); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad limit: got %d", w.Code)
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth_Readyz(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	ready := handlers.NewHealthHandler(handlers.Dependency{Name: "postgres", Ping: up})
	r := gin.New()
	r.GET("/readyz", ready.Readyz)
	if w := serve(r, http.MethodGet, "/readyz"); w.Code != http.StatusOK {
		t.Fatalf("all up: got %d", w.Code)
	}

	notReady := handlers.NewHealthHandler(
		handlers.Dependency{Name: "postgres", Ping: up},
		handlers.Dependency{Name: "redis", Ping: down},
	)
	r = gin.New()
	r.GET("/readyz", notReady.Readyz)
	w := serve(r, http.MethodGet, "/readyz")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("redis down: got %d", w.Code)
	}

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Checks["redis"] != "down" || body.Checks["postgres"] != "up" {
		t.Fatalf("unexpected checks: %s", w.Body.String())
	}
}
