package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookversions/internal/auth"
	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/jobs"
	"git.home.luguber.info/inful/bookversions/internal/lifecycle"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/publication"
	"git.home.luguber.info/inful/bookversions/internal/repository"
	"git.home.luguber.info/inful/bookversions/internal/testutil"
)

type apiFixture struct {
	store   *repository.MemoryStore
	book    *testutil.CollectionBuilder
	service *jobs.Service
	server  *Server
}

func newAPIFixture(t *testing.T, authz auth.Authorizer, opts ...Option) *apiFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	book := testutil.NewBook(t, store, "Books.Guide", "Guide").
		Version("v1", "").
		Page("Intro").
		Content("Intro", "v1", "intro v1")
	testutil.PublicationConfig(t, store, "Publications.Guide", map[string]string{
		model.PropConfigSource:           book.Ref().String(),
		model.PropConfigDestinationSpace: "Pub.Guide",
		model.PropConfigVersion:          book.VersionRef("v1").String(),
		model.PropConfigPublishBehaviour: "update",
	})

	q := jobs.NewQueue(config.JobsConfig{Workers: 1})
	q.Start(t.Context())
	t.Cleanup(func() { q.Stop(context.Background()) })
	svc := jobs.NewService(store, q, publication.New(store), jobs.WithAuthorizer(authz))
	return &apiFixture{store: store, book: book, service: svc, server: NewServer(":0", svc, opts...)}
}

func (f *apiFixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

type jobResponse struct {
	Success bool     `json:"success"`
	Data    jobs.Job `json:"data"`
}

type acceptedResponse struct {
	Success bool        `json:"success"`
	Data    JobAccepted `json:"data"`
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)
	w := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestPublishEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/publications", `{"configuration":"Publications.Guide"}`, UserHeader, "alice")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	accepted := decodeBody[acceptedResponse](t, w)
	require.True(t, accepted.Success)
	assert.True(t, strings.HasPrefix(accepted.Data.JobID, "BookVersionsPublication_Guide_"), accepted.Data.JobID)

	_, err := f.service.Wait(t.Context(), accepted.Data.JobID)
	require.NoError(t, err)

	w = f.do(t, http.MethodGet, "/api/jobs/"+accepted.Data.JobID, "")
	require.Equal(t, http.StatusOK, w.Code)
	job := decodeBody[jobResponse](t, w)
	assert.Equal(t, jobs.StatusCompleted, job.Data.Status)
	assert.Equal(t, "alice", job.Data.User)

	doc, err := f.store.Get(t.Context(), model.MustDocumentRef("Pub.Guide.Intro.WebHome"))
	require.NoError(t, err)
	assert.Equal(t, "intro v1", doc.Content)

	w = f.do(t, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), accepted.Data.JobID)
}

func TestRequestValidation(t *testing.T) {
	f := newAPIFixture(t, nil)

	tests := []struct {
		name, path, body string
	}{
		{"missing configuration", "/api/publications", `{"user":"alice"}`},
		{"malformed body", "/api/publications", `{"configuration":`},
		{"unknown status", "/api/pages/status", `{"pages":["Books.Guide.Intro.WebHome"],"status":"done"}`},
		{"no pages", "/api/pages/status", `{"pages":[],"status":"draft"}`},
		{"unknown scope", "/api/pages/status", `{"pages":["Books.Guide.Intro.WebHome"],"status":"draft","scope":"all"}`},
		{"missing version", "/api/versions/remove-content", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			resp := decodeBody[Response](t, w)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Details)
		})
	}
}

func TestPreviewEndpointChecksViewRight(t *testing.T) {
	acl, err := auth.NewACL(config.AuthConfig{Enabled: true, Users: map[string][]config.Grant{
		"viewer": {{Space: "Publications", Rights: []string{"view"}}},
	}}, auth.NewRightRegistry())
	require.NoError(t, err)
	f := newAPIFixture(t, acl)

	w := f.do(t, http.MethodGet, "/api/publications/preview?configuration=Publications.Guide&user=viewer", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = f.do(t, http.MethodGet, "/api/publications/preview?configuration=Publications.Guide", "", UserHeader, "stranger")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/publications/preview", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusAndRemoveEndpointsQueueJobs(t *testing.T) {
	f := newAPIFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/pages/status",
		`{"pages":["Books.Guide.Intro.v1"],"status":"complete","user":"alice"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	id := decodeBody[acceptedResponse](t, w).Data.JobID
	assert.True(t, strings.HasPrefix(id, "SetPageStatus_alice_"), id)
	job, err := f.service.Wait(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, job.Status)

	w = f.do(t, http.MethodPost, "/api/versions/remove-content", `{"version":"Books.Guide.Versions.v1"}`, UserHeader, "alice")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	id = decodeBody[acceptedResponse](t, w).Data.JobID
	assert.True(t, strings.HasPrefix(id, "BookVersionsVersionRemove_v1_"), id)
	job, err = f.service.Wait(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, job.Status)

	ok, err := f.store.Exists(t.Context(), f.book.ContentRef("Intro", "v1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetUnknownJob(t *testing.T) {
	f := newAPIFixture(t, nil)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/jobs/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/jobs/nope/events", "").Code)
}

func TestJobEventStream(t *testing.T) {
	f := newAPIFixture(t, nil)
	id, err := f.service.Publish(t.Context(), model.MustDocumentRef("Publications.Guide"), "alice")
	require.NoError(t, err)
	_, err = f.service.Wait(t.Context(), id)
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/jobs/"+id+"/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "event: connected\n")
	assert.Contains(t, body, "event: completed\n")
}

func TestDeletedMarkEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)
	w := f.do(t, http.MethodPost, "/api/pages/deleted-mark", `{"reference":"Books.Guide.Intro.v1"}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	f = newAPIFixture(t, nil)
	f.server = NewServer(":0", f.service, WithHooks(lifecycle.New(f.store)))
	w = f.do(t, http.MethodPost, "/api/pages/deleted-mark", `{"reference":"Books.Guide.Intro.v1"}`, UserHeader, "alice")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"deleted":true`)

	doc, err := f.store.Get(t.Context(), f.book.ContentRef("Intro", "v1"))
	require.NoError(t, err)
	assert.True(t, doc.HasObject(model.ClassDeletedContent))

	w = f.do(t, http.MethodPost, "/api/pages/deleted-mark", `{"reference":"Books.Guide.Missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsMount(t *testing.T) {
	f := newAPIFixture(t, nil, WithMetrics("/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("bookversions_up 1\n"))
	})))
	w := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bookversions_up 1\n", w.Body.String())

	f = newAPIFixture(t, nil)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/metrics", "").Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(jobs.ErrUnknownJob))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(jobs.ErrQueueFull))
	assert.Equal(t, http.StatusForbidden, StatusFor(errors.PermissionDenied("bob", "publish", "Books.WebHome")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(errors.ConfigRequired("configuration")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(stderrors.New("boom")))
}
