package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoocv/internal/api/middleware"
	"github.com/yoockh/yoocv/internal/changes"
	"github.com/yoockh/yoocv/internal/jobsearch"
	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/progress"
	"github.com/yoockh/yoocv/internal/services"
	"github.com/yoockh/yoocv/internal/utils"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeDocs struct {
	services.DocumentService

	uploadedName string
	uploadedBody string
	status       models.ProcessingStatus
	err          error
	version      int
	cmds         []changes.Command
}

func (f *fakeDocs) Upload(_ context.Context, p models.Principal, in services.UploadInput) (*models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Content)
	f.uploadedName, f.uploadedBody = in.FileName, string(b)
	return &models.Document{ID: "doc-1", UserID: p.UserID, Status: models.ProcessingStatus{State: models.StateUploading, Progress: 20}}, nil
}

func (f *fakeDocs) Get(_ context.Context, p models.Principal, id string) (*models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Document{ID: id, UserID: "owner", File: models.FileInfo{ObjectKey: "documents/owner/" + id + "/original.pdf"}}, nil
}

func (f *fakeDocs) Status(context.Context, models.Principal, string) (models.ProcessingStatus, error) {
	return f.status, f.err
}

func (f *fakeDocs) DownloadURL(_ context.Context, _ models.Principal, id string, version int) (string, error) {
	f.version = version
	return "https://signed.example/" + id, f.err
}

func (f *fakeDocs) ApplyEdits(_ context.Context, _ models.Principal, id string, cmds []changes.Command) (*services.EditResult, error) {
	f.cmds = cmds
	if f.err != nil {
		return nil, f.err
	}
	return &services.EditResult{Document: &models.Document{ID: id}, Version: models.Version{Number: 2}, Report: changes.Report{Applied: len(cmds)}}, nil
}

type fakeJobs struct {
	services.JobService
	prefs jobsearch.Preferences
}

func (f *fakeJobs) Search(_ context.Context, _ models.Principal, prefs jobsearch.Preferences) ([]models.JobPosting, error) {
	f.prefs = prefs
	return []models.JobPosting{{Title: "Go Engineer", Company: "Acme"}}, nil
}

func withPrincipal(p models.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p.UserID != "" {
			c.Set(middleware.PrincipalKey, p)
		}
		c.Next()
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRouter(docs *fakeDocs, jobs *fakeJobs, hub ProgressHub, p models.Principal) *gin.Engine {
	r := gin.New()
	r.Use(withPrincipal(p))
	dh := NewDocumentHandler(docs)
	ph := NewProgressHandler(docs, hub, quietLogger(), 50*time.Millisecond, nil)
	r.POST("/documents", dh.Upload)
	r.GET("/documents/:id/download", dh.Download)
	r.POST("/documents/:id/edits", dh.ApplyEdits)
	r.GET("/documents/:id/events", ph.Events)
	r.POST("/jobs/search", NewJobHandler(jobs).Search)
	r.GET("/admin/documents/:id", NewAdminHandler(docs).GetDocument)
	return r
}

func multipartBody(t *testing.T, field, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, _ = fw.Write([]byte(content))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

var alice = models.Principal{UserID: "alice", Role: models.RoleUser}

func TestUpload(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{}
	r := newTestRouter(docs, &fakeJobs{}, progress.NewBroadcaster(4, nil), alice)

	body, ct := multipartBody(t, "file", "cv.pdf", "%PDF-1.4 hello")
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "cv.pdf", docs.uploadedName)
	assert.Equal(t, "%PDF-1.4 hello", docs.uploadedBody)

	var doc models.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "alice", doc.UserID)
}

func TestUploadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field string
		p     models.Principal
		err   error
		code  int
		ecode utils.Code
	}{
		{"no principal", "file", models.Principal{}, nil, http.StatusUnauthorized, utils.CodeUnauthorized},
		{"wrong field", "upload", alice, nil, http.StatusBadRequest, utils.CodeInvalidArgument},
		{"too large", "file", alice, utils.E(utils.CodeTooLarge, "x", "file exceeds 10MB", nil), http.StatusRequestEntityTooLarge, utils.CodeTooLarge},
		{"unsupported", "file", alice, utils.E(utils.CodeUnsupported, "x", "only PDF, DOCX and DOC files are supported", nil), http.StatusUnsupportedMediaType, utils.CodeUnsupported},
		{"internal detail hidden", "file", alice, utils.E(utils.CodeInternal, "x", "mongo: connection refused", nil), http.StatusInternalServerError, utils.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newTestRouter(&fakeDocs{err: tt.err}, &fakeJobs{}, progress.NewBroadcaster(4, nil), tt.p)
			body, ct := multipartBody(t, tt.field, "cv.pdf", "data")
			req := httptest.NewRequest(http.MethodPost, "/documents", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			var apiErr middleware.APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
			assert.Equal(t, tt.ecode, apiErr.Code)
			assert.NotContains(t, apiErr.Message, "mongo")
		})
	}
}

func TestDownloadVersionParam(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{}
	r := newTestRouter(docs, &fakeJobs{}, progress.NewBroadcaster(4, nil), alice)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/d1/download?version=3", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, docs.version)
	assert.Contains(t, w.Body.String(), "https://signed.example/d1")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/d1/download?version=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApplyEdits(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{}
	r := newTestRouter(docs, &fakeJobs{}, progress.NewBroadcaster(4, nil), alice)

	payload := `{"commands":[{"section":"skills","action":"add","newValue":["Go"]},{"section":"experience","action":"delete","target":1}]}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/documents/d1/edits", strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, docs.cmds, 2)
	assert.Equal(t, changes.Target("1"), docs.cmds[1].Target)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/documents/d1/edits", strings.NewReader(`{"commands":[]}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsStreamsUntilTerminal(t *testing.T) {
	t.Parallel()

	hub := progress.NewBroadcaster(8, nil)
	docs := &fakeDocs{status: models.ProcessingStatus{State: models.StateAnalyzing, Progress: 70, UpdatedAt: time.Now()}}
	r := newTestRouter(docs, &fakeJobs{}, hub, alice)

	go func() {
		assert.Eventually(t, func() bool { return hub.Count("d1") == 1 }, 2*time.Second, 5*time.Millisecond)
		_ = hub.Publish(context.Background(), "d1", progress.Event{Type: progress.EventProgress, Stage: "analyzing", Percentage: 85})
		_ = hub.Publish(context.Background(), "d1", progress.Event{Type: progress.EventComplete, Stage: "completed", Percentage: 100})
	}()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/d1/events", nil))

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event:connected")
	assert.Contains(t, body, `"percentage":85`)
	assert.Contains(t, body, "event:complete")
	assert.Less(t, strings.Index(body, `"percentage":70`), strings.Index(body, `"percentage":85`))
	assert.Zero(t, hub.Count("d1"), "subscription released")
}

func TestEventsRejectsForeignDocument(t *testing.T) {
	t.Parallel()

	hub := progress.NewBroadcaster(8, nil)
	docs := &fakeDocs{err: utils.E(utils.CodeForbidden, "DocumentService.Status", "forbidden", nil)}
	r := newTestRouter(docs, &fakeJobs{}, hub, alice)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/d1/events", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, hub.Count("d1"))
}

func TestJobSearch(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobs{}
	r := newTestRouter(&fakeDocs{}, jobs, progress.NewBroadcaster(4, nil), alice)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs/search",
		strings.NewReader(`{"titles":["Go Engineer"],"locations":["Berlin"],"keywords":["grpc"]}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Go Engineer"}, jobs.prefs.Titles)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs/search", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminDocumentView(t *testing.T) {
	t.Parallel()

	r := newTestRouter(&fakeDocs{}, &fakeJobs{}, progress.NewBroadcaster(4, nil), models.Principal{UserID: "ops", Role: models.RoleAdmin})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/documents/d9", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"owner_id":"owner"`)
	assert.Contains(t, w.Body.String(), "original.pdf")
}
