package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoocv/internal/changes"
	"github.com/yoockh/yoocv/internal/extractor"
	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/progress"
	"github.com/yoockh/yoocv/internal/scoring"
	"github.com/yoockh/yoocv/internal/tailoring"
	"github.com/yoockh/yoocv/internal/utils"
)

const samplePDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

const extractionAnswer = "```json\n" + `{
  "contactInfo": {"name": "Jane Doe", "email": "jane@example.com"},
  "summary": "Backend engineer.",
  "experience": [{
    "company": "Acme",
    "title": "Backend Engineer",
    "startDate": "Jan 2020",
    "endDate": "current",
    "description": "Owned the billing platform.\n- Cut p99 latency by 40%\n- Migrated 12 services to Go",
    "highlights": []
  }],
  "skills": [{"name": "Go"}, {"name": "PostgreSQL"}]
}` + "\n```"

const critiqueAnswer = `{"overall_score": 97, "ats_score": 96,
 "category_scores": {"skills": 99, "experience": 98, "education": 90},
 "profile_summary": "Solid backend profile.",
 "strengths": ["Quantified impact"], "weaknesses": ["No education listed"],
 "keyword_suggestions": ["Kubernetes"], "improvement_areas": []}`

type harness struct {
	docs     *memDocs
	blobs    *memBlobs
	queue    *memQueue
	jobs     *memJobs
	llm      *scriptedLLM
	text     *fakeText
	bus      *progress.Broadcaster
	docSvc   DocumentService
	pipeline PipelineService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := quietLogger()
	h := &harness{
		docs:  newMemDocs(),
		blobs: newMemBlobs(),
		queue: &memQueue{},
		jobs:  &memJobs{jobs: map[uuid.UUID]models.JobPosting{}},
		llm:   &scriptedLLM{},
		text:  &fakeText{},
		bus:   progress.NewBroadcaster(64, log),
	}
	status := NewStatusService(h.docs, h.bus, log)
	engine := changes.NewEngine(log)
	h.docSvc = NewDocumentService(DocumentDeps{
		Docs: h.docs, Jobs: h.jobs, Status: status, Blobs: h.blobs, Queue: h.queue, Engine: engine, Log: log,
	})
	h.pipeline = NewPipelineService(PipelineDeps{
		Docs:      h.docs,
		Jobs:      h.jobs,
		Status:    status,
		Blobs:     h.blobs,
		Text:      h.text,
		Extractor: extractor.New(h.llm, log),
		Analyzer:  scoring.NewAnalyzer(h.llm, log),
		Planner:   tailoring.NewPlanner(h.llm, log),
		Engine:    engine,
		Log:       log,
	})
	return h
}

var owner = models.Principal{UserID: "user-1", Role: models.RoleUser}

func (h *harness) upload(t *testing.T) *models.Document {
	t.Helper()
	doc, err := h.docSvc.Upload(context.Background(), owner, UploadInput{FileName: "cv.pdf", Content: bytes.NewReader([]byte(samplePDF))})
	require.NoError(t, err)
	return doc
}

func (h *harness) mustGet(t *testing.T, id string) *models.Document {
	t.Helper()
	d, err := h.docs.GetByID(context.Background(), id)
	require.NoError(t, err)
	return d
}

func drain(sub *progress.Subscription) []progress.Event {
	var out []progress.Event
	for {
		select {
		case ev := <-sub.C:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestPipelineDashBulletResumeCompletes(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.text.text = "Jane Doe\njane@example.com\nAcme, Backend Engineer, Jan 2020 - current\n- Cut p99 latency by 40%\n- Migrated 12 services to Go"
	h.llm.outputs = []string{extractionAnswer, critiqueAnswer}

	doc := h.upload(t)
	assert.Equal(t, models.StateUploading, doc.Status.State)
	assert.Equal(t, 20, doc.Status.Progress)
	assert.Equal(t, models.FileTypePDF, doc.File.Type)

	sub := h.bus.Subscribe(owner.UserID, doc.ID)
	defer h.bus.Unsubscribe(sub)

	task := h.queue.last()
	assert.Equal(t, TaskProcess, task.Kind)
	h.pipeline.Run(context.Background(), task)

	got := h.mustGet(t, doc.ID)
	require.Equal(t, models.StateCompleted, got.Status.State, got.Status.Error)
	assert.Equal(t, 100, got.Status.Progress)

	require.NotNil(t, got.Record)
	require.Len(t, got.Record.Experience, 1)
	exp := got.Record.Experience[0]
	assert.Equal(t, []string{"Cut p99 latency by 40%", "Migrated 12 services to Go"}, exp.Highlights)
	assert.Equal(t, "Owned the billing platform.", exp.Description)
	assert.Equal(t, "2020-01-01", exp.StartDate)
	assert.Equal(t, utils.DateOngoing, exp.EndDate)

	require.NotNil(t, got.Analysis)
	assert.LessOrEqual(t, got.Analysis.OverallScore, 85)
	assert.LessOrEqual(t, got.Analysis.ATSScore, 80)
	assert.LessOrEqual(t, got.Analysis.CategoryScores.Skills, 85)

	require.Len(t, got.Versions, 1)
	assert.Contains(t, h.blobs.objects, got.Versions[0].ArtifactKey)

	events := drain(sub)
	require.NotEmpty(t, events)
	last := 0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Percentage, last, "progress must not go backwards")
		last = ev.Percentage
	}
	assert.Equal(t, progress.EventComplete, events[len(events)-1].Type)
}

func TestPipelineUnparseableOutputStillCompletes(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.text.text = "some résumé text"
	h.llm.outputs = []string{"Sorry, I cannot do that."}

	doc := h.upload(t)
	h.pipeline.Run(context.Background(), h.queue.last())

	got := h.mustGet(t, doc.ID)
	assert.Equal(t, models.StateCompleted, got.Status.State)
	assert.True(t, extractor.IsParsingError(got.Record))
	require.NotNil(t, got.Analysis)
	assert.Zero(t, got.Analysis.OverallScore)
	assert.Equal(t, 1, h.llm.calls, "a parsing-error record is not sent for critique")
}

func TestPipelineFailuresBecomeErrorStatus(t *testing.T) {
	t.Parallel()

	t.Run("completion outage", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.text.text = "text"
		h.llm.err = errors.New("503 from provider")

		doc := h.upload(t)
		h.pipeline.Run(context.Background(), h.queue.last())

		got := h.mustGet(t, doc.ID)
		assert.Equal(t, models.StateError, got.Status.State)
		assert.Equal(t, "structured extraction failed", got.Status.Error)
		assert.Equal(t, 45, got.Status.Progress)
	})

	t.Run("panic in a stage", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.text.panic = true

		doc := h.upload(t)
		assert.NotPanics(t, func() { h.pipeline.Run(context.Background(), h.queue.last()) })

		got := h.mustGet(t, doc.ID)
		assert.Equal(t, models.StateError, got.Status.State)
		assert.Equal(t, "internal error", got.Status.Error)
	})

	t.Run("cancelled run context", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		doc := h.upload(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		h.text.err = context.Canceled
		h.pipeline.Run(ctx, h.queue.last())

		got := h.mustGet(t, doc.ID)
		assert.Equal(t, models.StateError, got.Status.State, "error status is written even after cancellation")
	})
}

func TestReAnalyzeStartsNewRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.text.text = "text"
	h.llm.outputs = []string{extractionAnswer, critiqueAnswer, critiqueAnswer}

	doc := h.upload(t)
	h.pipeline.Run(context.Background(), h.queue.last())
	require.Equal(t, models.StateCompleted, h.mustGet(t, doc.ID).Status.State)

	st, err := h.docSvc.ReAnalyze(context.Background(), owner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAnalyzing, st.State)
	assert.Equal(t, 5, st.Progress)

	task := h.queue.last()
	assert.Equal(t, TaskReanalyze, task.Kind)
	h.pipeline.Run(context.Background(), task)

	got := h.mustGet(t, doc.ID)
	assert.Equal(t, models.StateCompleted, got.Status.State)
	assert.Equal(t, 1, got.Status.Run)

	_, err = h.docSvc.ReAnalyze(context.Background(), models.Principal{UserID: "intruder"}, doc.ID)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))
}

func TestTailorProducesLinkedDocument(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.text.text = "text"
	h.llm.outputs = []string{
		extractionAnswer,
		critiqueAnswer,
		`{"changes": [
			{"section": "skills", "action": "add", "newValue": "Kubernetes", "reason": "in posting"},
			{"section": "experience", "action": "delete", "target": "7"},
			{"section": "summary", "action": "update", "newValue": "Backend engineer focused on platform reliability."}
		]}`,
		critiqueAnswer,
	}

	origin := h.upload(t)
	h.pipeline.Run(context.Background(), h.queue.last())

	jobID := uuid.New()
	h.jobs.jobs[jobID] = models.JobPosting{ID: jobID, UserID: owner.UserID, Title: "Platform Engineer", Company: "Initech", Description: "Kubernetes and Go."}

	tailored, err := h.docSvc.Tailor(context.Background(), owner, origin.ID, jobID.String())
	require.NoError(t, err)
	assert.True(t, tailored.IsTailored)
	require.NotNil(t, tailored.Tailored)
	assert.Equal(t, origin.ID, tailored.Tailored.OriginDocumentID)
	assert.Equal(t, jobID.String(), tailored.Tailored.JobID)

	task := h.queue.last()
	assert.Equal(t, TaskTailor, task.Kind)
	h.pipeline.Run(context.Background(), task)

	got := h.mustGet(t, tailored.ID)
	require.Equal(t, models.StateCompleted, got.Status.State, got.Status.Error)
	assert.Equal(t, "Backend engineer focused on platform reliability.", got.Record.Summary)
	assert.Contains(t, skillNames(got.Record), "Kubernetes")
	require.NotNil(t, got.Analysis)
	assert.True(t, got.Analysis.Tailored)
	assert.LessOrEqual(t, got.Analysis.OverallScore, 95)
	require.Len(t, got.Versions, 1)
	assert.Equal(t, jobID.String(), got.Versions[0].JobID)

	src := h.mustGet(t, origin.ID)
	assert.NotContains(t, skillNames(src.Record), "Kubernetes", "origin record is untouched")
	assert.False(t, src.IsTailored)
	assert.Nil(t, src.Tailored)
}

func skillNames(rec *models.StructuredRecord) []string {
	var out []string
	for _, s := range rec.Skills {
		out = append(out, s.Name)
	}
	return out
}
