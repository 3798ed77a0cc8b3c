package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/providers/llm"
	"github.com/yoockh/yoocv/internal/storage"
	"github.com/yoockh/yoocv/internal/utils"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// memDocs hands out deep copies so callers never share memory with the store.
type memDocs struct {
	mu   sync.Mutex
	docs map[string]*models.Document

	// casMisses makes the next n CompareAndSetStatus calls report a lost race.
	casMisses int
}

func newMemDocs() *memDocs { return &memDocs{docs: map[string]*models.Document{}} }

func cloneDoc(d *models.Document) *models.Document {
	cp := *d
	cp.Record = d.Record.Clone()
	if d.Analysis != nil {
		a := *d.Analysis
		cp.Analysis = &a
	}
	if d.Tailored != nil {
		t := *d.Tailored
		cp.Tailored = &t
	}
	cp.Versions = append([]models.Version{}, d.Versions...)
	return &cp
}

func (m *memDocs) Create(_ context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[d.ID]; ok {
		return errors.New("duplicate")
	}
	m.docs[d.ID] = cloneDoc(d)
	return nil
}

func (m *memDocs) GetByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return cloneDoc(d), nil
}

func (m *memDocs) ListByUser(_ context.Context, userID string, _ int64) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Document{}
	for _, d := range m.docs {
		if d.UserID == userID {
			out = append(out, *cloneDoc(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memDocs) CompareAndSetStatus(_ context.Context, id string, expected, next models.ProcessingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return false, nil
	}
	if m.casMisses > 0 {
		m.casMisses--
		return false, nil
	}
	cur := d.Status
	if cur.State != expected.State || cur.Progress != expected.Progress || cur.Run != expected.Run {
		return false, nil
	}
	d.Status = next
	return true, nil
}

func (m *memDocs) SetRecord(_ context.Context, id string, rec *models.StructuredRecord) error {
	return m.update(id, func(d *models.Document) { d.Record = rec.Clone() })
}

func (m *memDocs) SetAnalysis(_ context.Context, id string, a *models.Analysis) error {
	return m.update(id, func(d *models.Document) { cp := *a; d.Analysis = &cp })
}

func (m *memDocs) AppendVersion(_ context.Context, id string, v models.Version) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || d.VersionSeq != v.Number-1 {
		return false, nil
	}
	d.Versions = append(d.Versions, v)
	d.VersionSeq = v.Number
	return true, nil
}

func (m *memDocs) update(id string, fn func(*models.Document)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return utils.ErrNotFound
	}
	fn(d)
	return nil
}

// setStatus forces a status for test setup.
func (m *memDocs) setStatus(id string, st models.ProcessingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id].Status = st
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

var _ storage.BlobStore = (*memBlobs)(nil)

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (b *memBlobs) Upload(_ context.Context, name, _ string, r io.Reader, _ int64) (string, error) {
	if b.failPut {
		return "", errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = data
	return name, nil
}

func (b *memBlobs) Download(_ context.Context, name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[name]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return bytes.Clone(data), nil
}

func (b *memBlobs) SignedGetURL(_ context.Context, name string, ttl time.Duration) (string, error) {
	return "https://blobs.test/" + name + "?ttl=" + ttl.String(), nil
}

type memQueue struct {
	mu    sync.Mutex
	tasks []Task
	err   error
}

func (q *memQueue) Enqueue(_ context.Context, t Task) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *memQueue) last() Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks[len(q.tasks)-1]
}

type memJobs struct {
	jobs map[uuid.UUID]models.JobPosting
}

func (j *memJobs) SaveResults(_ context.Context, jobs []models.JobPosting) error {
	for i := range jobs {
		if jobs[i].ID == uuid.Nil {
			jobs[i].ID = uuid.New()
		}
		j.jobs[jobs[i].ID] = jobs[i]
	}
	return nil
}

func (j *memJobs) GetForUser(_ context.Context, userID string, id uuid.UUID) (*models.JobPosting, error) {
	job, ok := j.jobs[id]
	if !ok || job.UserID != userID {
		return nil, utils.ErrNotFound
	}
	return &job, nil
}

func (j *memJobs) ListByUser(_ context.Context, userID string, _ int) ([]models.JobPosting, error) {
	var out []models.JobPosting
	for _, job := range j.jobs {
		if job.UserID == userID {
			out = append(out, job)
		}
	}
	return out, nil
}

// scriptedLLM answers calls in order with the given outputs.
type scriptedLLM struct {
	mu      sync.Mutex
	outputs []string
	err     error
	calls   int
}

func (s *scriptedLLM) Complete(context.Context, llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.outputs) == 0 {
		return "", llm.ErrEmptyResponse
	}
	out := s.outputs[0]
	s.outputs = s.outputs[1:]
	return out, nil
}
func (s *scriptedLLM) Name() string { return "scripted" }
func (s *scriptedLLM) Close() error { return nil }

type fakeText struct {
	text  string
	err   error
	panic bool
}

func (f *fakeText) Extract(context.Context, models.FileType, string, []byte) (string, error) {
	if f.panic {
		panic("parser crashed")
	}
	return f.text, f.err
}
