package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/changes"
	"github.com/yoockh/yoocv/internal/extractor"
	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/observability"
	mongorepo "github.com/yoockh/yoocv/internal/repositories/mongo"
	pgrepo "github.com/yoockh/yoocv/internal/repositories/postgres"
	"github.com/yoockh/yoocv/internal/storage"
	"github.com/yoockh/yoocv/internal/utils"
)

const (
	DefaultMaxUploadBytes = 10 << 20
	defaultSignedURLTTL   = 15 * time.Minute
)

type UploadInput struct {
	FileName string
	Content  io.Reader
}

type EditResult struct {
	Document *models.Document `json:"document"`
	Version  models.Version   `json:"version"`
	Report   changes.Report   `json:"report"`
}

type DocumentService interface {
	Upload(ctx context.Context, p models.Principal, in UploadInput) (*models.Document, error)
	Get(ctx context.Context, p models.Principal, id string) (*models.Document, error)
	List(ctx context.Context, p models.Principal) ([]models.Document, error)
	Status(ctx context.Context, p models.Principal, id string) (models.ProcessingStatus, error)
	ReAnalyze(ctx context.Context, p models.Principal, id string) (models.ProcessingStatus, error)
	Tailor(ctx context.Context, p models.Principal, id, jobID string) (*models.Document, error)
	ApplyEdits(ctx context.Context, p models.Principal, id string, cmds []changes.Command) (*EditResult, error)
	Versions(ctx context.Context, p models.Principal, id string) ([]models.Version, error)
	DownloadURL(ctx context.Context, p models.Principal, id string, version int) (string, error)
}

type DocumentDeps struct {
	Docs           mongorepo.DocumentRepository
	Jobs           pgrepo.JobRepository
	Status         StatusService
	Blobs          storage.BlobStore
	Queue          TaskQueue
	Engine         *changes.Engine
	Log            *logrus.Logger
	MaxUploadBytes int64
	SignedURLTTL   time.Duration
}

type documentService struct {
	DocumentDeps
	versions *versionStore
	now      func() time.Time
}

func NewDocumentService(d DocumentDeps) DocumentService {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if d.SignedURLTTL <= 0 {
		d.SignedURLTTL = defaultSignedURLTTL
	}
	if d.Engine == nil {
		d.Engine = changes.NewEngine(d.Log)
	}
	return &documentService{DocumentDeps: d, versions: newVersionStore(d.Docs, d.Blobs), now: time.Now}
}

func (s *documentService) Upload(ctx context.Context, p models.Principal, in UploadInput) (*models.Document, error) {
	const op = "DocumentService.Upload"

	if p.UserID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	if in.Content == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file is required", nil)
	}

	data, err := io.ReadAll(io.LimitReader(in.Content, s.MaxUploadBytes+1))
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "failed to read file", err)
	}
	if len(data) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file is empty", nil)
	}
	if int64(len(data)) > s.MaxUploadBytes {
		return nil, utils.E(utils.CodeTooLarge, op, fmt.Sprintf("file exceeds %d bytes", s.MaxUploadBytes), nil)
	}

	mime, fileType, ok := detectFileType(data)
	if !ok {
		return nil, utils.E(utils.CodeUnsupported, op, "only PDF, DOCX and DOC files are supported", nil)
	}

	now := s.now().UTC()
	doc := &models.Document{
		ID:     uuid.NewString(),
		UserID: p.UserID,
		File: models.FileInfo{
			Name:     sanitizeFileName(in.FileName, fileType),
			Type:     fileType,
			MimeType: mime,
			Size:     int64(len(data)),
		},
		Status:    models.NewPendingStatus(now),
		Versions:  []models.Version{},
		CreatedAt: now,
	}
	doc.File.ObjectKey = doc.OriginalKey()

	if err := s.Docs.Create(ctx, doc); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to create document", err)
	}
	log := s.Log.WithFields(logrus.Fields{"document_id": doc.ID, "user_id": p.UserID})

	if _, err := s.DocumentDeps.Status.Advance(ctx, doc.ID, models.StateUploading, 10, "Uploading file", ""); err != nil {
		return nil, err
	}
	if _, err := s.Blobs.Upload(ctx, doc.File.ObjectKey, mime, bytes.NewReader(data), int64(len(data))); err != nil {
		s.fail(ctx, log, doc.ID, "Upload failed", "file storage unavailable")
		return nil, utils.E(utils.CodeUnavailable, op, "failed to store file", err)
	}
	st, err := s.DocumentDeps.Status.Advance(ctx, doc.ID, models.StateUploading, 20, "File stored", "")
	if err != nil {
		return nil, err
	}
	doc.Status = st

	if err := s.enqueue(ctx, Task{Kind: TaskProcess, DocumentID: doc.ID, UserID: p.UserID}); err != nil {
		s.fail(ctx, log, doc.ID, "Queueing failed", "processing queue unavailable")
		return nil, utils.E(utils.CodeUnavailable, op, "failed to queue processing", err)
	}

	log.WithField("file_type", fileType).Info("document uploaded")
	return doc, nil
}

func (s *documentService) Get(ctx context.Context, p models.Principal, id string) (*models.Document, error) {
	return s.load(ctx, "DocumentService.Get", p, id)
}

func (s *documentService) List(ctx context.Context, p models.Principal) ([]models.Document, error) {
	const op = "DocumentService.List"

	if p.UserID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	docs, err := s.Docs.ListByUser(ctx, p.UserID, 50)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to list documents", err)
	}
	return docs, nil
}

func (s *documentService) Status(ctx context.Context, p models.Principal, id string) (models.ProcessingStatus, error) {
	doc, err := s.load(ctx, "DocumentService.Status", p, id)
	if err != nil {
		return models.ProcessingStatus{}, err
	}
	return doc.Status, nil
}

func (s *documentService) ReAnalyze(ctx context.Context, p models.Principal, id string) (models.ProcessingStatus, error) {
	const op = "DocumentService.ReAnalyze"

	doc, err := s.load(ctx, op, p, id)
	if err != nil {
		return models.ProcessingStatus{}, err
	}
	if doc.Status.State != models.StateCompleted {
		return doc.Status, utils.E(utils.CodeConflict, op, "only completed documents can be re-analyzed", nil)
	}
	if doc.Record == nil {
		return doc.Status, utils.E(utils.CodeConflict, op, "document has no structured record", nil)
	}
	return s.startReanalysis(ctx, op, doc, "Re-analysis queued")
}

func (s *documentService) startReanalysis(ctx context.Context, op string, doc *models.Document, msg string) (models.ProcessingStatus, error) {
	st, err := s.DocumentDeps.Status.Advance(ctx, doc.ID, models.StateAnalyzing, 5, msg, "")
	if err != nil {
		return doc.Status, err
	}
	if err := s.enqueue(ctx, Task{Kind: TaskReanalyze, DocumentID: doc.ID, UserID: doc.UserID}); err != nil {
		s.fail(ctx, s.Log.WithField("document_id", doc.ID), doc.ID, "Queueing failed", "processing queue unavailable")
		return st, utils.E(utils.CodeUnavailable, op, "failed to queue re-analysis", err)
	}
	return st, nil
}

func (s *documentService) Tailor(ctx context.Context, p models.Principal, id, jobID string) (*models.Document, error) {
	const op = "DocumentService.Tailor"

	origin, err := s.load(ctx, op, p, id)
	if err != nil {
		return nil, err
	}
	if origin.UserID != p.UserID {
		return nil, utils.E(utils.CodeForbidden, op, "only the owner can tailor a document", nil)
	}
	if origin.IsTailored {
		return nil, utils.E(utils.CodeInvalidArgument, op, "tailor the original résumé, not a tailored copy", nil)
	}
	if origin.Status.State != models.StateCompleted || origin.Record == nil || extractor.IsParsingError(origin.Record) {
		return nil, utils.E(utils.CodeConflict, op, "document must be processed before tailoring", nil)
	}
	if s.Jobs == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "job store is not configured", nil)
	}
	jid, err := uuid.Parse(jobID)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid job id", err)
	}
	job, err := s.Jobs.GetForUser(ctx, p.UserID, jid)
	if err != nil {
		if utils.CodeOf(err) == utils.CodeNotFound {
			return nil, utils.E(utils.CodeNotFound, op, "job not found", err)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load job", err)
	}

	now := s.now().UTC()
	doc := &models.Document{
		ID:         uuid.NewString(),
		UserID:     p.UserID,
		File:       origin.File,
		Status:     models.NewPendingStatus(now),
		Versions:   []models.Version{},
		IsTailored: true,
		Tailored: &models.TailoredFor{
			OriginDocumentID: origin.ID,
			JobID:            job.ID.String(),
			JobTitle:         job.Title,
			Company:          job.Company,
		},
		CreatedAt: now,
	}
	if err := s.Docs.Create(ctx, doc); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to create tailored document", err)
	}
	if _, err := s.DocumentDeps.Status.Advance(ctx, doc.ID, models.StateUploading, 10, "Preparing tailored copy", ""); err != nil {
		return nil, err
	}
	st, err := s.DocumentDeps.Status.Advance(ctx, doc.ID, models.StateUploading, 20, "Tailoring queued", "")
	if err != nil {
		return nil, err
	}
	doc.Status = st

	if err := s.enqueue(ctx, Task{Kind: TaskTailor, DocumentID: doc.ID, UserID: p.UserID, JobID: doc.Tailored.JobID}); err != nil {
		s.fail(ctx, s.Log.WithField("document_id", doc.ID), doc.ID, "Queueing failed", "processing queue unavailable")
		return nil, utils.E(utils.CodeUnavailable, op, "failed to queue tailoring", err)
	}
	return doc, nil
}

func (s *documentService) ApplyEdits(ctx context.Context, p models.Principal, id string, cmds []changes.Command) (*EditResult, error) {
	const op = "DocumentService.ApplyEdits"

	if len(cmds) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "at least one change is required", nil)
	}
	doc, err := s.load(ctx, op, p, id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != p.UserID {
		return nil, utils.E(utils.CodeForbidden, op, "only the owner can edit a document", nil)
	}
	if doc.Status.State != models.StateCompleted {
		return nil, utils.E(utils.CodeConflict, op, "document is still processing", nil)
	}
	if doc.Record == nil || extractor.IsParsingError(doc.Record) {
		return nil, utils.E(utils.CodeConflict, op, "document has no editable record", nil)
	}

	rec, report := s.Engine.Apply(doc.Record, cmds)
	if report.Applied == 0 {
		msg := "no change could be applied"
		if len(report.Skipped) > 0 {
			msg += ": " + report.Skipped[0].Reason
		}
		return nil, utils.E(utils.CodeInvalidArgument, op, msg, nil)
	}
	extractor.PostProcess(rec)

	if err := s.Docs.SetRecord(ctx, doc.ID, rec); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to save record", err)
	}
	jobID := ""
	if doc.Tailored != nil {
		jobID = doc.Tailored.JobID
	}
	ver, err := s.versions.Append(ctx, doc.ID, rec, fmt.Sprintf("%d edits applied", report.Applied), jobID)
	if err != nil {
		return nil, err
	}

	st, err := s.startReanalysis(ctx, op, doc, "Re-analyzing after edits")
	if err != nil {
		return nil, err
	}
	doc.Record = rec
	doc.Status = st
	doc.Versions = append(doc.Versions, ver)
	doc.VersionSeq = ver.Number
	return &EditResult{Document: doc, Version: ver, Report: report}, nil
}

func (s *documentService) Versions(ctx context.Context, p models.Principal, id string) ([]models.Version, error) {
	doc, err := s.load(ctx, "DocumentService.Versions", p, id)
	if err != nil {
		return nil, err
	}
	return doc.Versions, nil
}

// DownloadURL signs the original file when version is 0, otherwise the JSON
// snapshot of that version.
func (s *documentService) DownloadURL(ctx context.Context, p models.Principal, id string, version int) (string, error) {
	const op = "DocumentService.DownloadURL"

	doc, err := s.load(ctx, op, p, id)
	if err != nil {
		return "", err
	}

	key := doc.File.ObjectKey
	if version != 0 {
		key = ""
		for _, v := range doc.Versions {
			if v.Number == version {
				key = v.ArtifactKey
				break
			}
		}
		if key == "" {
			return "", utils.E(utils.CodeNotFound, op, "version not found", nil)
		}
	}

	url, err := s.Blobs.SignedGetURL(ctx, key, s.SignedURLTTL)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to sign download url", err)
	}
	return url, nil
}

// load fetches the document and enforces ownership; admins may read any document.
func (s *documentService) load(ctx context.Context, op string, p models.Principal, id string) (*models.Document, error) {
	if p.UserID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	if strings.TrimSpace(id) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "document id is required", nil)
	}
	doc, err := s.Docs.GetByID(ctx, id)
	if err != nil {
		if utils.CodeOf(err) == utils.CodeNotFound {
			return nil, utils.E(utils.CodeNotFound, op, "document not found", err)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load document", err)
	}
	if doc.UserID != p.UserID && !p.IsAdmin() {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	return doc, nil
}

func (s *documentService) enqueue(ctx context.Context, t Task) error {
	if s.Queue == nil {
		return fmt.Errorf("task queue is not configured")
	}
	if err := s.Queue.Enqueue(ctx, t); err != nil {
		return err
	}
	observability.EnqueueTask(string(t.Kind))
	return nil
}

// fail records a synchronous failure; the caller already has an error to return.
func (s *documentService) fail(ctx context.Context, log *logrus.Entry, docID, msg, detail string) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.DocumentDeps.Status.Advance(fctx, docID, models.StateError, 0, msg, detail); err != nil {
		log.WithError(err).Warn("failed to record error status")
	}
}

// detectFileType sniffs the content; the client-provided name and MIME type
// are not trusted.
func detectFileType(data []byte) (string, models.FileType, bool) {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if ft, ok := models.FileTypeForMIME(m.String()); ok {
			return m.String(), ft, true
		}
	}
	return "", "", false
}

func sanitizeFileName(name string, ft models.FileType) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "resume" + ft.Extension()
	}
	if r := []rune(name); len(r) > 200 {
		name = string(r[:200])
	}
	return name
}
