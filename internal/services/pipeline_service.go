package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/changes"
	"github.com/yoockh/yoocv/internal/extractor"
	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/observability"
	mongorepo "github.com/yoockh/yoocv/internal/repositories/mongo"
	pgrepo "github.com/yoockh/yoocv/internal/repositories/postgres"
	"github.com/yoockh/yoocv/internal/scoring"
	"github.com/yoockh/yoocv/internal/storage"
	"github.com/yoockh/yoocv/internal/tailoring"
	"github.com/yoockh/yoocv/internal/textextract"
	"github.com/yoockh/yoocv/internal/utils"
)

type RecordExtractor interface {
	Extract(ctx context.Context, text string, fileType models.FileType) (*extractor.Result, error)
}

type RecordAnalyzer interface {
	Analyze(ctx context.Context, rec *models.StructuredRecord, opts scoring.Options) (*models.Analysis, error)
}

type TailoringPlanner interface {
	Plan(ctx context.Context, rec *models.StructuredRecord, job tailoring.Job) ([]changes.Command, error)
}

type PipelineService interface {
	// Run executes the task under the supervisor: any failure, panic included,
	// ends as the document's error status and is never returned.
	Run(ctx context.Context, task Task)
	Execute(ctx context.Context, task Task) error
}

type PipelineDeps struct {
	Docs      mongorepo.DocumentRepository
	Jobs      pgrepo.JobRepository
	Status    StatusService
	Blobs     storage.BlobStore
	Text      textextract.Extractor
	Extractor RecordExtractor
	Analyzer  RecordAnalyzer
	Planner   TailoringPlanner
	Engine    *changes.Engine
	Log       *logrus.Logger
}

type pipelineService struct {
	PipelineDeps
	versions *versionStore
}

func NewPipelineService(d PipelineDeps) PipelineService {
	if d.Engine == nil {
		d.Engine = changes.NewEngine(d.Log)
	}
	return &pipelineService{PipelineDeps: d, versions: newVersionStore(d.Docs, d.Blobs)}
}

func (s *pipelineService) Run(ctx context.Context, task Task) {
	log := s.Log.WithFields(logrus.Fields{
		"document_id": task.DocumentID,
		"kind":        task.Kind,
	})
	kind := string(task.Kind)
	start := time.Now()
	observability.StartTask(kind)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				log.WithField("stack", string(debug.Stack())).Error("pipeline panicked")
			}
		}()
		return s.Execute(ctx, task)
	}()

	if err == nil {
		observability.CompleteTask(kind)
		log.WithField("took_ms", time.Since(start).Milliseconds()).Info("pipeline completed")
		return
	}

	observability.FailTask(kind)
	log.WithError(err).Error("pipeline failed")

	// the run context may already be cancelled by the overall timeout
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, serr := s.Status.Advance(fctx, task.DocumentID, models.StateError, 0, "Processing failed", failureDetail(err)); serr != nil {
		log.WithError(serr).Error("failed to record error status")
	}
}

func failureDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "processing timed out"
	}
	switch utils.CodeOf(err) {
	case utils.CodeTimeout:
		return "processing timed out"
	case utils.CodeInternal:
		return "internal error"
	}
	return utils.Public(err)
}

func (s *pipelineService) Execute(ctx context.Context, task Task) error {
	const op = "PipelineService.Execute"

	if err := task.Validate(); err != nil {
		return utils.E(utils.CodeInvalidArgument, op, err.Error(), nil)
	}
	switch task.Kind {
	case TaskProcess:
		return s.process(ctx, task)
	case TaskReanalyze:
		return s.reanalyze(ctx, task)
	default:
		return s.tailor(ctx, task)
	}
}

func (s *pipelineService) advance(ctx context.Context, docID string, state models.State, pct int, msg string) error {
	_, err := s.Status.Advance(ctx, docID, state, pct, msg, "")
	return err
}

func (s *pipelineService) process(ctx context.Context, task Task) error {
	const op = "PipelineService.process"

	if err := s.advance(ctx, task.DocumentID, models.StateParsing, 30, "Extracting text"); err != nil {
		return err
	}
	doc, err := s.Docs.GetByID(ctx, task.DocumentID)
	if err != nil {
		return utils.E(utils.CodeOf(err), op, "document not found", err)
	}

	data, err := s.Blobs.Download(ctx, doc.File.ObjectKey)
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to read uploaded file", err)
	}
	text, err := s.Text.Extract(ctx, doc.File.Type, doc.File.Name, data)
	if err != nil {
		return err
	}

	if err := s.advance(ctx, doc.ID, models.StateParsing, 45, "Structuring résumé"); err != nil {
		return err
	}
	res, err := s.Extractor.Extract(ctx, text, doc.File.Type)
	if err != nil {
		return err
	}
	if err := s.Docs.SetRecord(ctx, doc.ID, res.Record); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to save record", err)
	}
	if _, err := s.versions.Append(ctx, doc.ID, res.Record, "Parsed from upload", ""); err != nil {
		return err
	}
	if err := s.advance(ctx, doc.ID, models.StateParsing, 60, "Résumé structured"); err != nil {
		return err
	}

	return s.analyze(ctx, doc.ID, res.Record, scoring.Options{})
}

func (s *pipelineService) reanalyze(ctx context.Context, task Task) error {
	const op = "PipelineService.reanalyze"

	doc, err := s.Docs.GetByID(ctx, task.DocumentID)
	if err != nil {
		return utils.E(utils.CodeOf(err), op, "document not found", err)
	}
	if doc.Record == nil {
		return utils.E(utils.CodeConflict, op, "document has no structured record", nil)
	}

	opts := scoring.Options{Tailored: doc.IsTailored}
	if doc.IsTailored && doc.Tailored != nil {
		opts.Job = s.jobContext(ctx, task.UserID, doc.Tailored.JobID)
	}
	return s.analyze(ctx, doc.ID, doc.Record, opts)
}

func (s *pipelineService) tailor(ctx context.Context, task Task) error {
	const op = "PipelineService.tailor"

	doc, err := s.Docs.GetByID(ctx, task.DocumentID)
	if err != nil {
		return utils.E(utils.CodeOf(err), op, "document not found", err)
	}
	if !doc.IsTailored || doc.Tailored == nil {
		return utils.E(utils.CodeInvalidArgument, op, "document is not a tailored copy", nil)
	}
	if err := s.advance(ctx, doc.ID, models.StateParsing, 30, "Reading job posting"); err != nil {
		return err
	}

	origin, err := s.Docs.GetByID(ctx, doc.Tailored.OriginDocumentID)
	if err != nil {
		return utils.E(utils.CodeOf(err), op, "origin document not found", err)
	}
	if origin.Record == nil || extractor.IsParsingError(origin.Record) {
		return utils.E(utils.CodeConflict, op, "origin résumé has no usable record", nil)
	}
	job, err := s.loadJob(ctx, task.UserID, task.JobID)
	if err != nil {
		return err
	}

	if err := s.advance(ctx, doc.ID, models.StateParsing, 45, "Tailoring résumé"); err != nil {
		return err
	}
	cmds, err := s.Planner.Plan(ctx, origin.Record, tailoring.JobFromPosting(job))
	if err != nil {
		return err
	}
	rec, report := s.Engine.Apply(origin.Record, cmds)
	extractor.PostProcess(rec)
	s.Log.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"applied":     report.Applied,
		"skipped":     len(report.Skipped),
	}).Info("tailoring changes applied")

	if err := s.Docs.SetRecord(ctx, doc.ID, rec); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to save record", err)
	}
	desc := fmt.Sprintf("Tailored for %s", job.Title)
	if job.Company != "" {
		desc += " at " + job.Company
	}
	if _, err := s.versions.Append(ctx, doc.ID, rec, desc, task.JobID); err != nil {
		return err
	}
	if err := s.advance(ctx, doc.ID, models.StateParsing, 60, fmt.Sprintf("%d changes applied", report.Applied)); err != nil {
		return err
	}

	return s.analyze(ctx, doc.ID, rec, scoring.Options{
		Tailored: true,
		Job:      &scoring.JobContext{Title: job.Title, Company: job.Company, Description: job.Description},
	})
}

func (s *pipelineService) analyze(ctx context.Context, docID string, rec *models.StructuredRecord, opts scoring.Options) error {
	const op = "PipelineService.analyze"

	if err := s.advance(ctx, docID, models.StateAnalyzing, 70, "Analyzing résumé"); err != nil {
		return err
	}
	a, err := s.Analyzer.Analyze(ctx, rec, opts)
	if err != nil {
		return err
	}
	if err := s.advance(ctx, docID, models.StateAnalyzing, 85, "Saving analysis"); err != nil {
		return err
	}
	if err := s.Docs.SetAnalysis(ctx, docID, a); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to save analysis", err)
	}
	return s.advance(ctx, docID, models.StateCompleted, 100, "Analysis complete")
}

func (s *pipelineService) loadJob(ctx context.Context, userID, jobID string) (*models.JobPosting, error) {
	const op = "PipelineService.loadJob"

	if s.Jobs == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "job store is not configured", nil)
	}
	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid job id", err)
	}
	job, err := s.Jobs.GetForUser(ctx, userID, id)
	if err != nil {
		if utils.CodeOf(err) == utils.CodeNotFound {
			return nil, utils.E(utils.CodeNotFound, op, "job not found", err)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load job", err)
	}
	return job, nil
}

// jobContext is best effort; a re-analysis still runs without the posting.
func (s *pipelineService) jobContext(ctx context.Context, userID, jobID string) *scoring.JobContext {
	job, err := s.loadJob(ctx, userID, jobID)
	if err != nil {
		s.Log.WithError(err).WithField("job_id", jobID).Warn("job context unavailable for re-analysis")
		return nil
	}
	return &scoring.JobContext{Title: job.Title, Company: job.Company, Description: job.Description}
}
