package services

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/yoockh/yoocv/internal/jobsearch"
	"github.com/yoockh/yoocv/internal/models"
	pgrepo "github.com/yoockh/yoocv/internal/repositories/postgres"
	"github.com/yoockh/yoocv/internal/utils"
)

type JobFinder interface {
	Find(ctx context.Context, prefs jobsearch.Preferences) ([]jobsearch.Result, error)
}

type JobService interface {
	Search(ctx context.Context, p models.Principal, prefs jobsearch.Preferences) ([]models.JobPosting, error)
	Get(ctx context.Context, p models.Principal, id string) (*models.JobPosting, error)
	List(ctx context.Context, p models.Principal) ([]models.JobPosting, error)
}

type jobService struct {
	jobs     pgrepo.JobRepository
	finder   JobFinder
	validate *validator.Validate
	log      *logrus.Logger
}

func NewJobService(jobs pgrepo.JobRepository, finder JobFinder, log *logrus.Logger) JobService {
	return &jobService{jobs: jobs, finder: finder, validate: validator.New(), log: log}
}

// Search runs the finder and stores the results for the caller so they can
// be referenced by id when tailoring.
func (s *jobService) Search(ctx context.Context, p models.Principal, prefs jobsearch.Preferences) ([]models.JobPosting, error) {
	const op = "JobService.Search"

	if p.UserID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	if err := s.validate.Struct(prefs); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "invalid search preferences: "+verrs[0].Field(), err)
		}
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid search preferences", err)
	}

	results, err := s.finder.Find(ctx, prefs)
	if err != nil {
		if utils.CodeOf(err) != utils.CodeInternal {
			return nil, err
		}
		return nil, utils.E(utils.CodeUnavailable, op, "job search failed", err)
	}

	rows := make([]models.JobPosting, 0, len(results))
	for _, r := range results {
		if r.ExternalID == "" {
			continue
		}
		rows = append(rows, toJobPosting(p.UserID, prefs.Keywords, r))
	}
	if err := s.jobs.SaveResults(ctx, rows); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save job results", err)
	}

	s.log.WithFields(logrus.Fields{
		"op":      op,
		"user_id": p.UserID,
		"results": len(rows),
	}).Info("job search saved")
	return rows, nil
}

func (s *jobService) Get(ctx context.Context, p models.Principal, id string) (*models.JobPosting, error) {
	const op = "JobService.Get"

	jid, err := uuid.Parse(id)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid job id", err)
	}
	job, err := s.jobs.GetForUser(ctx, p.UserID, jid)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "job not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load job", err)
	}
	return job, nil
}

func (s *jobService) List(ctx context.Context, p models.Principal) ([]models.JobPosting, error) {
	const op = "JobService.List"

	rows, err := s.jobs.ListByUser(ctx, p.UserID, 50)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list jobs", err)
	}
	return rows, nil
}

func toJobPosting(userID string, keywords []string, r jobsearch.Result) models.JobPosting {
	row := models.JobPosting{
		UserID:      userID,
		ExternalID:  r.ExternalID,
		Title:       r.Title,
		Company:     r.Company,
		Location:    r.Location,
		URL:         r.URL,
		Description: r.Description,
		Platform:    r.Platform,
		QualityTier: string(r.QualityTier),
		MatchScore:  r.MatchScore,
		Strategy:    string(r.Strategy),
		Keywords:    pq.StringArray(keywords),
		PostedAt:    r.PostedAt,
	}
	if len(r.Raw) > 0 {
		row.Raw = datatypes.JSON(r.Raw)
	}
	return row
}
