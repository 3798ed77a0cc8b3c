package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/progress"
	mongorepo "github.com/yoockh/yoocv/internal/repositories/mongo"
	"github.com/yoockh/yoocv/internal/utils"
)

const maxStatusAttempts = 5

type StatusService interface {
	// Advance moves the document to state with the given progress. Repeating
	// the current (state, progress) pair is a no-op. Every accepted change is
	// published to progress subscribers.
	Advance(ctx context.Context, documentID string, state models.State, progress int, message, errDetail string) (models.ProcessingStatus, error)
}

type statusService struct {
	repo mongorepo.DocumentRepository
	pub  progress.Publisher
	log  *logrus.Logger
	now  func() time.Time
}

func NewStatusService(repo mongorepo.DocumentRepository, pub progress.Publisher, log *logrus.Logger) StatusService {
	return &statusService{repo: repo, pub: pub, log: log, now: time.Now}
}

func (s *statusService) Advance(ctx context.Context, documentID string, state models.State, pct int, message, errDetail string) (models.ProcessingStatus, error) {
	const op = "StatusService.Advance"

	if !state.Valid() {
		return models.ProcessingStatus{}, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("unknown state %q", state), nil)
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		doc, err := s.repo.GetByID(ctx, documentID)
		if err != nil {
			if utils.CodeOf(err) == utils.CodeNotFound {
				return models.ProcessingStatus{}, utils.E(utils.CodeNotFound, op, "document not found", err)
			}
			return models.ProcessingStatus{}, utils.E(utils.CodeUnavailable, op, "failed to load status", err)
		}
		cur := doc.Status

		next, changed, err := nextStatus(cur, state, pct, message, errDetail, s.now().UTC())
		if err != nil {
			return cur, utils.E(utils.CodeConflict, op, err.Error(), nil)
		}
		if !changed {
			return cur, nil
		}

		ok, err := s.repo.CompareAndSetStatus(ctx, documentID, cur, next)
		if err != nil {
			return cur, utils.E(utils.CodeUnavailable, op, "failed to persist status", err)
		}
		if !ok {
			// another writer won; re-read and re-evaluate
			continue
		}

		s.publish(ctx, documentID, next)
		return next, nil
	}
	return models.ProcessingStatus{}, utils.E(utils.CodeConflict, op, "status changed concurrently", nil)
}

// nextStatus is the pure decision of Advance. Within a run progress never
// decreases; a completed→analyzing edge starts a new run.
func nextStatus(cur models.ProcessingStatus, state models.State, pct int, message, errDetail string, now time.Time) (models.ProcessingStatus, bool, error) {
	pct = clampProgress(pct)
	run := cur.Run

	switch {
	case models.StartsRun(cur.State, state):
		run++
	case state == models.StateCompleted:
		pct = 100
	case pct < cur.Progress:
		pct = cur.Progress
	}

	if state == cur.State && pct == cur.Progress && run == cur.Run {
		return cur, false, nil
	}
	if !models.CanTransition(cur.State, state) {
		return cur, false, fmt.Errorf("invalid transition %s -> %s", cur.State, state)
	}

	next := models.ProcessingStatus{
		State:     state,
		Progress:  pct,
		Message:   message,
		Run:       run,
		UpdatedAt: now,
	}
	if state == models.StateError {
		next.Error = errDetail
	}
	return next, true, nil
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// publish is best effort; a missed event is recovered by the next one or by
// polling the status endpoint.
func (s *statusService) publish(ctx context.Context, documentID string, st models.ProcessingStatus) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, documentID, progress.EventFromStatus(st)); err != nil {
		s.log.WithFields(logrus.Fields{
			"document_id": documentID,
			"state":       st.State,
		}).WithError(err).Warn("progress publish failed")
	}
}
