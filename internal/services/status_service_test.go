package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/progress"
	"github.com/yoockh/yoocv/internal/utils"
)

func st(state models.State, pct, run int) models.ProcessingStatus {
	return models.ProcessingStatus{State: state, Progress: pct, Run: run}
}

func TestNextStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name     string
		cur      models.ProcessingStatus
		state    models.State
		pct      int
		wantPct  int
		wantRun  int
		changed  bool
		rejected bool
	}{
		{name: "forward", cur: st(models.StatePending, 0, 0), state: models.StateUploading, pct: 10, wantPct: 10, changed: true},
		{name: "same pair is a no-op", cur: st(models.StateParsing, 45, 0), state: models.StateParsing, pct: 45, wantPct: 45},
		{name: "lower progress in same state is a no-op", cur: st(models.StateParsing, 45, 0), state: models.StateParsing, pct: 30, wantPct: 45},
		{name: "lower progress on forward edge is lifted", cur: st(models.StateParsing, 60, 0), state: models.StateAnalyzing, pct: 50, wantPct: 60, changed: true},
		{name: "completed forces 100", cur: st(models.StateAnalyzing, 85, 0), state: models.StateCompleted, pct: 90, wantPct: 100, changed: true},
		{name: "error keeps progress", cur: st(models.StateParsing, 45, 0), state: models.StateError, pct: 0, wantPct: 45, changed: true},
		{name: "re-analysis starts a run", cur: st(models.StateCompleted, 100, 0), state: models.StateAnalyzing, pct: 5, wantPct: 5, wantRun: 1, changed: true},
		{name: "skip is rejected", cur: st(models.StatePending, 0, 0), state: models.StateAnalyzing, pct: 70, rejected: true},
		{name: "backwards is rejected", cur: st(models.StateAnalyzing, 70, 0), state: models.StateParsing, pct: 80, rejected: true},
		{name: "error is absorbing", cur: st(models.StateError, 45, 0), state: models.StateParsing, pct: 50, rejected: true},
		{name: "repeated error is a no-op", cur: st(models.StateError, 45, 0), state: models.StateError, pct: 0, wantPct: 45},
		{name: "completed cannot fail", cur: st(models.StateCompleted, 100, 0), state: models.StateError, pct: 0, rejected: true},
		{name: "progress is clamped", cur: st(models.StateUploading, 10, 0), state: models.StateUploading, pct: 250, wantPct: 100, changed: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			next, changed, err := nextStatus(tt.cur, tt.state, tt.pct, "msg", "detail", now)
			if tt.rejected {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.wantPct, next.Progress)
			if tt.changed {
				assert.Equal(t, tt.state, next.State)
				assert.Equal(t, tt.wantRun, next.Run)
				assert.Equal(t, now, next.UpdatedAt)
			}
		})
	}
}

func newStatusFixture(t *testing.T) (*memDocs, *progress.Broadcaster, StatusService, string) {
	t.Helper()
	docs := newMemDocs()
	doc := &models.Document{ID: "doc-1", UserID: "u1", Status: models.NewPendingStatus(time.Now())}
	require.NoError(t, docs.Create(context.Background(), doc))
	b := progress.NewBroadcaster(16, quietLogger())
	return docs, b, NewStatusService(docs, b, quietLogger()), doc.ID
}

func TestAdvancePublishesAcceptedTransitions(t *testing.T) {
	t.Parallel()

	_, b, svc, id := newStatusFixture(t)
	sub := b.Subscribe("u1", id)
	defer b.Unsubscribe(sub)
	ctx := context.Background()

	_, err := svc.Advance(ctx, id, models.StateUploading, 10, "Uploading file", "")
	require.NoError(t, err)
	_, err = svc.Advance(ctx, id, models.StateUploading, 10, "Uploading file", "")
	require.NoError(t, err)
	_, err = svc.Advance(ctx, id, models.StateError, 0, "Upload failed", "bucket down")
	require.NoError(t, err)

	ev := <-sub.C
	assert.Equal(t, progress.EventProgress, ev.Type)
	assert.Equal(t, "uploading", ev.Stage)
	assert.Equal(t, 10, ev.Percentage)

	ev = <-sub.C
	assert.Equal(t, progress.EventError, ev.Type)
	assert.Equal(t, "bucket down", ev.Message)
	assert.Equal(t, 10, ev.Percentage)

	select {
	case extra := <-sub.C:
		t.Fatalf("no-op advance must not publish, got %+v", extra)
	default:
	}
}

func TestAdvanceRejectsIllegalTransition(t *testing.T) {
	t.Parallel()

	_, _, svc, id := newStatusFixture(t)
	_, err := svc.Advance(context.Background(), id, models.StateCompleted, 100, "done", "")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeConflict))
}

func TestAdvanceRetriesLostRace(t *testing.T) {
	t.Parallel()

	docs, _, svc, id := newStatusFixture(t)
	docs.casMisses = 2

	got, err := svc.Advance(context.Background(), id, models.StateUploading, 10, "Uploading file", "")
	require.NoError(t, err)
	assert.Equal(t, models.StateUploading, got.State)

	docs.casMisses = maxStatusAttempts
	_, err = svc.Advance(context.Background(), id, models.StateUploading, 20, "File stored", "")
	assert.True(t, utils.IsCode(err, utils.CodeConflict))
}

func TestAdvanceUnknownDocument(t *testing.T) {
	t.Parallel()

	_, _, svc, _ := newStatusFixture(t)
	_, err := svc.Advance(context.Background(), "missing", models.StateUploading, 10, "", "")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}
