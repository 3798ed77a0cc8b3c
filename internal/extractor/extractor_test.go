package extractor

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/providers/llm"
	"github.com/yoockh/yoocv/internal/utils"
)

type stubProvider struct {
	answer string
	err    error
	calls  int
	last   llm.Request
}

func (s *stubProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	s.calls++
	s.last = req
	return s.answer, s.err
}
func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Close() error { return nil }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestExtractNormalizesRecord(t *testing.T) {
	t.Parallel()

	p := &stubProvider{answer: "```json\n" + `{
		"contactInfo": {"name": "Jane Smith", "email": "jane@example.org"},
		"experience": [{
			"company": "Acme",
			"title": "Backend Engineer",
			"startDate": "March 2020",
			"endDate": "current",
			"description": "Owned billing.\n- Increased revenue by 20%\n• Cut p99 latency by 35%"
		}],
		"certifications": [{"name": "CKA", "issueDate": "2021", "expiryDate": "never"}]
	}` + "\n```"}

	x := New(p, quietLogger())
	res, err := x.Extract(context.Background(), "Jane Smith\nBackend Engineer at Acme", models.FileTypePDF)
	require.NoError(t, err)
	require.Equal(t, StrategyDirect, res.Strategy)

	rec := res.Record
	require.Len(t, rec.Experience, 1)
	e := rec.Experience[0]
	assert.Equal(t, "2020-03-01", e.StartDate)
	assert.Equal(t, utils.DateOngoing, e.EndDate)
	assert.Equal(t, "Owned billing.", e.Description)
	assert.Equal(t, []string{"Increased revenue by 20%", "Cut p99 latency by 35%"}, e.Highlights)

	require.Len(t, rec.Certifications, 1)
	assert.Equal(t, "2021-01-01", rec.Certifications[0].IssueDate)
	assert.Equal(t, utils.DateNeverExpires, rec.Certifications[0].ExpiryDate)

	assert.Contains(t, p.last.Prompt, "Backend Engineer at Acme")
	assert.Equal(t, 1, p.calls)
}

func TestExtractReturnsSentinelOnGarbage(t *testing.T) {
	t.Parallel()

	x := New(&stubProvider{answer: "I am unable to process this document."}, quietLogger())
	res, err := x.Extract(context.Background(), "some résumé text", models.FileTypeDOCX)
	require.NoError(t, err)
	assert.True(t, IsParsingError(res.Record))
	assert.Equal(t, StrategyNone, res.Strategy)
}

func TestExtractEmptyTextSkipsModel(t *testing.T) {
	t.Parallel()

	p := &stubProvider{answer: `{"summary":"x"}`}
	x := New(p, quietLogger())
	res, err := x.Extract(context.Background(), "  \x00\x01 \n\n", models.FileTypePDF)
	require.NoError(t, err)
	assert.True(t, IsParsingError(res.Record))
	assert.Zero(t, p.calls)
}

func TestExtractSurfacesProviderFailure(t *testing.T) {
	t.Parallel()

	x := New(&stubProvider{err: errors.New("connection reset")}, quietLogger())
	_, err := x.Extract(context.Background(), "text", models.FileTypePDF)
	require.Error(t, err)
	assert.True(t, utils.IsTransient(err))
}

func TestExtractTruncatesLongInput(t *testing.T) {
	t.Parallel()

	p := &stubProvider{answer: `{"summary":"x"}`}
	x := New(p, quietLogger())
	x.maxInputChars = 10

	_, err := x.Extract(context.Background(), "abcdefghijklmnopqrstuvwxyz", models.FileTypePDF)
	require.NoError(t, err)
	assert.Contains(t, p.last.Prompt, "abcdefghij")
	assert.NotContains(t, p.last.Prompt, "abcdefghijk")
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	got := CleanText("Jane\r\n\x07Smith  \n\n\n\nEngineer\t ")
	assert.Equal(t, "Jane\nSmith\n\nEngineer", got)
}
