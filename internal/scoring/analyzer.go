package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/extractor"
	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/observability"
	"github.com/yoockh/yoocv/internal/providers/llm"
	"github.com/yoockh/yoocv/internal/utils"
)

// JobContext is the posting a tailored document is analyzed against.
type JobContext struct {
	Title       string
	Company     string
	Description string
}

type Options struct {
	Tailored bool
	Job      *JobContext
}

type critique struct {
	OverallScore   float64 `json:"overall_score"`
	ATSScore       float64 `json:"ats_score"`
	CategoryScores struct {
		Skills     float64 `json:"skills"`
		Experience float64 `json:"experience"`
		Education  float64 `json:"education"`
	} `json:"category_scores"`
	ProfileSummary     string                   `json:"profile_summary"`
	Strengths          []string                 `json:"strengths"`
	Weaknesses         []string                 `json:"weaknesses"`
	KeywordSuggestions []string                 `json:"keyword_suggestions"`
	ImprovementAreas   []models.ImprovementArea `json:"improvement_areas"`
}

var tierBaseScore = map[models.QualityTier]float64{
	models.TierExcellent: 80,
	models.TierGood:      65,
	models.TierFair:      50,
	models.TierPoor:      30,
}

type Analyzer struct {
	llm llm.Provider
	log *logrus.Logger
	now func() time.Time
}

func NewAnalyzer(p llm.Provider, log *logrus.Logger) *Analyzer {
	return &Analyzer{llm: p, log: log, now: time.Now}
}

// Analyze asks the model for a critique and bounds its scores with the
// deterministic content signals.
func (a *Analyzer) Analyze(ctx context.Context, rec *models.StructuredRecord, opts Options) (*models.Analysis, error) {
	const op = "Analyzer.Analyze"

	if rec == nil || extractor.IsParsingError(rec) {
		return &models.Analysis{
			ContentQuality: models.TierPoor,
			Weaknesses:     []string{"The résumé could not be parsed, so it was not scored."},
			Tailored:       opts.Tailored,
			AnalyzedAt:     a.now().UTC(),
		}, nil
	}

	signals := AssessContent(rec)

	raw, err := a.llm.Complete(ctx, llm.Request{
		System:      critiqueSystemPrompt,
		Prompt:      buildCritiquePrompt(rec, opts),
		MaxTokens:   4096,
		Temperature: 0.2,
	})
	if err != nil {
		code := utils.CodeOf(err)
		if code == utils.CodeInternal {
			code = utils.CodeUnavailable
		}
		return nil, utils.E(code, op, "analysis failed", err)
	}

	c, strategy, ok := parseCritique(raw)
	observability.ObserveRecovery("critique", strategy.String())
	if !ok {
		a.log.WithField("op", op).Warn("critique not recoverable, using rubric defaults")
		base := tierBaseScore[signals.Tier]
		c.OverallScore, c.ATSScore = base, base-5
		c.CategoryScores.Skills, c.CategoryScores.Experience, c.CategoryScores.Education = base, base, base
	}

	res := Normalize(Input{
		Overall:         c.OverallScore,
		ATS:             c.ATSScore,
		Skills:          c.CategoryScores.Skills,
		Experience:      c.CategoryScores.Experience,
		Education:       c.CategoryScores.Education,
		IsTailored:      opts.Tailored,
		HasPlaceholders: signals.HasPlaceholders,
		HasQuantified:   signals.HasQuantified,
		Tier:            signals.Tier,
	})
	observability.ObserveOverallScore(res.Overall)

	return &models.Analysis{
		OverallScore: res.Overall,
		ATSScore:     res.ATS,
		CategoryScores: models.CategoryScores{
			Skills:     res.Skills,
			Experience: res.Experience,
			Education:  res.Education,
		},
		ContentQuality:     signals.Tier,
		ProfileSummary:     strings.TrimSpace(c.ProfileSummary),
		Strengths:          c.Strengths,
		Weaknesses:         c.Weaknesses,
		KeywordSuggestions: c.KeywordSuggestions,
		ImprovementAreas:   c.ImprovementAreas,
		Tailored:           opts.Tailored,
		AnalyzedAt:         a.now().UTC(),
	}, nil
}

func parseCritique(raw string) (critique, extractor.Strategy, bool) {
	var c critique
	m, strategy := extractor.RecoverObject(raw)
	if m == nil {
		return c, strategy, false
	}
	if _, has := m["overall_score"]; !has {
		return c, extractor.StrategyNone, false
	}
	if err := extractor.DecodeInto(m, &c, false); err != nil {
		return critique{}, extractor.StrategyNone, false
	}
	return c, strategy, true
}

const critiqueSystemPrompt = `You are a senior technical recruiter reviewing résumés. Respond with a single JSON object and nothing else.`

func buildCritiquePrompt(rec *models.StructuredRecord, opts Options) string {
	body, _ := json.MarshalIndent(rec, "", "  ")

	var b strings.Builder
	b.WriteString("Review the résumé below and score it from 0 to 100.\n")
	if opts.Job != nil {
		fmt.Fprintf(&b, "It was tailored for the role %q at %q. Judge it against this posting:\n%s\n\n",
			opts.Job.Title, opts.Job.Company, truncate(opts.Job.Description, 4000))
	}
	b.WriteString(`Return JSON with this shape:
{
  "overall_score": 0,
  "ats_score": 0,
  "category_scores": {"skills": 0, "experience": 0, "education": 0},
  "profile_summary": "",
  "strengths": [""],
  "weaknesses": [""],
  "keyword_suggestions": [""],
  "improvement_areas": [{"section": "", "suggestions": [""], "examples": [{"original": "", "improved": ""}]}]
}

Résumé JSON:
`)
	b.Write(body)
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
