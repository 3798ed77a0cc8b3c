package jobsearch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/cache"
	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/utils"
)

type Strategy string

const (
	StrategyTitleLocation   Strategy = "title_location"
	StrategyBaseType        Strategy = "base_type"
	StrategyIndustryKeyword Strategy = "industry_keyword"
	StrategyGenericRole     Strategy = "generic_role"
)

const (
	defaultTarget = 10
	maxQueries    = 16
	cacheTTL      = 30 * time.Minute

	// a strategy only runs while fewer results than this are collected
	baseTypeBelow = 3
	industryBelow = 5
	genericBelow  = 2
)

var genericRoleNouns = []string{"manager", "analyst", "specialist", "coordinator", "engineer"}

// qualifiers are stripped from titles to get the base job type.
var qualifiers = map[string]bool{
	"senior": true, "sr": true, "junior": true, "jr": true, "lead": true, "principal": true,
	"staff": true, "head": true, "chief": true, "associate": true, "intern": true, "entry": true,
	"level": true, "mid": true, "i": true, "ii": true, "iii": true, "iv": true,
	"remote": true, "hybrid": true, "contract": true, "freelance": true, "part": true, "time": true, "full": true,
	"go": true, "golang": true, "java": true, "python": true, "javascript": true, "typescript": true,
	"react": true, "node": true, "nodejs": true, "aws": true, "cloud": true, "net": true, "c#": true, "c++": true,
	"php": true, "ruby": true, "rust": true, "kotlin": true, "swift": true, "sql": true, "of": true, "and": true,
}

type Preferences struct {
	Titles     []string `json:"titles" validate:"required,min=1,max=5,dive,required,max=120"`
	Locations  []string `json:"locations" validate:"max=5,dive,max=120"`
	Keywords   []string `json:"keywords" validate:"max=20,dive,max=60"`
	Industries []string `json:"industries" validate:"max=5,dive,max=60"`
	Target     int      `json:"target" validate:"omitempty,min=1,max=50"`
}

type Result struct {
	Posting
	Platform    string             `json:"platform"`
	QualityTier models.QualityTier `json:"quality_tier"`
	MatchScore  int                `json:"match_score"`
	Strategy    Strategy           `json:"strategy"`
}

// Finder runs the search strategies against one Source.
type Finder struct {
	src   Source
	cache cache.Cache
	log   *logrus.Logger
	now   func() time.Time
}

func NewFinder(src Source, c cache.Cache, log *logrus.Logger) *Finder {
	return &Finder{src: src, cache: c, log: log, now: time.Now}
}

type run struct {
	f       *Finder
	prefs   Preferences
	target  int
	results []Result
	seenIDs map[string]bool
	queries int
	failed  int
	lastErr error
}

// Find escalates through the strategies, each only when the earlier ones
// under-yield, and stops each strategy once the target count is reached.
func (f *Finder) Find(ctx context.Context, prefs Preferences) ([]Result, error) {
	const op = "Finder.Find"

	if f.src == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "job search is not configured", errNoSource)
	}
	prefs = cleanPreferences(prefs)
	if len(prefs.Titles) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "at least one job title is required", nil)
	}

	r := &run{f: f, prefs: prefs, target: prefs.Target, seenIDs: map[string]bool{}}
	if r.target <= 0 {
		r.target = defaultTarget
	}

	locations := prefs.Locations
	if len(locations) == 0 {
		locations = []string{""}
	}

	for _, title := range prefs.Titles {
		for _, loc := range locations {
			if r.done() {
				break
			}
			r.search(ctx, StrategyTitleLocation, Query{Keywords: title, Location: loc}, false)
		}
	}

	if len(r.results) < baseTypeBelow {
		for _, base := range baseJobTypes(prefs.Titles) {
			if r.done() {
				break
			}
			r.search(ctx, StrategyBaseType, Query{Keywords: base, Location: locations[0]}, false)
		}
	}

	if len(r.results) < industryBelow && len(prefs.Keywords) > 0 {
		top := prefs.Keywords[0]
		for _, ind := range prefs.Industries {
			if r.done() {
				break
			}
			r.search(ctx, StrategyIndustryKeyword, Query{Keywords: ind + " " + top, Location: locations[0]}, false)
		}
	}

	if len(r.results) < genericBelow {
		for _, noun := range genericRoleNouns {
			if r.done() {
				break
			}
			r.search(ctx, StrategyGenericRole, Query{Keywords: noun, Location: locations[0]}, true)
		}
	}

	if len(r.results) == 0 && r.queries > 0 && r.failed == r.queries {
		return nil, utils.E(utils.CodeUnavailable, op, "job search provider unavailable", r.lastErr)
	}

	f.log.WithFields(logrus.Fields{
		"op":      op,
		"queries": r.queries,
		"failed":  r.failed,
		"results": len(r.results),
	}).Info("job search finished")
	return r.results, nil
}

func (r *run) done() bool {
	return len(r.results) >= r.target || r.queries >= maxQueries
}

func (r *run) search(ctx context.Context, strategy Strategy, q Query, strict bool) {
	r.queries++
	postings, err := r.f.cachedSearch(ctx, q)
	if err != nil {
		r.failed++
		r.lastErr = err
		r.f.log.WithFields(logrus.Fields{"query": q.String(), "strategy": strategy}).WithError(err).Warn("job search query failed")
		return
	}

	now := r.f.now()
	for _, p := range postings {
		if len(r.results) >= r.target {
			return
		}
		if strings.TrimSpace(p.Title) == "" {
			continue
		}
		if p.ExternalID != "" && r.seenIDs[p.ExternalID] {
			continue
		}
		if strict && !r.strictlyRelevant(p) {
			continue
		}
		if r.isDuplicate(p) {
			continue
		}
		if p.ExternalID != "" {
			r.seenIDs[p.ExternalID] = true
		}
		r.results = append(r.results, Result{
			Posting:     p,
			Platform:    PlatformFromURL(p.URL),
			QualityTier: QualityTier(p, now),
			MatchScore:  MatchScore(p, r.prefs),
			Strategy:    strategy,
		})
	}
}

func (r *run) isDuplicate(p Posting) bool {
	for _, have := range r.results {
		if IsDuplicate(have.Posting, p) {
			return true
		}
	}
	return false
}

// strictlyRelevant requires a title word of the wanted roles and one keyword
// in the posting; generic searches return too much noise otherwise.
func (r *run) strictlyRelevant(p Posting) bool {
	title := tokenSet(p.Title)
	titleHit := false
	for _, want := range r.prefs.Titles {
		for _, t := range coreTokens(want) {
			if title[t] {
				titleHit = true
				break
			}
		}
	}
	if !titleHit {
		return false
	}
	if len(r.prefs.Keywords) == 0 {
		return true
	}
	text := strings.ToLower(foldAccents(p.Title + " " + p.Description))
	for _, k := range r.prefs.Keywords {
		if strings.Contains(text, strings.ToLower(foldAccents(k))) {
			return true
		}
	}
	return false
}

func (f *Finder) cachedSearch(ctx context.Context, q Query) ([]Posting, error) {
	key := "jobsearch:" + f.src.Name() + ":" + queryHash(q)
	return cache.Remember(ctx, f.cache, key, cacheTTL, func(ctx context.Context) ([]Posting, error) {
		return f.src.Search(ctx, q)
	})
}

func queryHash(q Query) string {
	sum := sha1.Sum([]byte(strings.ToLower(q.Keywords) + "\x00" + strings.ToLower(q.Location)))
	return hex.EncodeToString(sum[:])
}

// coreTokens are the title words left after removing seniority and
// technology qualifiers.
func coreTokens(title string) []string {
	var out []string
	for _, t := range tokens(title) {
		if !qualifiers[t] {
			out = append(out, t)
		}
	}
	return out
}

func baseJobTypes(titles []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range titles {
		base := strings.Join(coreTokens(t), " ")
		if base == "" || seen[base] {
			continue
		}
		seen[base] = true
		out = append(out, base)
	}
	return out
}

func cleanPreferences(p Preferences) Preferences {
	p.Titles = cleanList(p.Titles)
	p.Locations = cleanList(p.Locations)
	p.Keywords = cleanList(p.Keywords)
	p.Industries = cleanList(p.Industries)
	return p
}

func cleanList(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
