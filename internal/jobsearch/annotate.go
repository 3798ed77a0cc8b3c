package jobsearch

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/yoockh/yoocv/internal/models"
)

var platformHosts = []struct {
	suffix, name string
}{
	{"linkedin.com", "linkedin"},
	{"indeed.com", "indeed"},
	{"glassdoor.com", "glassdoor"},
	{"ziprecruiter.com", "ziprecruiter"},
	{"greenhouse.io", "greenhouse"},
	{"lever.co", "lever"},
	{"myworkdayjobs.com", "workday"},
	{"smartrecruiters.com", "smartrecruiters"},
	{"ashbyhq.com", "ashby"},
	{"wellfound.com", "wellfound"},
	{"remoteok.com", "remoteok"},
	{"weworkremotely.com", "weworkremotely"},
	{"monster.com", "monster"},
}

// PlatformFromURL names the job board a posting came from; unknown hosts
// yield the bare host and unparseable URLs yield "unknown".
func PlatformFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range platformHosts {
		if host == p.suffix || strings.HasSuffix(host, "."+p.suffix) {
			return p.name
		}
	}
	return strings.TrimPrefix(host, "www.")
}

var (
	salaryRe       = regexp.MustCompile(`(?i)(\$|€|£|usd|eur)\s?\d|salary|compensation`)
	requirementsRe = regexp.MustCompile(`(?i)\b(requirements|qualifications|responsibilities|what you('| wi)ll do)\b`)
	spamRe         = regexp.MustCompile(`(?i)\b(commission only|mlm|earn \$?\d+ (a|per) day|no experience needed)\b`)
)

// QualityTier rates how complete and trustworthy a posting looks.
func QualityTier(p Posting, now time.Time) models.QualityTier {
	if spamRe.MatchString(p.Title + " " + p.Description) {
		return models.TierPoor
	}
	points := 0
	if p.Company != "" {
		points++
	}
	if p.URL != "" {
		points++
	}
	switch n := len(p.Description); {
	case n >= 1500:
		points += 2
	case n >= 400:
		points++
	}
	if requirementsRe.MatchString(p.Description) {
		points++
	}
	if salaryRe.MatchString(p.Description) {
		points++
	}
	if p.PostedAt != nil && now.Sub(*p.PostedAt) <= 30*24*time.Hour {
		points++
	}

	switch {
	case points >= 6:
		return models.TierExcellent
	case points >= 4:
		return models.TierGood
	case points >= 2:
		return models.TierFair
	}
	return models.TierPoor
}

// MatchScore scores 0..100 how well a posting fits the preferences: title
// overlap weighs most, then keywords, then location.
func MatchScore(p Posting, prefs Preferences) int {
	score := 0.0

	titleToks := tokenSet(p.Title)
	best := 0.0
	for _, want := range prefs.Titles {
		wt := coreTokens(want)
		if len(wt) == 0 {
			continue
		}
		hit := 0
		for _, t := range wt {
			if titleToks[t] {
				hit++
			}
		}
		if r := float64(hit) / float64(len(wt)); r > best {
			best = r
		}
	}
	score += 50 * best

	if len(prefs.Keywords) > 0 {
		text := strings.ToLower(foldAccents(p.Title + " " + p.Description))
		hit := 0
		for _, k := range prefs.Keywords {
			if k = strings.ToLower(foldAccents(strings.TrimSpace(k))); k != "" && strings.Contains(text, k) {
				hit++
			}
		}
		score += 35 * float64(hit) / float64(len(prefs.Keywords))
	}

	if locationMatches(p.Location, prefs.Locations) {
		score += 15
	}

	if score > 100 {
		return 100
	}
	return int(score + 0.5)
}

func locationMatches(loc string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	l := strings.ToLower(foldAccents(loc))
	for _, w := range wanted {
		w = strings.ToLower(foldAccents(strings.TrimSpace(w)))
		if w != "" && (strings.Contains(l, w) || (l != "" && strings.Contains(w, l))) {
			return true
		}
	}
	return false
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, t := range tokens(s) {
		out[t] = true
	}
	return out
}
