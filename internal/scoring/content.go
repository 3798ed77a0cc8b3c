package scoring

import (
	"regexp"
	"strings"

	"github.com/yoockh/yoocv/internal/models"
)

// Signals are the deterministic content checks that bound model scores.
type Signals struct {
	HasPlaceholders  bool
	HasQuantified    bool
	HasPercentages   bool
	HasMoneyOrGrowth bool
	ActionVerbs      int
	TechDensity      float64
	Tier             models.QualityTier
}

var (
	placeholderRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\[(your|insert|company|job|name|date|city|email|phone)[^\]]*\]`),
		regexp.MustCompile(`(?i)\blorem ipsum\b`),
		regexp.MustCompile(`(?i)\b(john|jane) doe\b`),
		regexp.MustCompile(`(?i)\byour (name|email|phone|company|title)\b`),
		regexp.MustCompile(`(?i)\bcompany name\b`),
		regexp.MustCompile(`(?i)\bxxx+\b`),
		regexp.MustCompile(`\b123-456-7890\b`),
	}

	percentRe = regexp.MustCompile(`\d+(?:\.\d+)?\s?%`)
	moneyRe   = regexp.MustCompile(`(?i)(?:[$€£]\s?\d|\d+(?:\.\d+)?\s?(?:k|m|mm|bn|million|billion)\b)`)
	growthRe  = regexp.MustCompile(`(?i)\b(increased|decreased|reduced|grew|boosted|saved|generated|cut|doubled|tripled)\b`)
	numberRe  = regexp.MustCompile(`\b\d+(?:[.,]\d+)?\b`)
	yearRe    = regexp.MustCompile(`^(19|20)\d{2}$`)
	wordRe    = regexp.MustCompile(`[\p{L}\p{N}+#.]+`)
)

var actionVerbs = map[string]bool{
	"achieved": true, "architected": true, "automated": true, "built": true, "championed": true,
	"created": true, "cut": true, "delivered": true, "designed": true, "developed": true,
	"drove": true, "established": true, "grew": true, "implemented": true, "improved": true,
	"increased": true, "launched": true, "led": true, "managed": true, "mentored": true,
	"migrated": true, "negotiated": true, "optimized": true, "owned": true, "reduced": true,
	"refactored": true, "scaled": true, "shipped": true, "spearheaded": true, "streamlined": true,
}

var techTerms = map[string]bool{
	"go": true, "golang": true, "python": true, "java": true, "kotlin": true, "rust": true,
	"typescript": true, "javascript": true, "react": true, "node": true, "sql": true,
	"postgres": true, "postgresql": true, "mysql": true, "mongodb": true, "redis": true,
	"kafka": true, "aws": true, "gcp": true, "azure": true, "docker": true, "kubernetes": true,
	"terraform": true, "grpc": true, "graphql": true, "linux": true, "spark": true,
	"c++": true, "c#": true, "ci/cd": true, "microservices": true, "rest": true,
}

// AssessContent inspects the achievement text of a record.
func AssessContent(rec *models.StructuredRecord) Signals {
	if rec == nil {
		return Signals{Tier: models.TierPoor}
	}
	text := achievementText(rec)
	var s Signals

	for _, re := range placeholderRes {
		if re.MatchString(text) || re.MatchString(rec.ContactInfo.Name+" "+rec.ContactInfo.Email) {
			s.HasPlaceholders = true
			break
		}
	}

	s.HasPercentages = percentRe.MatchString(text)
	s.HasMoneyOrGrowth = moneyRe.MatchString(text) || growthRe.MatchString(text)
	s.HasQuantified = s.HasPercentages || moneyRe.MatchString(text) || hasNonYearNumber(text)

	words := wordRe.FindAllString(strings.ToLower(text), -1)
	tech := 0
	for _, w := range words {
		w = strings.TrimRight(w, ".")
		if actionVerbs[w] {
			s.ActionVerbs++
		}
		if techTerms[w] {
			tech++
		}
	}
	if len(words) > 0 {
		s.TechDensity = float64(tech) / float64(len(words))
	}

	s.Tier = tierFor(s)
	return s
}

func tierFor(s Signals) models.QualityTier {
	points := 0
	if s.HasQuantified {
		points += 2
	}
	if s.HasPercentages {
		points++
	}
	if s.HasMoneyOrGrowth {
		points++
	}
	switch {
	case s.ActionVerbs >= 8:
		points += 2
	case s.ActionVerbs >= 4:
		points++
	}
	if s.TechDensity >= 0.03 {
		points++
	}

	switch {
	case s.HasPlaceholders:
		return models.TierPoor
	case points >= 6:
		return models.TierExcellent
	case points >= 4:
		return models.TierGood
	case points >= 2:
		return models.TierFair
	default:
		return models.TierPoor
	}
}

func hasNonYearNumber(text string) bool {
	for _, n := range numberRe.FindAllString(text, -1) {
		if !yearRe.MatchString(n) {
			return true
		}
	}
	return false
}

func achievementText(rec *models.StructuredRecord) string {
	var b strings.Builder
	add := func(parts ...string) {
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				b.WriteString(p)
				b.WriteByte('\n')
			}
		}
	}
	add(rec.Summary)
	for _, e := range rec.Experience {
		add(e.Description)
		add(e.Highlights...)
		add(e.Skills...)
	}
	for _, p := range rec.Projects {
		add(p.Description)
		add(p.Highlights...)
		add(p.Technologies...)
	}
	for _, s := range rec.Skills {
		add(s.Name)
	}
	return b.String()
}
