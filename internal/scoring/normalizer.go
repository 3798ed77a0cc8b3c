package scoring

import (
	"math"

	"github.com/yoockh/yoocv/internal/models"
)

const (
	overallCeiling         = 85
	overallCeilingTailored = 95
	atsCeiling             = 80
	atsCeilingTailored     = 90

	placeholderOverallCap = 15
	placeholderATSCap     = 20
	unquantifiedOverall   = 35
	unquantifiedATS       = 40
	poorOverall           = 25
	poorATS               = 30

	maxTailoredBonus = 5
)

// Input carries the model-proposed scores and the deterministic content signals.
type Input struct {
	Overall    float64
	ATS        float64
	Skills     float64
	Experience float64
	Education  float64

	IsTailored      bool
	HasPlaceholders bool
	HasQuantified   bool
	Tier            models.QualityTier
}

type Result struct {
	Overall    int
	ATS        int
	Skills     int
	Experience int
	Education  int
}

// Normalize bounds model scores by the content signals. The output never
// exceeds the ceiling for the tailoring flag and placeholder content always
// lands near the floor.
func Normalize(in Input) Result {
	overall, ats := clamp100(in.Overall), clamp100(in.ATS)
	skills, exp, edu := clamp100(in.Skills), clamp100(in.Experience), clamp100(in.Education)

	if in.HasPlaceholders {
		return Result{
			Overall:    round(math.Min(overall, placeholderOverallCap)),
			ATS:        round(math.Min(ats, placeholderATSCap)),
			Skills:     round(math.Min(skills, placeholderOverallCap)),
			Experience: round(math.Min(exp, placeholderOverallCap)),
			Education:  round(math.Min(edu, placeholderOverallCap)),
		}
	}

	ceiling, atsCeil := float64(overallCeiling), float64(atsCeiling)
	if in.IsTailored {
		ceiling, atsCeil = overallCeilingTailored, atsCeilingTailored
	}
	overallLimit, atsLimit := ceiling, atsCeil

	if !in.HasQuantified {
		overallLimit = math.Min(overallLimit, unquantifiedOverall)
		atsLimit = math.Min(atsLimit, unquantifiedATS)
	}
	if in.Tier == models.TierPoor {
		overallLimit = math.Min(overallLimit, poorOverall)
		atsLimit = math.Min(atsLimit, poorATS)
	}

	overall = math.Min(overall, overallLimit)
	ats = math.Min(ats, atsLimit)

	if in.IsTailored {
		bonus := tailoredBonus(in)
		overall = math.Min(overall+bonus, overallLimit)
		ats = math.Min(ats+bonus, atsLimit)
	}

	return Result{
		Overall:    round(overall),
		ATS:        round(ats),
		Skills:     round(math.Min(skills, ceiling)),
		Experience: round(math.Min(exp, ceiling)),
		Education:  round(math.Min(edu, ceiling)),
	}
}

func tailoredBonus(in Input) float64 {
	var bonus float64
	if in.HasQuantified {
		bonus += 2
	}
	switch in.Tier {
	case models.TierExcellent:
		bonus += 3
	case models.TierGood:
		bonus += 2
	case models.TierFair:
		bonus++
	}
	return math.Min(bonus, maxTailoredBonus)
}

func clamp100(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// round never crosses an integer ceiling because all limits are integral.
func round(v float64) int {
	return int(math.Round(v))
}
