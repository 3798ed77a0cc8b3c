package scoring

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"

	"github.com/yoockh/yoocv/internal/models"
)

func TestNormalizeRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Input
		want Result
	}{
		{
			name: "placeholders dominate",
			in:   Input{Overall: 90, ATS: 88, Skills: 70, Experience: 10, Education: 50, HasQuantified: true, Tier: models.TierExcellent, HasPlaceholders: true, IsTailored: true},
			want: Result{Overall: 15, ATS: 20, Skills: 15, Experience: 10, Education: 15},
		},
		{
			name: "no quantification",
			in:   Input{Overall: 72, ATS: 70, Skills: 60, Experience: 60, Education: 60, Tier: models.TierGood},
			want: Result{Overall: 35, ATS: 40, Skills: 60, Experience: 60, Education: 60},
		},
		{
			name: "poor tier",
			in:   Input{Overall: 60, ATS: 60, Skills: 40, Experience: 40, Education: 40, HasQuantified: true, Tier: models.TierPoor},
			want: Result{Overall: 25, ATS: 30, Skills: 40, Experience: 40, Education: 40},
		},
		{
			name: "untailored ceiling",
			in:   Input{Overall: 99, ATS: 99, Skills: 99, Experience: 99, Education: 99, HasQuantified: true, Tier: models.TierExcellent},
			want: Result{Overall: 85, ATS: 80, Skills: 85, Experience: 85, Education: 85},
		},
		{
			name: "tailored bonus bounded by ceiling",
			in:   Input{Overall: 93, ATS: 70, Skills: 99, Experience: 80, Education: 70, HasQuantified: true, Tier: models.TierExcellent, IsTailored: true},
			want: Result{Overall: 95, ATS: 75, Skills: 95, Experience: 80, Education: 70},
		},
		{
			name: "tailored fair tier bonus",
			in:   Input{Overall: 60, ATS: 55, Skills: 60, Experience: 60, Education: 60, HasQuantified: true, Tier: models.TierFair, IsTailored: true},
			want: Result{Overall: 63, ATS: 58, Skills: 60, Experience: 60, Education: 60},
		},
		{
			name: "tailored without quantification stays under cap",
			in:   Input{Overall: 34, ATS: 39, Skills: 50, Experience: 50, Education: 50, Tier: models.TierGood, IsTailored: true},
			want: Result{Overall: 35, ATS: 40, Skills: 50, Experience: 50, Education: 50},
		},
		{
			name: "out of range inputs clamp",
			in:   Input{Overall: -20, ATS: math.NaN(), Skills: 250, Experience: 0, Education: 0, HasQuantified: true, Tier: models.TierGood},
			want: Result{Overall: 0, ATS: 0, Skills: 85, Experience: 0, Education: 0},
		},
		{
			name: "rounding",
			in:   Input{Overall: 70.5, ATS: 64.4, Skills: 50.49, Experience: 1, Education: 1, HasQuantified: true, Tier: models.TierGood},
			want: Result{Overall: 71, ATS: 64, Skills: 50, Experience: 1, Education: 1},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

var tiers = []models.QualityTier{models.TierExcellent, models.TierGood, models.TierFair, models.TierPoor}

type randomInput struct{ Input }

func (randomInput) Generate(r *rand.Rand, _ int) reflect.Value {
	in := Input{
		Overall:         r.Float64()*140 - 20,
		ATS:             r.Float64()*140 - 20,
		Skills:          r.Float64()*140 - 20,
		Experience:      r.Float64()*140 - 20,
		Education:       r.Float64()*140 - 20,
		IsTailored:      r.Intn(2) == 0,
		HasPlaceholders: r.Intn(4) == 0,
		HasQuantified:   r.Intn(2) == 0,
		Tier:            tiers[r.Intn(len(tiers))],
	}
	return reflect.ValueOf(randomInput{in})
}

func TestNormalizeProperties(t *testing.T) {
	t.Parallel()

	prop := func(ri randomInput) bool {
		in := ri.Input
		got := Normalize(in)

		ceiling, atsCeil := 85, 80
		if in.IsTailored {
			ceiling, atsCeil = 95, 90
		}
		for _, v := range []int{got.Overall, got.ATS, got.Skills, got.Experience, got.Education} {
			if v < 0 || v > 100 {
				return false
			}
		}
		if got.Overall > ceiling || got.ATS > atsCeil || got.ATS > ceiling-5 {
			return false
		}
		if got.Skills > ceiling || got.Experience > ceiling || got.Education > ceiling {
			return false
		}
		if in.HasPlaceholders && (got.Overall > 15 || got.ATS > 20) {
			return false
		}
		if !in.HasPlaceholders && !in.HasQuantified && (got.Overall > 35 || got.ATS > 40) {
			return false
		}
		if !in.HasPlaceholders && in.Tier == models.TierPoor && (got.Overall > 25 || got.ATS > 30) {
			return false
		}
		if in.IsTailored && !in.HasPlaceholders {
			untailored := in
			untailored.IsTailored = false
			base := Normalize(untailored)
			if got.Overall < base.Overall || got.Overall > max(base.Overall, clampedInt(in.Overall))+5 {
				return false
			}
		}
		return true
	}

	assert.NoError(t, quick.Check(prop, &quick.Config{MaxCount: 2000}))
}

func TestNormalizeIsDeterministic(t *testing.T) {
	t.Parallel()

	in := Input{Overall: 77.7, ATS: 66.6, Skills: 55.5, Experience: 44.4, Education: 33.3, HasQuantified: true, Tier: models.TierGood, IsTailored: true}
	first := Normalize(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Normalize(in))
	}
}

func clampedInt(v float64) int {
	return round(clamp100(v))
}
