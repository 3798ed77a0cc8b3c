package models

import "time"

type QualityTier string

const (
	TierExcellent QualityTier = "excellent"
	TierGood      QualityTier = "good"
	TierFair      QualityTier = "fair"
	TierPoor      QualityTier = "poor"
)

type CategoryScores struct {
	Skills     int `bson:"skills" json:"skills"`
	Experience int `bson:"experience" json:"experience"`
	Education  int `bson:"education" json:"education"`
}

type Rewrite struct {
	Original string `bson:"original" json:"original"`
	Improved string `bson:"improved" json:"improved"`
}

type ImprovementArea struct {
	Section     string    `bson:"section" json:"section"`
	Suggestions []string  `bson:"suggestions" json:"suggestions"`
	Examples    []Rewrite `bson:"examples" json:"examples"`
}

type Analysis struct {
	OverallScore       int               `bson:"overall_score" json:"overall_score"`
	ATSScore           int               `bson:"ats_score" json:"ats_score"`
	CategoryScores     CategoryScores    `bson:"category_scores" json:"category_scores"`
	ContentQuality     QualityTier       `bson:"content_quality" json:"content_quality"`
	ProfileSummary     string            `bson:"profile_summary" json:"profile_summary"`
	Strengths          []string          `bson:"strengths" json:"strengths"`
	Weaknesses         []string          `bson:"weaknesses" json:"weaknesses"`
	KeywordSuggestions []string          `bson:"keyword_suggestions" json:"keyword_suggestions"`
	ImprovementAreas   []ImprovementArea `bson:"improvement_areas" json:"improvement_areas"`
	Tailored           bool              `bson:"tailored" json:"tailored"`
	AnalyzedAt         time.Time         `bson:"analyzed_at" json:"analyzed_at"`
}
