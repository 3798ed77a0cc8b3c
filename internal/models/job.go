package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// JobPosting is a search result persisted for the user who ran the search,
// so a later tailoring request can reference it by id.
type JobPosting struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      string         `gorm:"type:text;not null;uniqueIndex:uniq_job_user_external,priority:1" json:"user_id"`
	ExternalID  string         `gorm:"type:text;not null;uniqueIndex:uniq_job_user_external,priority:2" json:"external_id"`
	Title       string         `gorm:"type:text;not null" json:"title"`
	Company     string         `gorm:"type:text" json:"company"`
	Location    string         `gorm:"type:text" json:"location"`
	URL         string         `gorm:"type:text" json:"url"`
	Description string         `gorm:"type:text" json:"description"`
	Platform    string         `gorm:"type:text" json:"platform"`
	QualityTier string         `gorm:"type:text" json:"quality_tier"`
	MatchScore  int            `gorm:"not null;default:0" json:"match_score"`
	Strategy    string         `gorm:"type:text" json:"strategy"`
	Keywords    pq.StringArray `gorm:"type:text[]" json:"keywords"`
	Raw         datatypes.JSON `gorm:"type:jsonb" json:"-"`
	PostedAt    *time.Time     `json:"posted_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (JobPosting) TableName() string { return "job_postings" }
