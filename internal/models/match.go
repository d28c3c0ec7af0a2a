package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoreBreakdown explains a match score; every *_score field is in [0,1].
type ScoreBreakdown struct {
	TagOverlapScore       float64  `json:"tag_overlap_score"`
	BudgetAlignmentScore  float64  `json:"budget_alignment_score"`
	AttendanceScore       float64  `json:"attendance_score"`
	RecencyScore          float64  `json:"recency_score"`
	DemographicMatchScore float64  `json:"demographic_match_score"`
	Explanation           string   `json:"explanation"`
	MatchedTags           []string `json:"matched_tags"`
	BudgetFit             string   `json:"budget_fit"`
	AttendanceCategory    string   `json:"attendance_category"`
}

// Match is a stored, scored pairing between a brand and a published event.
// At most one live match exists per (BrandID, EventID).
type Match struct {
	ID         uuid.UUID      `json:"id"`
	BrandID    uuid.UUID      `json:"brand_id"`
	EventID    uuid.UUID      `json:"event_id"`
	Score      float64        `json:"score"`
	Reasoning  ScoreBreakdown `json:"reasoning"`
	ContentKey string         `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// MatchView is a match joined with display fields of its event, org and brand.
type MatchView struct {
	Match
	EventTitle  string     `json:"event_title"`
	EventDate   *time.Time `json:"event_date,omitempty"`
	OrgName     string     `json:"org_name"`
	University  string     `json:"university"`
	CompanyName string     `json:"company_name"`
}
