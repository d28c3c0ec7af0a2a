package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventClosed    EventStatus = "closed"
)

// CanTransition reports whether an event may move from s to next.
// Closed is terminal; published events cannot return to draft.
func (s EventStatus) CanTransition(next EventStatus) bool {
	switch s {
	case EventDraft:
		return next == EventPublished || next == EventClosed
	case EventPublished:
		return next == EventClosed
	}
	return false
}

// Event is a sponsorship opportunity posted by an organization.
type Event struct {
	ID                   uuid.UUID   `json:"id"`
	OrgID                uuid.UUID   `json:"org_id"`
	Title                string      `json:"title"`
	Description          string      `json:"description"`
	EventDate            *time.Time  `json:"event_date,omitempty"`
	ApplicationDeadline  *time.Time  `json:"application_deadline,omitempty"`
	Venue                string      `json:"venue,omitempty"`
	EventType            string      `json:"event_type,omitempty"`
	ExpectedAttendance   *int        `json:"expected_attendance,omitempty"`
	SponsorshipMinAmount *int64      `json:"sponsorship_min_amount,omitempty"`
	SponsorshipMaxAmount *int64      `json:"sponsorship_max_amount,omitempty"`
	SponsorshipBenefits  []string    `json:"sponsorship_benefits"`
	Tags                 []string    `json:"tags"`
	Status               EventStatus `json:"status"`
	Featured             bool        `json:"featured"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// EventWithOrg is an event joined with its owning organization, as read by brands and the scorer.
type EventWithOrg struct {
	Event
	Org Organization `json:"org"`
}
