package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus is the moderation state of an organization or brand profile.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
	StatusRejected VerificationStatus = "rejected"
)

// ParseVerificationStatus returns the status and whether s names a known one.
func ParseVerificationStatus(s string) (VerificationStatus, bool) {
	switch VerificationStatus(s) {
	case StatusPending, StatusVerified, StatusRejected:
		return VerificationStatus(s), true
	}
	return "", false
}

// Organization is a student organization profile owned by one org identity.
type Organization struct {
	ID                      uuid.UUID          `json:"id"`
	UserID                  uuid.UUID          `json:"user_id"`
	Name                    string             `json:"name"`
	Description             string             `json:"description,omitempty"`
	University              string             `json:"university"`
	Category                string             `json:"category,omitempty"`
	WebsiteURL              string             `json:"website_url,omitempty"`
	LogoURL                 string             `json:"logo_url,omitempty"`
	ContactEmail            string             `json:"contact_email,omitempty"`
	MemberCount             *int               `json:"member_count,omitempty"`
	VerificationDocumentURL string             `json:"verification_document_url,omitempty"`
	Tags                    []string           `json:"tags"`
	Status                  VerificationStatus `json:"status"`
	CreatedAt               time.Time          `json:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at"`
}
