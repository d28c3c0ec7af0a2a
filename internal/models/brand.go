package models

import (
	"time"

	"github.com/google/uuid"
)

// Brand is a sponsor profile owned by one brand identity.
type Brand struct {
	ID                  uuid.UUID          `json:"id"`
	UserID              uuid.UUID          `json:"user_id"`
	CompanyName         string             `json:"company_name"`
	Description         string             `json:"description,omitempty"`
	Industry            string             `json:"industry,omitempty"`
	CompanySize         string             `json:"company_size,omitempty"`
	WebsiteURL          string             `json:"website_url,omitempty"`
	LogoURL             string             `json:"logo_url,omitempty"`
	ContactEmail        string             `json:"contact_email,omitempty"`
	TargetDemographics  []string           `json:"target_demographics"`
	PreferredEventTypes []string           `json:"preferred_event_types"`
	BudgetRangeMin      *int64             `json:"budget_range_min,omitempty"`
	BudgetRangeMax      *int64             `json:"budget_range_max,omitempty"`
	GeographicFocus     []string           `json:"geographic_focus"`
	Status              VerificationStatus `json:"status"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}
