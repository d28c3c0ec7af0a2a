// Package seed loads demo marketplace data from YAML into the stores.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/plugcu/backend/internal/models"
	"github.com/plugcu/backend/pkg/utils"
)

// Demo is the bundled demo dataset.
//
//go:embed demo.yaml
var Demo []byte

// Dataset is the YAML document shape.
type Dataset struct {
	Users         []User         `yaml:"users"`
	Organizations []Organization `yaml:"organizations"`
	Brands        []Brand        `yaml:"brands"`
	Events        []Event        `yaml:"events"`
}

type User struct {
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
	Role     string `yaml:"role"`
}

type Organization struct {
	Owner       string   `yaml:"owner"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	University  string   `yaml:"university"`
	Category    string   `yaml:"category"`
	WebsiteURL  string   `yaml:"website_url"`
	MemberCount *int     `yaml:"member_count"`
	Status      string   `yaml:"status"`
	Tags        []string `yaml:"tags"`
}

type Brand struct {
	Owner               string   `yaml:"owner"`
	CompanyName         string   `yaml:"company_name"`
	Description         string   `yaml:"description"`
	WebsiteURL          string   `yaml:"website_url"`
	Industry            string   `yaml:"industry"`
	CompanySize         string   `yaml:"company_size"`
	Status              string   `yaml:"status"`
	TargetDemographics  []string `yaml:"target_demographics"`
	PreferredEventTypes []string `yaml:"preferred_event_types"`
	GeographicFocus     []string `yaml:"geographic_focus"`
	BudgetMin           *int64   `yaml:"budget_min"`
	BudgetMax           *int64   `yaml:"budget_max"`
}

// Event dates are given in days from the seeding day.
type Event struct {
	Organization       string   `yaml:"organization"`
	Title              string   `yaml:"title"`
	Description        string   `yaml:"description"`
	InDays             *int     `yaml:"in_days"`
	DeadlineInDays     *int     `yaml:"deadline_in_days"`
	ExpectedAttendance *int     `yaml:"expected_attendance"`
	Venue              string   `yaml:"venue"`
	EventType          string   `yaml:"event_type"`
	SponsorshipMin     *int64   `yaml:"sponsorship_min"`
	SponsorshipMax     *int64   `yaml:"sponsorship_max"`
	Benefits           []string `yaml:"benefits"`
	Tags               []string `yaml:"tags"`
	Status             string   `yaml:"status"`
}

// Parse decodes and validates a dataset. Unknown keys are rejected.
func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.UnmarshalStrict(data, &ds); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}
	if err := ds.validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (ds *Dataset) validate() error {
	roles := map[string]models.Role{}
	for _, u := range ds.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			return errors.New("seed: user without email")
		}
		if _, dup := roles[email]; dup {
			return fmt.Errorf("seed: duplicate user %s", email)
		}
		role := models.Role(strings.ToLower(u.Role))
		if !role.Valid() {
			return fmt.Errorf("seed: user %s has unknown role %q", email, u.Role)
		}
		roles[email] = role
	}

	orgs := map[string]bool{}
	for _, o := range ds.Organizations {
		if roles[strings.ToLower(o.Owner)] != models.RoleOrg {
			return fmt.Errorf("seed: organization %q owner %s is not an org user", o.Name, o.Owner)
		}
		if o.Name == "" || o.University == "" {
			return fmt.Errorf("seed: organization owned by %s needs name and university", o.Owner)
		}
		if _, ok := verification(o.Status); !ok {
			return fmt.Errorf("seed: organization %q has unknown status %q", o.Name, o.Status)
		}
		orgs[o.Name] = true
	}
	for _, b := range ds.Brands {
		if roles[strings.ToLower(b.Owner)] != models.RoleBrand {
			return fmt.Errorf("seed: brand %q owner %s is not a brand user", b.CompanyName, b.Owner)
		}
		if _, ok := verification(b.Status); !ok {
			return fmt.Errorf("seed: brand %q has unknown status %q", b.CompanyName, b.Status)
		}
		if b.BudgetMin != nil && b.BudgetMax != nil && *b.BudgetMin > *b.BudgetMax {
			return fmt.Errorf("seed: brand %q budget_min exceeds budget_max", b.CompanyName)
		}
	}
	for _, e := range ds.Events {
		if !orgs[e.Organization] {
			return fmt.Errorf("seed: event %q references unknown organization %q", e.Title, e.Organization)
		}
		if e.Title == "" || e.Description == "" {
			return fmt.Errorf("seed: event for %q needs title and description", e.Organization)
		}
		switch models.EventStatus(e.Status) {
		case "", models.EventDraft, models.EventPublished, models.EventClosed:
		default:
			return fmt.Errorf("seed: event %q has unknown status %q", e.Title, e.Status)
		}
		if e.SponsorshipMin != nil && e.SponsorshipMax != nil && *e.SponsorshipMin > *e.SponsorshipMax {
			return fmt.Errorf("seed: event %q sponsorship_min exceeds sponsorship_max", e.Title)
		}
		if e.InDays != nil && e.DeadlineInDays != nil && *e.DeadlineInDays > *e.InDays {
			return fmt.Errorf("seed: event %q deadline falls after the event", e.Title)
		}
	}
	return nil
}

// verification treats an empty status as pending.
func verification(s string) (models.VerificationStatus, bool) {
	if s == "" {
		return models.StatusPending, true
	}
	return models.ParseVerificationStatus(strings.ToLower(s))
}

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.User, error)
}

type OrgStore interface {
	Upsert(ctx context.Context, o *models.Organization) (*models.Organization, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.VerificationStatus) (*models.Organization, error)
}

type BrandStore interface {
	Upsert(ctx context.Context, b *models.Brand) (*models.Brand, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.VerificationStatus) (*models.Brand, error)
}

type EventStore interface {
	ListForOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Event, error)
	Create(ctx context.Context, e *models.Event) (*models.Event, error)
	UpdateStatus(ctx context.Context, id, orgID uuid.UUID, from, to models.EventStatus) (*models.Event, error)
}

// Stores groups the persistence a Seeder writes to.
type Stores struct {
	Users  UserStore
	Orgs   OrgStore
	Brands BrandStore
	Events EventStore
}

// Summary counts what Apply did.
type Summary struct {
	UsersCreated   int
	UsersExisting  int
	Organizations  int
	Brands         int
	EventsCreated  int
	EventsExisting int
}

// Seeder writes a Dataset. Applying the same dataset twice leaves the stores unchanged:
// users are matched by email, profiles are upserted and events are matched by title.
type Seeder struct {
	stores   Stores
	password string
	now      func() time.Time
	logger   *zap.Logger
}

// NewSeeder creates a seeder. New users get password as their login password.
func NewSeeder(stores Stores, password string, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{stores: stores, password: password, now: time.Now, logger: logger}
}

// Apply writes ds in dependency order: users, organizations, brands, events.
func (s *Seeder) Apply(ctx context.Context, ds *Dataset) (*Summary, error) {
	sum := &Summary{}
	users := map[string]uuid.UUID{}
	for _, u := range ds.Users {
		id, created, err := s.user(ctx, u)
		if err != nil {
			return sum, err
		}
		users[strings.ToLower(u.Email)] = id
		if created {
			sum.UsersCreated++
		} else {
			sum.UsersExisting++
		}
	}

	orgIDs := map[string]uuid.UUID{}
	for _, o := range ds.Organizations {
		org, err := s.stores.Orgs.Upsert(ctx, &models.Organization{
			UserID:      users[strings.ToLower(o.Owner)],
			Name:        o.Name,
			Description: o.Description,
			University:  o.University,
			Category:    o.Category,
			WebsiteURL:  o.WebsiteURL,
			MemberCount: o.MemberCount,
			Tags:        models.CleanTags(o.Tags),
		})
		if err != nil {
			return sum, fmt.Errorf("seed organization %q: %w", o.Name, err)
		}
		if status, _ := verification(o.Status); org.Status != status {
			if _, err := s.stores.Orgs.UpdateStatus(ctx, org.ID, status); err != nil {
				return sum, fmt.Errorf("seed organization %q status: %w", o.Name, err)
			}
		}
		orgIDs[o.Name] = org.ID
		sum.Organizations++
	}

	for _, b := range ds.Brands {
		brand, err := s.stores.Brands.Upsert(ctx, &models.Brand{
			UserID:              users[strings.ToLower(b.Owner)],
			CompanyName:         b.CompanyName,
			Description:         b.Description,
			Industry:            b.Industry,
			CompanySize:         b.CompanySize,
			WebsiteURL:          b.WebsiteURL,
			ContactEmail:        strings.ToLower(b.Owner),
			TargetDemographics:  models.CleanTags(b.TargetDemographics),
			PreferredEventTypes: models.CleanTags(b.PreferredEventTypes),
			BudgetRangeMin:      b.BudgetMin,
			BudgetRangeMax:      b.BudgetMax,
			GeographicFocus:     models.CleanTags(b.GeographicFocus),
		})
		if err != nil {
			return sum, fmt.Errorf("seed brand %q: %w", b.CompanyName, err)
		}
		if status, _ := verification(b.Status); brand.Status != status {
			if _, err := s.stores.Brands.UpdateStatus(ctx, brand.ID, status); err != nil {
				return sum, fmt.Errorf("seed brand %q status: %w", b.CompanyName, err)
			}
		}
		sum.Brands++
	}

	day := s.now().UTC().Truncate(24 * time.Hour)
	existing := map[uuid.UUID]map[string]bool{}
	for _, e := range ds.Events {
		orgID := orgIDs[e.Organization]
		titles, ok := existing[orgID]
		if !ok {
			list, err := s.stores.Events.ListForOrg(ctx, orgID)
			if err != nil {
				return sum, fmt.Errorf("list events for %q: %w", e.Organization, err)
			}
			titles = map[string]bool{}
			for _, ev := range list {
				titles[strings.ToLower(ev.Title)] = true
			}
			existing[orgID] = titles
		}
		if titles[strings.ToLower(e.Title)] {
			sum.EventsExisting++
			continue
		}
		if err := s.event(ctx, orgID, e, day); err != nil {
			return sum, err
		}
		titles[strings.ToLower(e.Title)] = true
		sum.EventsCreated++
	}

	s.logger.Info("seed applied",
		zap.Int("users_created", sum.UsersCreated),
		zap.Int("organizations", sum.Organizations),
		zap.Int("brands", sum.Brands),
		zap.Int("events_created", sum.EventsCreated))
	return sum, nil
}

func (s *Seeder) user(ctx context.Context, u User) (uuid.UUID, bool, error) {
	existing, err := s.stores.Users.GetByEmail(ctx, u.Email)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, fmt.Errorf("look up user %s: %w", u.Email, err)
	}
	hash, err := utils.HashPassword(s.password)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("seed password: %w", err)
	}
	created, err := s.stores.Users.Create(ctx, u.Email, hash, u.FullName, models.Role(strings.ToLower(u.Role)))
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("create user %s: %w", u.Email, err)
	}
	return created.ID, true, nil
}

func (s *Seeder) event(ctx context.Context, orgID uuid.UUID, e Event, day time.Time) error {
	at := func(days *int) *time.Time {
		if days == nil {
			return nil
		}
		t := day.AddDate(0, 0, *days)
		return &t
	}
	created, err := s.stores.Events.Create(ctx, &models.Event{
		OrgID:                orgID,
		Title:                e.Title,
		Description:          e.Description,
		EventDate:            at(e.InDays),
		ApplicationDeadline:  at(e.DeadlineInDays),
		Venue:                e.Venue,
		EventType:            e.EventType,
		ExpectedAttendance:   e.ExpectedAttendance,
		SponsorshipMinAmount: e.SponsorshipMin,
		SponsorshipMaxAmount: e.SponsorshipMax,
		SponsorshipBenefits:  e.Benefits,
		Tags:                 models.CleanTags(e.Tags),
	})
	if err != nil {
		return fmt.Errorf("create event %q: %w", e.Title, err)
	}
	target := models.EventStatus(e.Status)
	if target == "" || target == created.Status {
		return nil
	}
	if _, err := s.stores.Events.UpdateStatus(ctx, created.ID, orgID, created.Status, target); err != nil {
		return fmt.Errorf("event %q to %s: %w", e.Title, target, err)
	}
	return nil
}
