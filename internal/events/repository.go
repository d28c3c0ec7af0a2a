package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plugcu/backend/internal/models"
)

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `e.id, e.org_id, e.title, e.description, e.event_date, e.application_deadline,
	COALESCE(e.venue,''), COALESCE(e.event_type,''), e.expected_attendance, e.sponsorship_min_amount,
	e.sponsorship_max_amount, e.sponsorship_benefits, e.tags, e.status, e.featured, e.created_at, e.updated_at`

const orgJoinColumns = `o.id, o.user_id, o.name, COALESCE(o.description,''), o.university, COALESCE(o.category,''),
	COALESCE(o.logo_url,''), o.tags, o.status, o.created_at, o.updated_at`

type scanner interface{ Scan(...any) error }

func eventDest(e *models.Event, status *string) []any {
	return []any{&e.ID, &e.OrgID, &e.Title, &e.Description, &e.EventDate, &e.ApplicationDeadline,
		&e.Venue, &e.EventType, &e.ExpectedAttendance, &e.SponsorshipMinAmount,
		&e.SponsorshipMaxAmount, &e.SponsorshipBenefits, &e.Tags, status, &e.Featured, &e.CreatedAt, &e.UpdatedAt}
}

func finishEvent(e *models.Event, status string) {
	e.Status = models.EventStatus(status)
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.SponsorshipBenefits == nil {
		e.SponsorshipBenefits = []string{}
	}
}

func scanEvent(row scanner) (*models.Event, error) {
	var e models.Event
	var status string
	if err := row.Scan(eventDest(&e, &status)...); err != nil {
		return nil, err
	}
	finishEvent(&e, status)
	return &e, nil
}

func scanEventWithOrg(row scanner) (*models.EventWithOrg, error) {
	var ew models.EventWithOrg
	var status, orgStatus string
	o := &ew.Org
	dest := append(eventDest(&ew.Event, &status),
		&o.ID, &o.UserID, &o.Name, &o.Description, &o.University, &o.Category,
		&o.LogoURL, &o.Tags, &orgStatus, &o.CreatedAt, &o.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	finishEvent(&ew.Event, status)
	o.Status = models.VerificationStatus(orgStatus)
	if o.Tags == nil {
		o.Tags = []string{}
	}
	return &ew, nil
}

// Create inserts a draft event for org.
func (r *Repository) Create(ctx context.Context, e *models.Event) (*models.Event, error) {
	q := `INSERT INTO events AS e (id, org_id, title, description, event_date, application_deadline, venue,
			event_type, expected_attendance, sponsorship_min_amount, sponsorship_max_amount,
			sponsorship_benefits, tags, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), $8, $9, $10, $11, $12, 'draft')
		RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, e.OrgID, e.Title, e.Description, e.EventDate, e.ApplicationDeadline,
		e.Venue, e.EventType, e.ExpectedAttendance, e.SponsorshipMinAmount, e.SponsorshipMaxAmount,
		models.CleanTags(e.SponsorshipBenefits), models.CleanTags(e.Tags)))
}

// GetForOrg returns an event owned by orgID.
func (r *Repository) GetForOrg(ctx context.Context, id, orgID uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1 AND e.org_id = $2`, id, orgID))
}

// ListForOrg returns an organization's events, newest first.
func (r *Repository) ListForOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.org_id = $1 ORDER BY e.created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Update replaces the editable fields of an event owned by e.OrgID. Closed events are not editable.
func (r *Repository) Update(ctx context.Context, e *models.Event) (*models.Event, error) {
	q := `UPDATE events AS e SET title = $3, description = $4, event_date = $5, application_deadline = $6,
			venue = NULLIF($7,''), event_type = NULLIF($8,''), expected_attendance = $9,
			sponsorship_min_amount = $10, sponsorship_max_amount = $11, sponsorship_benefits = $12,
			tags = $13, updated_at = NOW()
		WHERE e.id = $1 AND e.org_id = $2 AND e.status <> 'closed'
		RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, e.ID, e.OrgID, e.Title, e.Description, e.EventDate, e.ApplicationDeadline,
		e.Venue, e.EventType, e.ExpectedAttendance, e.SponsorshipMinAmount, e.SponsorshipMaxAmount,
		models.CleanTags(e.SponsorshipBenefits), models.CleanTags(e.Tags)))
}

// UpdateStatus moves an event from one status to another. It returns pgx.ErrNoRows when the
// event does not exist for orgID or is no longer in status from.
func (r *Repository) UpdateStatus(ctx context.Context, id, orgID uuid.UUID, from, to models.EventStatus) (*models.Event, error) {
	q := `UPDATE events AS e SET status = $4, updated_at = NOW()
		WHERE e.id = $1 AND e.org_id = $2 AND e.status = $3
		RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, id, orgID, string(from), string(to)))
}

// CountByStatusForOrg returns an organization's event counts per status.
func (r *Repository) CountByStatusForOrg(ctx context.Context, orgID uuid.UUID) (map[models.EventStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM events WHERE org_id = $1 GROUP BY status`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[models.EventStatus]int{models.EventDraft: 0, models.EventPublished: 0, models.EventClosed: 0}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.EventStatus(status)] = n
	}
	return counts, rows.Err()
}

// ListPublished returns every published event with its organization.
func (r *Repository) ListPublished(ctx context.Context) ([]*models.EventWithOrg, error) {
	return r.Discover(ctx, Filter{})
}

// GetWithOrg returns an event joined with its organization, whatever its status.
func (r *Repository) GetWithOrg(ctx context.Context, id uuid.UUID) (*models.EventWithOrg, error) {
	q := `SELECT ` + eventColumns + `, ` + orgJoinColumns + `
		FROM events e INNER JOIN organizations o ON o.id = e.org_id WHERE e.id = $1`
	return scanEventWithOrg(r.pool.QueryRow(ctx, q, id))
}

// Filter narrows published event discovery. Zero values do not filter.
type Filter struct {
	Search     string
	MinBudget  *int64
	MaxBudget  *int64
	University string
	EventType  string
	Limit      int
}

// Discover returns published events matching f, featured first then newest.
func (r *Repository) Discover(ctx context.Context, f Filter) ([]*models.EventWithOrg, error) {
	where := []string{"e.status = 'published'"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + s + "%")
		where = append(where, fmt.Sprintf("(e.title ILIKE %s OR e.description ILIKE %s OR o.name ILIKE %s)", p, p, p))
	}
	if f.MinBudget != nil {
		where = append(where, "COALESCE(e.sponsorship_max_amount, e.sponsorship_min_amount) >= "+arg(*f.MinBudget))
	}
	if f.MaxBudget != nil {
		where = append(where, "COALESCE(e.sponsorship_min_amount, 0) <= "+arg(*f.MaxBudget))
	}
	if u := strings.TrimSpace(f.University); u != "" {
		where = append(where, "o.university ILIKE "+arg("%"+u+"%"))
	}
	if t := strings.TrimSpace(f.EventType); t != "" {
		where = append(where, "LOWER(e.event_type) = LOWER("+arg(t)+")")
	}
	q := `SELECT ` + eventColumns + `, ` + orgJoinColumns + `
		FROM events e INNER JOIN organizations o ON o.id = e.org_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY e.featured DESC, e.created_at DESC, e.id`
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.EventWithOrg, error) {
		return scanEventWithOrg(row)
	})
}
