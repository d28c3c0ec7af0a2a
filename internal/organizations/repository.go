package organizations

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plugcu/backend/internal/models"
)

// Repository handles organization profile persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orgColumns = `id, user_id, name, COALESCE(description,''), university, COALESCE(category,''),
	COALESCE(website_url,''), COALESCE(logo_url,''), COALESCE(contact_email,''), member_count,
	COALESCE(verification_document_url,''), tags, status, created_at, updated_at`

func scanOrg(row interface{ Scan(...any) error }) (*models.Organization, error) {
	var o models.Organization
	var status string
	if err := row.Scan(&o.ID, &o.UserID, &o.Name, &o.Description, &o.University, &o.Category,
		&o.WebsiteURL, &o.LogoURL, &o.ContactEmail, &o.MemberCount,
		&o.VerificationDocumentURL, &o.Tags, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = models.VerificationStatus(status)
	if o.Tags == nil {
		o.Tags = []string{}
	}
	return &o, nil
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
}

// GetByUserID returns the organization owned by a user.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE user_id = $1`, userID))
}

// Upsert creates the user's organization or updates its editable fields.
// Status is pending on create and never changed here.
func (r *Repository) Upsert(ctx context.Context, o *models.Organization) (*models.Organization, error) {
	const q = `INSERT INTO organizations (id, user_id, name, description, university, category,
			website_url, logo_url, contact_email, member_count, tags, status)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), $4, NULLIF($5,''), NULLIF($6,''), NULLIF($7,''),
			NULLIF($8,''), $9, $10, 'pending')
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, university = EXCLUDED.university,
			category = EXCLUDED.category, website_url = EXCLUDED.website_url, logo_url = EXCLUDED.logo_url,
			contact_email = EXCLUDED.contact_email, member_count = EXCLUDED.member_count,
			tags = EXCLUDED.tags, updated_at = NOW()
		RETURNING ` + orgColumns
	return scanOrg(r.pool.QueryRow(ctx, q, o.UserID, o.Name, o.Description, o.University, o.Category,
		o.WebsiteURL, o.LogoURL, o.ContactEmail, o.MemberCount, nonNil(o.Tags)))
}

// SetVerificationDocument records the uploaded verification document URL.
func (r *Repository) SetVerificationDocument(ctx context.Context, id uuid.UUID, url string) error {
	_, err := r.pool.Exec(ctx, `UPDATE organizations SET verification_document_url = $2, updated_at = NOW() WHERE id = $1`, id, url)
	return err
}

// List returns all organizations, newest first.
func (r *Repository) List(ctx context.Context) ([]*models.Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orgColumns+` FROM organizations ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Organization{}
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// UpdateStatus sets the verification status of an organization.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.VerificationStatus) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx,
		`UPDATE organizations SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+orgColumns, id, string(status)))
}

// CountByStatus returns the number of organizations per verification status.
func (r *Repository) CountByStatus(ctx context.Context) (map[models.VerificationStatus]int, error) {
	return countByStatus(ctx, r.pool, `SELECT status, COUNT(*) FROM organizations GROUP BY status`)
}

func countByStatus(ctx context.Context, pool *pgxpool.Pool, q string) (map[models.VerificationStatus]int, error) {
	rows, err := pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[models.VerificationStatus]int{models.StatusPending: 0, models.StatusVerified: 0, models.StatusRejected: 0}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.VerificationStatus(status)] = n
	}
	return counts, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
