package brands

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plugcu/backend/internal/models"
)

// Repository handles brand profile persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a brands repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const brandColumns = `id, user_id, company_name, COALESCE(description,''), COALESCE(industry,''),
	COALESCE(company_size,''), COALESCE(website_url,''), COALESCE(logo_url,''), COALESCE(contact_email,''),
	target_demographics, preferred_event_types, budget_range_min, budget_range_max, geographic_focus,
	status, created_at, updated_at`

func scanBrand(row interface{ Scan(...any) error }) (*models.Brand, error) {
	var b models.Brand
	var status string
	if err := row.Scan(&b.ID, &b.UserID, &b.CompanyName, &b.Description, &b.Industry,
		&b.CompanySize, &b.WebsiteURL, &b.LogoURL, &b.ContactEmail,
		&b.TargetDemographics, &b.PreferredEventTypes, &b.BudgetRangeMin, &b.BudgetRangeMax, &b.GeographicFocus,
		&status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = models.VerificationStatus(status)
	for _, s := range []*[]string{&b.TargetDemographics, &b.PreferredEventTypes, &b.GeographicFocus} {
		if *s == nil {
			*s = []string{}
		}
	}
	return &b, nil
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]*models.Brand, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Brand{}
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// GetByID returns a brand by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Brand, error) {
	return scanBrand(r.pool.QueryRow(ctx, `SELECT `+brandColumns+` FROM brands WHERE id = $1`, id))
}

// GetByUserID returns the brand owned by a user.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Brand, error) {
	return scanBrand(r.pool.QueryRow(ctx, `SELECT `+brandColumns+` FROM brands WHERE user_id = $1`, userID))
}

// Upsert creates the user's brand or updates its editable fields. Status is pending on create.
func (r *Repository) Upsert(ctx context.Context, b *models.Brand) (*models.Brand, error) {
	const q = `INSERT INTO brands (id, user_id, company_name, description, industry, company_size,
			website_url, logo_url, contact_email, target_demographics, preferred_event_types,
			budget_range_min, budget_range_max, geographic_focus, status)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), NULLIF($6,''),
			NULLIF($7,''), NULLIF($8,''), $9, $10, $11, $12, $13, 'pending')
		ON CONFLICT (user_id) DO UPDATE SET
			company_name = EXCLUDED.company_name, description = EXCLUDED.description,
			industry = EXCLUDED.industry, company_size = EXCLUDED.company_size,
			website_url = EXCLUDED.website_url, logo_url = EXCLUDED.logo_url,
			contact_email = EXCLUDED.contact_email, target_demographics = EXCLUDED.target_demographics,
			preferred_event_types = EXCLUDED.preferred_event_types, budget_range_min = EXCLUDED.budget_range_min,
			budget_range_max = EXCLUDED.budget_range_max, geographic_focus = EXCLUDED.geographic_focus,
			updated_at = NOW()
		RETURNING ` + brandColumns
	return scanBrand(r.pool.QueryRow(ctx, q, b.UserID, b.CompanyName, b.Description, b.Industry, b.CompanySize,
		b.WebsiteURL, b.LogoURL, b.ContactEmail, models.CleanTags(b.TargetDemographics),
		models.CleanTags(b.PreferredEventTypes), b.BudgetRangeMin, b.BudgetRangeMax, models.CleanTags(b.GeographicFocus)))
}

// SetLogo records the uploaded logo URL.
func (r *Repository) SetLogo(ctx context.Context, id uuid.UUID, url string) error {
	_, err := r.pool.Exec(ctx, `UPDATE brands SET logo_url = $2, updated_at = NOW() WHERE id = $1`, id, url)
	return err
}

// List returns all brands, newest first.
func (r *Repository) List(ctx context.Context) ([]*models.Brand, error) {
	return r.list(ctx, `SELECT `+brandColumns+` FROM brands ORDER BY created_at DESC`)
}

// ListByStatus returns brands in one verification status, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status models.VerificationStatus) ([]*models.Brand, error) {
	return r.list(ctx, `SELECT `+brandColumns+` FROM brands WHERE status = $1 ORDER BY created_at, id`, string(status))
}

// UpdateStatus sets the verification status of a brand.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.VerificationStatus) (*models.Brand, error) {
	return scanBrand(r.pool.QueryRow(ctx,
		`UPDATE brands SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+brandColumns, id, string(status)))
}

// CountByStatus returns the number of brands per verification status.
func (r *Repository) CountByStatus(ctx context.Context) (map[models.VerificationStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM brands GROUP BY status`)
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
