package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plugcu/backend/internal/models"
)

// Repository handles match persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a matches repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertMatch inserts or replaces the match for (brand_id, event_id). A stored row with
// the same content key is left untouched and false is returned.
func (r *Repository) UpsertMatch(ctx context.Context, m *models.Match) (bool, error) {
	reasoning, err := json.Marshal(m.Reasoning)
	if err != nil {
		return false, fmt.Errorf("marshal reasoning: %w", err)
	}
	const q = `INSERT INTO matches (id, brand_id, event_id, score, reasoning, content_key)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		ON CONFLICT (brand_id, event_id) DO UPDATE
		SET score = EXCLUDED.score, reasoning = EXCLUDED.reasoning,
			content_key = EXCLUDED.content_key, updated_at = NOW()
		WHERE matches.content_key IS DISTINCT FROM EXCLUDED.content_key
		RETURNING id, created_at, updated_at`
	err = r.pool.QueryRow(ctx, q, m.BrandID, m.EventID, m.Score, reasoning, m.ContentKey).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteMatch removes the match for one pair, reporting whether one existed.
func (r *Repository) DeleteMatch(ctx context.Context, brandID, eventID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM matches WHERE brand_id = $1 AND event_id = $2`, brandID, eventID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteForBrand removes every match of a brand.
func (r *Repository) DeleteForBrand(ctx context.Context, brandID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM matches WHERE brand_id = $1`, brandID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteForEvent removes every match of an event.
func (r *Repository) DeleteForEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM matches WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const matchViewColumns = `m.id, m.brand_id, m.event_id, m.score, m.reasoning, m.created_at, m.updated_at,
	e.title, e.event_date, o.name, o.university, b.company_name`

const matchViewJoins = `FROM matches m
	INNER JOIN events e ON e.id = m.event_id
	INNER JOIN organizations o ON o.id = e.org_id
	INNER JOIN brands b ON b.id = m.brand_id`

// ListForBrand returns a brand's matches on published events with score >= minScore, best first.
func (r *Repository) ListForBrand(ctx context.Context, brandID uuid.UUID, minScore float64, limit int) ([]models.MatchView, error) {
	q := `SELECT ` + matchViewColumns + ` ` + matchViewJoins + `
		WHERE m.brand_id = $1 AND m.score >= $2 AND e.status = 'published'
		ORDER BY m.score DESC, m.event_id
		LIMIT $3`
	return r.listViews(ctx, q, brandID, minScore, limit)
}

// ListForEvent returns the brands matched to an event, best first.
func (r *Repository) ListForEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]models.MatchView, error) {
	q := `SELECT ` + matchViewColumns + ` ` + matchViewJoins + `
		WHERE m.event_id = $1
		ORDER BY m.score DESC, m.brand_id
		LIMIT $2`
	return r.listViews(ctx, q, eventID, limit)
}

// CountForBrand returns how many live matches a brand has on published events.
func (r *Repository) CountForBrand(ctx context.Context, brandID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM matches m INNER JOIN events e ON e.id = m.event_id
		WHERE m.brand_id = $1 AND e.status = 'published'`
	var n int
	err := r.pool.QueryRow(ctx, q, brandID).Scan(&n)
	return n, err
}

func (r *Repository) listViews(ctx context.Context, q string, args ...any) ([]models.MatchView, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.MatchView{}
	for rows.Next() {
		var v models.MatchView
		var reasoning []byte
		if err := rows.Scan(&v.ID, &v.BrandID, &v.EventID, &v.Score, &reasoning, &v.CreatedAt, &v.UpdatedAt,
			&v.EventTitle, &v.EventDate, &v.OrgName, &v.University, &v.CompanyName); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(reasoning, &v.Reasoning); err != nil {
			return nil, fmt.Errorf("decode reasoning for match %s: %w", v.ID, err)
		}
		list = append(list, v)
	}
	return list, rows.Err()
}
