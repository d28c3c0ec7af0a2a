package messaging

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plugcu/backend/internal/models"
)

// Repository handles threads and messages. Every read and write is scoped to a participant:
// the owner of the thread's brand or of its organization.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a messaging repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const threadColumns = `t.id, t.brand_id, t.org_id, t.event_id, COALESCE(t.subject,''), t.created_at, t.updated_at`

const participantJoin = `FROM threads t
	JOIN brands b ON b.id = t.brand_id
	JOIN organizations o ON o.id = t.org_id`

const participantWhere = `(b.user_id = $2 OR o.user_id = $2)`

func scanThread(row pgx.Row) (*models.Thread, error) {
	var t models.Thread
	if err := row.Scan(&t.ID, &t.BrandID, &t.OrgID, &t.EventID, &t.Subject, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

const messageColumns = `id, thread_id, sender_id, content, read_at, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	if err := row.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Content, &m.ReadAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// StartThread returns the (brand, org, event) thread, creating it with an opening message from sender
// when it does not exist yet. created reports whether this call created it.
func (r *Repository) StartThread(ctx context.Context, t *models.Thread, senderID uuid.UUID, opening string) (thread *models.Thread, created bool, err error) {
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		thread, err = scanThread(tx.QueryRow(ctx, `INSERT INTO threads AS t (id, brand_id, org_id, event_id, subject)
			VALUES (gen_random_uuid(), $1, $2, $3, $4)
			ON CONFLICT (brand_id, org_id, event_id) DO NOTHING
			RETURNING `+threadColumns, t.BrandID, t.OrgID, t.EventID, t.Subject))
		if errors.Is(err, pgx.ErrNoRows) {
			thread, err = scanThread(tx.QueryRow(ctx, `SELECT `+threadColumns+` FROM threads t
				WHERE t.brand_id = $1 AND t.org_id = $2 AND t.event_id IS NOT DISTINCT FROM $3`,
				t.BrandID, t.OrgID, t.EventID))
			return err
		}
		if err != nil {
			return err
		}
		created = true
		_, err = tx.Exec(ctx, `INSERT INTO messages (id, thread_id, sender_id, content) VALUES (gen_random_uuid(), $1, $2, $3)`,
			thread.ID, senderID, opening)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return thread, created, nil
}

// GetForParticipant returns a thread when userID participates in it, else pgx.ErrNoRows.
func (r *Repository) GetForParticipant(ctx context.Context, threadID, userID uuid.UUID) (*models.Thread, error) {
	return scanThread(r.pool.QueryRow(ctx, `SELECT `+threadColumns+` `+participantJoin+`
		WHERE t.id = $1 AND `+participantWhere, threadID, userID))
}

// ListForUser returns the user's threads, most recently active first, with the latest message and
// the number of messages from the other party the user has not read.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ThreadSummary, error) {
	const q = `SELECT ` + threadColumns + `, o.name, o.university, b.company_name, COALESCE(e.title,''),
			lm.id, lm.sender_id, lm.content, lm.read_at, lm.created_at,
			(SELECT COUNT(*) FROM messages um WHERE um.thread_id = t.id AND um.sender_id <> $1 AND um.read_at IS NULL)
		FROM threads t
		JOIN brands b ON b.id = t.brand_id
		JOIN organizations o ON o.id = t.org_id
		LEFT JOIN events e ON e.id = t.event_id
		LEFT JOIN LATERAL (
			SELECT id, sender_id, content, read_at, created_at FROM messages
			WHERE thread_id = t.id ORDER BY created_at DESC, id DESC LIMIT 1
		) lm ON TRUE
		WHERE b.user_id = $1 OR o.user_id = $1
		ORDER BY t.updated_at DESC, t.id`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ThreadSummary, error) {
		var s models.ThreadSummary
		var msgID, senderID *uuid.UUID
		var content *string
		var m models.Message
		if err := row.Scan(&s.ID, &s.BrandID, &s.OrgID, &s.EventID, &s.Subject, &s.CreatedAt, &s.UpdatedAt,
			&s.OrgName, &s.University, &s.CompanyName, &s.EventTitle,
			&msgID, &senderID, &content, &m.ReadAt, &m.CreatedAt, &s.UnreadCount); err != nil {
			return s, err
		}
		if msgID != nil {
			m.ID, m.ThreadID, m.SenderID, m.Content = *msgID, s.ID, *senderID, *content
			s.LatestMessage = &m
		}
		return s, nil
	})
}

// ListMessages returns a thread's messages oldest first and marks the other party's unread messages read.
// Returns pgx.ErrNoRows when userID does not participate.
func (r *Repository) ListMessages(ctx context.Context, threadID, userID uuid.UUID) ([]models.Message, error) {
	var list []models.Message
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var ok bool
		if err := tx.QueryRow(ctx, `SELECT TRUE `+participantJoin+` WHERE t.id = $1 AND `+participantWhere,
			threadID, userID).Scan(&ok); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE messages SET read_at = NOW()
			WHERE thread_id = $1 AND sender_id <> $2 AND read_at IS NULL`, threadID, userID); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT `+messageColumns+` FROM messages
			WHERE thread_id = $1 ORDER BY created_at, id`, threadID)
		if err != nil {
			return err
		}
		list, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Message, error) {
			m, err := scanMessage(row)
			if err != nil {
				return models.Message{}, err
			}
			return *m, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// AppendMessage adds a message from senderID and bumps the thread's updated_at.
// Returns pgx.ErrNoRows when the sender does not participate.
func (r *Repository) AppendMessage(ctx context.Context, threadID, senderID uuid.UUID, content string) (*models.Message, error) {
	var msg *models.Message
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		msg, err = scanMessage(tx.QueryRow(ctx, `INSERT INTO messages (id, thread_id, sender_id, content)
			SELECT gen_random_uuid(), t.id, $2, $3 `+participantJoin+`
			WHERE t.id = $1 AND `+participantWhere+`
			RETURNING `+messageColumns, threadID, senderID, content))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE threads SET updated_at = NOW() WHERE id = $1`, threadID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}
