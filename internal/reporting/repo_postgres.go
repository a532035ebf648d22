package reporting

import (
	"context"
	"database/sql"
	"time"

	"callgrid/internal/escalog"
	"callgrid/internal/session"
)

// PostgresRepo reads reporting rows straight from the call_sessions and
// escalation_events tables. Reporting is read-only; it never writes.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ListSessions(ctx context.Context, from, to time.Time, clientID string) ([]session.CallSession, error) {
	q := `
SELECT id, client_id, answered_by, tier, status, escalation_count, created_at, answered_at
FROM call_sessions
WHERE created_at >= $1 AND created_at < $2
`
	args := []any{from, to}
	if clientID != "" {
		q += ` AND client_id = $3`
		args = append(args, clientID)
	}
	q += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.CallSession
	for rows.Next() {
		var cs session.CallSession
		var answeredBy sql.NullString
		var answeredAt sql.NullTime
		if err := rows.Scan(&cs.ID, &cs.ClientID, &answeredBy, &cs.Tier, &cs.Status, &cs.EscalationCount, &cs.CreatedAt, &answeredAt); err != nil {
			return nil, err
		}
		cs.AnsweredBy = answeredBy.String
		if answeredAt.Valid {
			t := answeredAt.Time
			cs.AnsweredAt = &t
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListEvents(ctx context.Context, from, to time.Time) ([]escalog.Event, error) {
	const q = `
SELECT id, call_session_id, from_tier, to_tier, reason, triggered_at
FROM escalation_events
WHERE triggered_at >= $1 AND triggered_at < $2
ORDER BY triggered_at
`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []escalog.Event
	for rows.Next() {
		var e escalog.Event
		var toTier sql.NullString
		if err := rows.Scan(&e.ID, &e.CallSessionID, &e.FromTier, &toTier, &e.Reason, &e.TriggeredAt); err != nil {
			return nil, err
		}
		e.ToTier = toTier.String
		out = append(out, e)
	}
	return out, rows.Err()
}
