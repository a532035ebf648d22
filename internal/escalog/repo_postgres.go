package escalog

import (
	"context"
	"database/sql"
)

// PostgresRepo persists escalation events in the escalation_events table.
//
// The at-most-once rule for automatic escalation relies on the partial
// unique index uq_escalation_events_timeout on (call_session_id, to_tier)
// WHERE reason = 'timeout'. ON CONFLICT DO NOTHING turns a duplicate firing
// into a zero-row insert instead of an error.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) (bool, error) {
	const q = `
INSERT INTO escalation_events (id, call_session_id, from_tier, to_tier, reason, triggered_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (call_session_id, to_tier) WHERE reason = 'timeout' DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.CallSessionID,
		e.FromTier,
		nullStr(e.ToTier),
		e.Reason,
		e.TriggeredAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) ListByCall(ctx context.Context, callSessionID string) ([]Event, error) {
	const q = `
SELECT id, call_session_id, from_tier, to_tier, reason, triggered_at
FROM escalation_events
WHERE call_session_id = $1
ORDER BY triggered_at
`
	rows, err := r.db.QueryContext(ctx, q, callSessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var toTier sql.NullString
		if err := rows.Scan(&e.ID, &e.CallSessionID, &e.FromTier, &toTier, &e.Reason, &e.TriggeredAt); err != nil {
			return nil, err
		}
		e.ToTier = toTier.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullStr(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
