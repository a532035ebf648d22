package session

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists call sessions in the call_sessions table.
//
// Every transition is a single UPDATE whose WHERE clause carries the expected
// prior status (and escalation_count for deadline-driven transitions). Zero
// rows updated means the compare-and-swap lost; no locks are held across
// statements, so the answer path is never blocked behind escalation
// processing.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const sessionColumns = `
id, client_id, initial_responder_id, answered_by, tier, status, escalation_count,
created_at, ring_started_at, warn_at, escalate_at, answered_at, escalated_at, ended_at`

func (r *PostgresRepo) Insert(ctx context.Context, s CallSession) error {
	const q = `
INSERT INTO call_sessions (
  id, client_id, initial_responder_id, answered_by, tier, status, escalation_count,
  created_at, ring_started_at, warn_at, escalate_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := r.db.ExecContext(ctx, q,
		s.ID,
		s.ClientID,
		nullStr(s.InitialResponderID),
		nullStr(s.AnsweredBy),
		s.Tier,
		s.Status,
		s.EscalationCount,
		s.CreatedAt,
		s.RingStartedAt,
		s.WarnAt,
		s.EscalateAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (CallSession, error) {
	const q = `
SELECT ` + sessionColumns + `
FROM call_sessions
WHERE id = $1
`
	return scanSession(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) ListRinging(ctx context.Context) ([]CallSession, error) {
	const q = `
SELECT ` + sessionColumns + `
FROM call_sessions
WHERE status IN ('ringing','warning')
ORDER BY escalate_at
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) MarkAnswered(ctx context.Context, id, responderID string, at time.Time) (CallSession, bool, error) {
	const q = `
UPDATE call_sessions
SET status = 'answered', answered_by = $2, answered_at = $3
WHERE id = $1 AND status IN ('ringing','warning')
RETURNING ` + sessionColumns + `
`
	return r.swap(ctx, q, id, nullStr(responderID), at)
}

func (r *PostgresRepo) MarkCancelled(ctx context.Context, id string, at time.Time) (CallSession, bool, error) {
	const q = `
UPDATE call_sessions
SET status = 'cancelled', ended_at = $2
WHERE id = $1 AND status NOT IN ('answered','expired','cancelled')
RETURNING ` + sessionColumns + `
`
	return r.swap(ctx, q, id, at)
}

func (r *PostgresRepo) MarkWarning(ctx context.Context, id string, escalationCount int) (CallSession, bool, error) {
	const q = `
UPDATE call_sessions
SET status = 'warning'
WHERE id = $1 AND status = 'ringing' AND escalation_count = $2
RETURNING ` + sessionColumns + `
`
	return r.swap(ctx, q, id, escalationCount)
}

func (r *PostgresRepo) Advance(ctx context.Context, id, toTier string, escalationCount int, at, warnAt, escalateAt time.Time) (CallSession, bool, error) {
	const q = `
UPDATE call_sessions
SET status = 'ringing',
    tier = $2,
    escalation_count = escalation_count + 1,
    ring_started_at = $4,
    warn_at = $5,
    escalate_at = $6,
    escalated_at = $4
WHERE id = $1 AND status IN ('ringing','warning') AND escalation_count = $3
RETURNING ` + sessionColumns + `
`
	return r.swap(ctx, q, id, toTier, escalationCount, at, warnAt, escalateAt)
}

func (r *PostgresRepo) MarkExpired(ctx context.Context, id string, escalationCount int, at time.Time) (CallSession, bool, error) {
	const q = `
UPDATE call_sessions
SET status = 'expired', ended_at = $3
WHERE id = $1 AND status IN ('ringing','warning') AND escalation_count = $2
RETURNING ` + sessionColumns + `
`
	return r.swap(ctx, q, id, escalationCount, at)
}

// swap runs a CAS update. sql.ErrNoRows from RETURNING means the WHERE clause
// did not match: either the row is missing or the expected state has moved on.
func (r *PostgresRepo) swap(ctx context.Context, q string, args ...any) (CallSession, bool, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Distinguish a missing row from a lost race.
			if _, getErr := r.Get(ctx, args[0].(string)); getErr != nil {
				return CallSession{}, false, getErr
			}
			return CallSession{}, false, nil
		}
		return CallSession{}, false, err
	}
	return s, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (CallSession, error) {
	var s CallSession
	var initialResponder, answeredBy sql.NullString
	var answeredAt, escalatedAt, endedAt sql.NullTime
	if err := row.Scan(
		&s.ID,
		&s.ClientID,
		&initialResponder,
		&answeredBy,
		&s.Tier,
		&s.Status,
		&s.EscalationCount,
		&s.CreatedAt,
		&s.RingStartedAt,
		&s.WarnAt,
		&s.EscalateAt,
		&answeredAt,
		&escalatedAt,
		&endedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallSession{}, ErrNotFound
		}
		return CallSession{}, err
	}
	s.InitialResponderID = initialResponder.String
	s.AnsweredBy = answeredBy.String
	if answeredAt.Valid {
		t := answeredAt.Time
		s.AnsweredAt = &t
	}
	if escalatedAt.Valid {
		t := escalatedAt.Time
		s.EscalatedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return s, nil
}

func nullStr(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
