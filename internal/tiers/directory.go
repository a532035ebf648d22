package tiers

import (
	"context"
	"database/sql"
)

// Directory resolves the current members of a responder tier.
//
// Membership is owned by an external identity system and may change at any
// time; callers must resolve it at dispatch time and never cache results
// across calls.
type Directory interface {
	Members(ctx context.Context, tier string) ([]string, error)
}

// PostgresDirectory reads tier membership from the tier_members table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Members(ctx context.Context, tier string) ([]string, error) {
	const q = `
SELECT responder_id
FROM tier_members
WHERE tier = $1 AND active
ORDER BY responder_id
`
	rows, err := d.db.QueryContext(ctx, q, tier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
