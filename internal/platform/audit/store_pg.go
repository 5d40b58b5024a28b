package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type queryable interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

const entryColumns = `id, resource, kind, record_id, outcome, message, request_id, occurred_at`

// PGStore journals entries to the mutation_audit table.
type PGStore struct {
	db queryable
}

// NewPGStore accepts a *pgxpool.Pool or any connection with the same query
// methods.
func NewPGStore(db queryable) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Record(ctx context.Context, e Entry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO mutation_audit (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Resource, e.Kind, e.RecordID, string(e.Outcome), e.Message, e.RequestID, e.At,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PGStore) List(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM mutation_audit`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+entryColumns+` FROM mutation_audit ORDER BY occurred_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			outcome string
		)
		if err := rows.Scan(&e.ID, &e.Resource, &e.Kind, &e.RecordID, &outcome, &e.Message, &e.RequestID, &e.At); err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, total, nil
}
