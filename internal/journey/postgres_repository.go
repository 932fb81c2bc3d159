package journey

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velibadvisor/velibadvisor/internal/decision"
)

// Schema creates the history table.
const Schema = `
	CREATE TABLE IF NOT EXISTS journey_history (
		id                  UUID PRIMARY KEY,
		decision_id         UUID NOT NULL,
		from_address        TEXT NOT NULL,
		to_address          TEXT NOT NULL,
		origin_lat          DOUBLE PRECISION NOT NULL,
		origin_lng          DOUBLE PRECISION NOT NULL,
		destination_lat     DOUBLE PRECISION NOT NULL,
		destination_lng     DOUBLE PRECISION NOT NULL,
		recommend           BOOLEAN NOT NULL,
		reason_code         TEXT NOT NULL,
		velib_seconds       INTEGER,
		alternative_mode    TEXT NOT NULL DEFAULT '',
		alternative_seconds INTEGER,
		created_at          TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS journey_history_created_at_idx
		ON journey_history (created_at DESC, id DESC);
`

const selectEntry = `
	SELECT
		id, decision_id, from_address, to_address,
		origin_lat, origin_lng, destination_lat, destination_lng,
		recommend, reason_code, velib_seconds,
		alternative_mode, alternative_seconds, created_at
	FROM journey_history
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL history repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the history table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}

// Save stores a new entry.
func (r *PostgresRepository) Save(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO journey_history (
			id, decision_id, from_address, to_address,
			origin_lat, origin_lng, destination_lat, destination_lng,
			recommend, reason_code, velib_seconds,
			alternative_mode, alternative_seconds, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.pool.Exec(ctx, query,
		e.ID,
		e.DecisionID,
		e.From,
		e.To,
		e.Origin.Lat,
		e.Origin.Lng,
		e.Destination.Lat,
		e.Destination.Lng,
		e.Recommend,
		string(e.ReasonCode),
		e.VelibSeconds,
		e.AlternativeMode,
		e.AlternativeSeconds,
		e.CreatedAt,
	)
	return err
}

// Get retrieves an entry by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Entry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, selectEntry+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns entries newest first.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	// Fetch one extra to determine if there are more results
	fetchLimit := limit + 1

	var (
		rows pgx.Rows
		err  error
	)
	if opts.Cursor == "" {
		rows, err = r.pool.Query(ctx, selectEntry+`
			ORDER BY created_at DESC, id DESC
			LIMIT $1
		`, fetchLimit)
	} else {
		rows, err = r.pool.Query(ctx, selectEntry+`
			WHERE (created_at, id) < (SELECT created_at, id FROM journey_history WHERE id = $1)
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, opts.Cursor, fetchLimit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{
		Items: entries,
	}

	if len(entries) > limit {
		result.Items = entries[:limit]
		result.NextCursor = entries[limit-1].ID
	}

	return result, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e          Entry
		reasonCode string
	)

	err := row.Scan(
		&e.ID,
		&e.DecisionID,
		&e.From,
		&e.To,
		&e.Origin.Lat,
		&e.Origin.Lng,
		&e.Destination.Lat,
		&e.Destination.Lng,
		&e.Recommend,
		&reasonCode,
		&e.VelibSeconds,
		&e.AlternativeMode,
		&e.AlternativeSeconds,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.ReasonCode = decision.ReasonCode(reasonCode)
	return &e, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
