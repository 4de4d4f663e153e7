package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

const uniqueViolation = "23505"

type querier interface {
	execCloser
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// RunStore implements crawler.RunStore on a "runs" table.
type RunStore struct {
	pool querier
}

// NewRunStore wraps an existing pool.
func NewRunStore(pool querier) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const runColumns = `id, parser, locale, mode, state, total, done, failed,
	output_uri, output_path, error_message, created_at, started_at, finished_at`

// CreateRun inserts a new run row.
func (s *RunStore) CreateRun(ctx context.Context, run crawler.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	query := `INSERT INTO runs (` + runColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`
	_, err := s.pool.Exec(ctx, query, runArgs(run)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", crawler.ErrRunExists, run.ID)
		}
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpdateRun overwrites the mutable columns of an existing run.
func (s *RunStore) UpdateRun(ctx context.Context, run crawler.RunRecord) error {
	query := `
		UPDATE runs
		SET state = $2, total = $3, done = $4, failed = $5, output_uri = $6,
			output_path = $7, error_message = $8, started_at = $9, finished_at = $10
		WHERE id = $1;
	`
	res, err := s.pool.Exec(ctx, query,
		run.ID,
		run.State.String(),
		run.Total,
		run.Done,
		run.Failed,
		run.OutputURI,
		run.OutputPath,
		run.Error,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", crawler.ErrRunNotFound, run.ID)
	}
	return nil
}

// GetRun retrieves a single run by its ID.
func (s *RunStore) GetRun(ctx context.Context, id string) (crawler.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1;`
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawler.RunRecord{}, fmt.Errorf("%w: %s", crawler.ErrRunNotFound, id)
		}
		return crawler.RunRecord{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the newest runs first. A non-positive limit returns all.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]crawler.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT $1;`
	var bound any
	if limit > 0 {
		bound = limit
	}
	rows, err := s.pool.Query(ctx, query, bound)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []crawler.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func runArgs(run crawler.RunRecord) []any {
	return []any{
		run.ID,
		run.Parser,
		run.Locale,
		run.Mode.String(),
		run.State.String(),
		run.Total,
		run.Done,
		run.Failed,
		run.OutputURI,
		run.OutputPath,
		run.Error,
		run.CreatedAt,
		run.StartedAt,
		run.FinishedAt,
	}
}

func scanRun(row pgx.Row) (crawler.RunRecord, error) {
	var (
		run               crawler.RunRecord
		mode, state       string
		started, finished pgtype.Timestamptz
	)
	err := row.Scan(
		&run.ID,
		&run.Parser,
		&run.Locale,
		&mode,
		&state,
		&run.Total,
		&run.Done,
		&run.Failed,
		&run.OutputURI,
		&run.OutputPath,
		&run.Error,
		&run.CreatedAt,
		&started,
		&finished,
	)
	if err != nil {
		return crawler.RunRecord{}, err
	}
	if run.Mode, err = crawler.ParseMode(mode); err != nil {
		return crawler.RunRecord{}, err
	}
	if run.State, err = crawler.ParseRunState(state); err != nil {
		return crawler.RunRecord{}, err
	}
	run.StartedAt = timePtr(started)
	run.FinishedAt = timePtr(finished)
	return run, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
