package postgres

import (
	"context"
	"database/sql"
	"strings"

	"case-monitoring/internal/domain/cases"
)

type CasesRepo struct {
	db *sql.DB
}

func NewCasesRepo(db *sql.DB) *CasesRepo {
	return &CasesRepo{db: db}
}

func (r *CasesRepo) Create(ctx context.Context, c cases.MonitoredCase) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO monitored_cases (
			id, docket_id, court_id, name, created_at, last_fetched_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		c.ID,
		c.DocketID,
		c.CourtID,
		c.Name,
		c.CreatedAt,
		toNullTime(c.LastFetchedAt),
	)
	return err
}

func (r *CasesRepo) Update(ctx context.Context, c cases.MonitoredCase) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE monitored_cases
		SET
			docket_id = $2,
			court_id = $3,
			name = $4,
			last_fetched_at = $5
		WHERE id = $1
	`,
		c.ID,
		c.DocketID,
		c.CourtID,
		c.Name,
		toNullTime(c.LastFetchedAt),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CasesRepo) GetByID(ctx context.Context, id string) (cases.MonitoredCase, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return cases.MonitoredCase{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, docket_id, court_id, name, created_at, last_fetched_at
		FROM monitored_cases
		WHERE id = $1
	`, id)

	return scanCase(row)
}

func (r *CasesRepo) GetByDocket(ctx context.Context, docketID string) (cases.MonitoredCase, error) {
	docketID = strings.TrimSpace(docketID)
	if docketID == "" {
		return cases.MonitoredCase{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, docket_id, court_id, name, created_at, last_fetched_at
		FROM monitored_cases
		WHERE docket_id = $1
	`, docketID)

	return scanCase(row)
}

func (r *CasesRepo) List(ctx context.Context) ([]cases.MonitoredCase, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, docket_id, court_id, name, created_at, last_fetched_at
		FROM monitored_cases
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]cases.MonitoredCase, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCase(row rowScanner) (cases.MonitoredCase, error) {
	var c cases.MonitoredCase
	var lastFetched sql.NullTime

	if err := row.Scan(
		&c.ID,
		&c.DocketID,
		&c.CourtID,
		&c.Name,
		&c.CreatedAt,
		&lastFetched,
	); err != nil {
		if err == sql.ErrNoRows {
			return cases.MonitoredCase{}, ErrNotFound
		}
		return cases.MonitoredCase{}, err
	}

	if lastFetched.Valid {
		t := lastFetched.Time
		c.LastFetchedAt = &t
	}
	return c, nil
}
