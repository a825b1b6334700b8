package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"case-monitoring/internal/domain/accessgrants"
)

type GrantsRepo struct {
	db *sql.DB
}

func NewGrantsRepo(db *sql.DB) *GrantsRepo {
	return &GrantsRepo{db: db}
}

const grantColumns = `
	id, user_id, case_id, access_type, status,
	notifications_enabled, granted_at, updated_at, expires_at
`

func (r *GrantsRepo) Create(ctx context.Context, g accessgrants.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_grants (
			id, user_id, case_id, access_type, status,
			notifications_enabled, granted_at, updated_at, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		g.ID,
		g.UserID,
		g.CaseID,
		string(g.Type),
		string(g.Status),
		g.NotificationsEnabled,
		g.GrantedAt,
		g.UpdatedAt,
		toNullTime(g.ExpiresAt),
	)
	return err
}

func (r *GrantsRepo) Update(ctx context.Context, g accessgrants.Grant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_grants
		SET
			access_type = $2,
			status = $3,
			notifications_enabled = $4,
			updated_at = $5,
			expires_at = $6
		WHERE id = $1
	`,
		g.ID,
		string(g.Type),
		string(g.Status),
		g.NotificationsEnabled,
		g.UpdatedAt,
		toNullTime(g.ExpiresAt),
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

func (r *GrantsRepo) GetByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return accessgrants.Grant{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE id = $1
	`, id)

	return scanGrant(row)
}

func (r *GrantsRepo) ListByCase(ctx context.Context, caseID string) ([]accessgrants.Grant, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE case_id = $1
		ORDER BY granted_at ASC
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGrants(rows)
}

func (r *GrantsRepo) ListByUser(ctx context.Context, userID string) ([]accessgrants.Grant, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGrants(rows)
}

func (r *GrantsRepo) GetActiveGrant(ctx context.Context, userID, caseID string) (accessgrants.Grant, error) {
	userID = strings.TrimSpace(userID)
	caseID = strings.TrimSpace(caseID)
	if userID == "" || caseID == "" {
		return accessgrants.Grant{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE user_id = $1
		  AND case_id = $2
		  AND status = 'active'
		ORDER BY updated_at DESC
		LIMIT 1
	`, userID, caseID)

	return scanGrant(row)
}

func (r *GrantsRepo) ListActive(ctx context.Context) ([]accessgrants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE status = 'active'
		ORDER BY granted_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGrants(rows)
}

// helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (accessgrants.Grant, error) {
	var g accessgrants.Grant
	var typ, status string
	var expiresAt sql.NullTime

	if err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.CaseID,
		&typ,
		&status,
		&g.NotificationsEnabled,
		&g.GrantedAt,
		&g.UpdatedAt,
		&expiresAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return accessgrants.Grant{}, ErrNotFound
		}
		return accessgrants.Grant{}, err
	}

	g.Type = accessgrants.AccessType(typ)
	g.Status = accessgrants.Status(status)
	if expiresAt.Valid {
		t := expiresAt.Time
		g.ExpiresAt = &t
	}
	return g, nil
}

func scanGrants(rows *sql.Rows) ([]accessgrants.Grant, error) {
	out := make([]accessgrants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
