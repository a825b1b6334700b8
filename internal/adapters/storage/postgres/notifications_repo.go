package postgres

import (
	"context"
	"database/sql"
	"strings"

	"case-monitoring/internal/domain/notifications"
)

type NotificationsRepo struct {
	db *sql.DB
}

func NewNotificationsRepo(db *sql.DB) *NotificationsRepo {
	return &NotificationsRepo{db: db}
}

const eventColumns = `
	id, case_id, user_id, event_type, title, description,
	data, event_date, created_at, channel, notified, notified_at
`

func (r *NotificationsRepo) Create(ctx context.Context, e notifications.Event) error {
	var data any
	if len(e.Data) > 0 {
		data = []byte(e.Data)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_events (
			id, case_id, user_id, event_type, title, description,
			data, event_date, created_at, channel, notified, notified_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		e.ID,
		e.CaseID,
		e.UserID,
		string(e.Type),
		e.Title,
		e.Description,
		data,
		e.EventDate,
		e.CreatedAt,
		string(e.Channel),
		e.Notified,
		toNullTime(e.NotifiedAt),
	)
	return err
}

func (r *NotificationsRepo) GetByID(ctx context.Context, id string) (notifications.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return notifications.Event{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM notification_events
		WHERE id = $1
	`, id)

	return scanEvent(row)
}

// Update solo toca notified/notified_at: el resto de la fila es inmutable.
func (r *NotificationsRepo) Update(ctx context.Context, e notifications.Event) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notification_events
		SET
			notified = $2,
			notified_at = $3
		WHERE id = $1
	`,
		e.ID,
		e.Notified,
		toNullTime(e.NotifiedAt),
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

func (r *NotificationsRepo) ListByUser(ctx context.Context, userID string, limit int) ([]notifications.Event, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM notification_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *NotificationsRepo) ListUnsent(ctx context.Context, limit int) ([]notifications.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM notification_events
		WHERE notified = FALSE
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvent(row rowScanner) (notifications.Event, error) {
	var e notifications.Event
	var typ, channel string
	var data []byte
	var notifiedAt sql.NullTime

	if err := row.Scan(
		&e.ID,
		&e.CaseID,
		&e.UserID,
		&typ,
		&e.Title,
		&e.Description,
		&data,
		&e.EventDate,
		&e.CreatedAt,
		&channel,
		&e.Notified,
		&notifiedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return notifications.Event{}, ErrNotFound
		}
		return notifications.Event{}, err
	}

	e.Type = notifications.EventType(typ)
	e.Channel = notifications.Channel(channel)
	if len(data) > 0 {
		e.Data = data
	}
	if notifiedAt.Valid {
		t := notifiedAt.Time
		e.NotifiedAt = &t
	}
	return e, nil
}

func scanEvents(rows *sql.Rows) ([]notifications.Event, error) {
	out := make([]notifications.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
