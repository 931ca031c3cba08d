package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"qrollcall/internal/model"
)

// Repository persists sessions and QR records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetClass returns class metadata, or nil when absent.
func (r *Repository) GetClass(ctx context.Context, id string) (*model.Class, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM classes WHERE id = $1
	`, id)
	var cls model.Class
	if err := row.Scan(&cls.ID, &cls.Name, &cls.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cls, nil
}

// InsertSession writes a new session.
func (r *Repository) InsertSession(ctx context.Context, s model.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, class_id, date, start_time, end_time, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.ClassID, s.Date, s.StartTime, s.EndTime, s.IsActive)
	return err
}

// InsertQRCode writes a QR record with its payload serialized as JSON.
func (r *Repository) InsertQRCode(ctx context.Context, q model.QRCode) error {
	payload, err := json.Marshal(q.Payload)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO qr_codes (id, class_id, payload, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, q.ID, q.ClassID, string(payload), q.ExpiresAt, q.IsActive)
	return err
}

// DeleteSession removes a session. Used as the compensating write when the
// paired QR insert fails.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// GetSession returns a session by id, or nil when absent.
func (r *Repository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, date, start_time, end_time, is_active, created_at
		FROM sessions WHERE id = $1
	`, id)
	var s model.Session
	if err := row.Scan(&s.ID, &s.ClassID, &s.Date, &s.StartTime, &s.EndTime, &s.IsActive, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetQRCode returns a QR record by id (= session id), or nil when absent.
func (r *Repository) GetQRCode(ctx context.Context, id string) (*model.QRCode, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, payload, expires_at, is_active, created_at
		FROM qr_codes WHERE id = $1
	`, id)
	var q model.QRCode
	var payload string
	if err := row.Scan(&q.ID, &q.ClassID, &payload, &q.ExpiresAt, &q.IsActive, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &q.Payload); err != nil {
		return nil, err
	}
	return &q, nil
}

// DeleteExpiredQRCodes removes QR records whose scan window has closed.
func (r *Repository) DeleteExpiredQRCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM qr_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteEndedSessions removes active sessions whose attendance window has closed.
func (r *Repository) DeleteEndedSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE end_time <= $1 AND is_active = TRUE
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteQRCodesOlderThan removes QR records created before the cutoff
// regardless of expiry state.
func (r *Repository) DeleteQRCodesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM qr_codes WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountSessions returns active vs expired session counts.
func (r *Repository) CountSessions(ctx context.Context, now time.Time) (active, expired int64, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE end_time > $1),
			COUNT(*) FILTER (WHERE end_time <= $1)
		FROM sessions
	`, now).Scan(&active, &expired)
	return active, expired, err
}

// CountQRCodes returns active vs expired QR record counts.
func (r *Repository) CountQRCodes(ctx context.Context, now time.Time) (active, expired int64, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE expires_at > $1),
			COUNT(*) FILTER (WHERE expires_at <= $1)
		FROM qr_codes
	`, now).Scan(&active, &expired)
	return active, expired, err
}
