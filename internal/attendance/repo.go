package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"qrollcall/internal/model"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertRecord writes a new scan event.
func (r *Repository) InsertRecord(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = "present"
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, class_id, student_id, session_id, occurred_at, status, device_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, rec.ID, rec.ClassID, rec.StudentID, rec.SessionID, rec.Timestamp, rec.Status, rec.DeviceInfo)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return model.AttendanceRecord{}, err
	}
	return rec, nil
}

// FindBySession returns the student's record for a session, or nil.
func (r *Repository) FindBySession(ctx context.Context, studentID, sessionID string) (*model.AttendanceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, student_id, session_id, occurred_at, status, device_info, created_at
		FROM attendance_records
		WHERE student_id = $1 AND session_id = $2
		LIMIT 1
	`, studentID, sessionID)
	var rec model.AttendanceRecord
	if err := row.Scan(&rec.ID, &rec.ClassID, &rec.StudentID, &rec.SessionID, &rec.Timestamp, &rec.Status, &rec.DeviceInfo, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListRecords returns records with basic filters, newest first.
func (r *Repository) ListRecords(ctx context.Context, classID, studentID string, limit, offset int) ([]model.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, class_id, student_id, session_id, occurred_at, status, device_info, created_at FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if classID != "" {
		args = append(args, classID)
		clauses = append(clauses, "class_id = $"+strconv.Itoa(len(args)))
	}
	if studentID != "" {
		args = append(args, studentID)
		clauses = append(clauses, "student_id = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY occurred_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.ClassID, &rec.StudentID, &rec.SessionID, &rec.Timestamp, &rec.Status, &rec.DeviceInfo, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ListByClass returns every record for a class ordered by timestamp
// descending, optionally bounded by an inclusive date range. Feeds the
// export service.
func (r *Repository) ListByClass(ctx context.Context, classID string, start, end *time.Time) ([]model.AttendanceRecord, error) {
	query := `
		SELECT id, class_id, student_id, session_id, occurred_at, status, device_info, created_at
		FROM attendance_records
		WHERE class_id = $1`
	args := []any{classID}
	if start != nil {
		args = append(args, *start)
		query += " AND occurred_at >= $" + strconv.Itoa(len(args))
	}
	if end != nil {
		args = append(args, *end)
		query += " AND occurred_at <= $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY occurred_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.ClassID, &rec.StudentID, &rec.SessionID, &rec.Timestamp, &rec.Status, &rec.DeviceInfo, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
