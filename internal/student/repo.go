package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"qrollcall/internal/model"
)

// Repository persists user records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, password_hash, name, role, is_approved, student_id, roll_number, university, approved_by, approved_at, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.IsApproved,
		&u.StudentID, &u.RollNumber, &u.University, &u.ApprovedBy, &u.ApprovedAt,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user record.
func (r *Repository) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, is_approved, student_id, roll_number, university, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.IsApproved, u.StudentID, u.RollNumber, u.University, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// GetUser returns a user by id, or nil when absent.
func (r *Repository) GetUser(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail returns a user by email, or nil when absent.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetUserByStudentID returns a user by generated student identifier, or nil
// when absent.
func (r *Repository) GetUserByStudentID(ctx context.Context, studentID string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE student_id = $1`, studentID))
}

// SetApproval stamps the approval flag and audit fields.
func (r *Repository) SetApproval(ctx context.Context, id string, approved bool, approvedBy string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET is_approved = $2, approved_by = $3, approved_at = $4, updated_at = $4
		WHERE id = $1
	`, id, approved, approvedBy, at)
	return err
}

// UpdateProfile stores the profile-completion fields and the generated
// identifier.
func (r *Repository) UpdateProfile(ctx context.Context, id, university, rollNumber, studentID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET university = $2, roll_number = $3, student_id = $4, updated_at = NOW()
		WHERE id = $1
	`, id, university, rollNumber, studentID)
	return err
}

// ListPending returns unapproved students, oldest first.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]model.User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = 'student' AND is_approved = FALSE
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.IsApproved,
			&u.StudentID, &u.RollNumber, &u.University, &u.ApprovedBy, &u.ApprovedAt,
			&u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
