package identifier

import (
	"context"
	"database/sql"
)

// Repository answers uniqueness and count queries against the users table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CountStudents counts student records at a university.
func (r *Repository) CountStudents(ctx context.Context, university string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users
		WHERE university = $1 AND role = 'student'
	`, university).Scan(&count)
	return count, err
}

// CountMatching counts student identifiers at a university matching a SQL
// LIKE pattern.
func (r *Repository) CountMatching(ctx context.Context, university, pattern string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users
		WHERE university = $1 AND role = 'student' AND student_id LIKE $2
	`, university, pattern).Scan(&count)
	return count, err
}

// Exists reports whether an identifier is already taken at a university.
func (r *Repository) Exists(ctx context.Context, id, university string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE student_id = $1 AND university = $2 AND role = 'student'
		)
	`, id, university).Scan(&exists)
	return exists, err
}
