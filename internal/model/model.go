package model

import "time"

// Role values stored on user records. Authorization reads these from the
// record, not from the bearer token.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// User is an identity record. Students carry a generated StudentID once
// their profile is complete; admins approve them before they can scan.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	IsApproved   bool       `json:"is_approved"`
	StudentID    string     `json:"student_id,omitempty"`
	RollNumber   string     `json:"roll_number,omitempty"`
	University   string     `json:"university,omitempty"`
	ApprovedBy   *string    `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Class is static metadata referenced by sessions and attendance records.
type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one attendance window per QR issuance. Its id doubles as the
// QR record id.
type Session struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	Date      string    `json:"date"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// QRPayload is the scannable content embedded in a QR record.
type QRPayload struct {
	ClassID   string    `json:"class_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
}

// QRCode is the short-lived scannable credential tied to a session. It
// expires independently of (and always before) the session itself.
type QRCode struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	Payload   QRPayload `json:"payload"`
	ExpiresAt time.Time `json:"expires_at"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// AttendanceRecord is one scan event. Immutable once written.
type AttendanceRecord struct {
	ID         string    `json:"id"`
	ClassID    string    `json:"class_id"`
	StudentID  string    `json:"student_id"`
	SessionID  string    `json:"session_id"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	DeviceInfo string    `json:"device_info,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
