package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qrollcall/internal/model"
)

var (
	ErrQRCodeNotFound  = errors.New("qr code not found")
	ErrQRCodeExpired   = errors.New("qr code expired")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
)

// SessionSource resolves session and QR records during redemption.
type SessionSource interface {
	GetSession(ctx context.Context, id string) (*model.Session, error)
	GetQRCode(ctx context.Context, id string) (*model.QRCode, error)
}

// RecordStore persists and queries scan events.
type RecordStore interface {
	InsertRecord(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error)
	FindBySession(ctx context.Context, studentID, sessionID string) (*model.AttendanceRecord, error)
}

// Service validates QR redemptions and records attendance.
type Service struct {
	records  RecordStore
	sessions SessionSource
	now      func() time.Time
}

// NewService creates an attendance service.
func NewService(records RecordStore, sessions SessionSource) *Service {
	return &Service{records: records, sessions: sessions, now: time.Now}
}

// Scan redeems a QR payload for a student. The credential must exist, be
// active and unexpired, and its session must still be open. A repeat scan
// for the same session returns the existing record instead of a duplicate.
func (s *Service) Scan(ctx context.Context, studentID string, payload model.QRPayload, deviceInfo string) (model.AttendanceRecord, error) {
	code, err := s.sessions.GetQRCode(ctx, payload.SessionID)
	if err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("fetch qr code: %w", err)
	}
	if code == nil || !code.IsActive {
		return model.AttendanceRecord{}, ErrQRCodeNotFound
	}
	now := s.now().UTC()
	if !now.Before(code.ExpiresAt) {
		return model.AttendanceRecord{}, ErrQRCodeExpired
	}

	sess, err := s.sessions.GetSession(ctx, payload.SessionID)
	if err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("fetch session: %w", err)
	}
	if sess == nil {
		return model.AttendanceRecord{}, ErrSessionNotFound
	}
	if !sess.IsActive || !now.Before(sess.EndTime) {
		return model.AttendanceRecord{}, ErrSessionClosed
	}

	if existing, err := s.records.FindBySession(ctx, studentID, sess.ID); err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("dedup check: %w", err)
	} else if existing != nil {
		return *existing, nil
	}

	rec := model.AttendanceRecord{
		ClassID:    sess.ClassID,
		StudentID:  studentID,
		SessionID:  sess.ID,
		Timestamp:  now,
		Status:     "present",
		DeviceInfo: deviceInfo,
	}
	return s.records.InsertRecord(ctx, rec)
}
