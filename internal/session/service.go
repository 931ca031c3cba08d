package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"qrollcall/internal/model"
	"qrollcall/internal/qr"
)

// Cleanup types accepted by Sweep.
const (
	CleanupAll     = "all"
	CleanupExpired = "expired"
	CleanupOld     = "old"
)

var (
	ErrClassNotFound      = errors.New("class not found")
	ErrUnknownCleanupType = errors.New("unknown cleanup type")
)

// Store is the persistence surface the lifecycle manager needs.
type Store interface {
	GetClass(ctx context.Context, id string) (*model.Class, error)
	GetSession(ctx context.Context, id string) (*model.Session, error)
	InsertSession(ctx context.Context, s model.Session) error
	InsertQRCode(ctx context.Context, q model.QRCode) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredQRCodes(ctx context.Context, now time.Time) (int64, error)
	DeleteEndedSessions(ctx context.Context, now time.Time) (int64, error)
	DeleteQRCodesOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	CountSessions(ctx context.Context, now time.Time) (active, expired int64, err error)
	CountQRCodes(ctx context.Context, now time.Time) (active, expired int64, err error)
}

// Service mints session/QR pairs and reclaims expired ones.
type Service struct {
	store           Store
	sessionDuration time.Duration
	qrWindow        time.Duration
	defaultMaxAge   time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// NewService creates a lifecycle manager. The QR window must be shorter
// than the session duration; config validation enforces this upstream, and
// the constructor clamps as a second line of defense.
func NewService(store Store, sessionDuration, qrWindow time.Duration, maxAgeDays int, logger *slog.Logger) *Service {
	if sessionDuration <= 0 {
		sessionDuration = time.Hour
	}
	if qrWindow <= 0 || qrWindow >= sessionDuration {
		qrWindow = 90 * time.Second
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 7
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:           store,
		sessionDuration: sessionDuration,
		qrWindow:        qrWindow,
		defaultMaxAge:   time.Duration(maxAgeDays) * 24 * time.Hour,
		logger:          logger,
		now:             time.Now,
	}
}

// Created is a freshly minted session/QR pair. Image is a base64 PNG data
// URL of the payload; it is best-effort and may be empty.
type Created struct {
	Session model.Session `json:"session"`
	QRCode  model.QRCode  `json:"qr_code"`
	Image   string        `json:"image,omitempty"`
}

// Create mints a session and its QR credential for a class. The two writes
// are independent; when the QR write fails the session is deleted again and
// the error is returned, so a caller retry mints a fresh pair.
func (s *Service) Create(ctx context.Context, classID string, lat, lng float64) (*Created, error) {
	cls, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("fetch class: %w", err)
	}
	if cls == nil {
		return nil, ErrClassNotFound
	}

	now := s.now().UTC()
	sess := model.Session{
		ID:        uuid.NewString(),
		ClassID:   classID,
		Date:      now.Format("2006-01-02"),
		StartTime: now,
		EndTime:   now.Add(s.sessionDuration),
		IsActive:  true,
	}
	code := model.QRCode{
		ID:      sess.ID,
		ClassID: classID,
		Payload: model.QRPayload{
			ClassID:   classID,
			SessionID: sess.ID,
			Timestamp: now,
			Lat:       lat,
			Lng:       lng,
		},
		ExpiresAt: now.Add(s.qrWindow),
		IsActive:  true,
	}

	if err := s.store.InsertSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	if err := s.store.InsertQRCode(ctx, code); err != nil {
		if derr := s.store.DeleteSession(ctx, sess.ID); derr != nil {
			s.logger.Error("compensating session delete failed",
				slog.String("session_id", sess.ID),
				slog.String("error", derr.Error()),
			)
		}
		return nil, fmt.Errorf("insert qr code: %w", err)
	}

	created := &Created{Session: sess, QRCode: code}
	if img, err := qr.EncodeDataURL(code.Payload, 256); err != nil {
		s.logger.Warn("qr image render failed", slog.String("session_id", sess.ID), slog.String("error", err.Error()))
	} else {
		created.Image = img
	}
	return created, nil
}

// Get returns a session by id, or nil when absent.
func (s *Service) Get(ctx context.Context, id string) (*model.Session, error) {
	return s.store.GetSession(ctx, id)
}

// SweepResult aggregates the reclaim counts. Warnings carry per-operation
// failures that did not abort the sweep.
type SweepResult struct {
	ExpiredQRCodes int64    `json:"expired_qr_codes"`
	EndedSessions  int64    `json:"ended_sessions"`
	OldQRCodes     int64    `json:"old_qr_codes"`
	Total          int64    `json:"total"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Sweep runs the reclaim operations selected by cleanupType. Each operation
// is idempotent; a failing operation is recorded as a warning and the sweep
// continues, so Total reflects only records actually removed.
func (s *Service) Sweep(ctx context.Context, cleanupType string, daysOld int) (SweepResult, error) {
	if cleanupType == "" {
		cleanupType = CleanupAll
	}
	if cleanupType != CleanupAll && cleanupType != CleanupExpired && cleanupType != CleanupOld {
		return SweepResult{}, fmt.Errorf("%w: %q", ErrUnknownCleanupType, cleanupType)
	}

	maxAge := s.defaultMaxAge
	if daysOld > 0 {
		maxAge = time.Duration(daysOld) * 24 * time.Hour
	}

	now := s.now().UTC()
	var res SweepResult

	if cleanupType == CleanupAll || cleanupType == CleanupExpired {
		if n, err := s.store.DeleteExpiredQRCodes(ctx, now); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("expired qr sweep: %v", err))
		} else {
			res.ExpiredQRCodes = n
		}
		if n, err := s.store.DeleteEndedSessions(ctx, now); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("ended session sweep: %v", err))
		} else {
			res.EndedSessions = n
		}
	}
	if cleanupType == CleanupAll || cleanupType == CleanupOld {
		if n, err := s.store.DeleteQRCodesOlderThan(ctx, now.Add(-maxAge)); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("old qr sweep: %v", err))
		} else {
			res.OldQRCodes = n
		}
	}

	res.Total = res.ExpiredQRCodes + res.EndedSessions + res.OldQRCodes
	s.logger.Info("cleanup sweep finished",
		slog.String("type", cleanupType),
		slog.Int64("deleted_total", res.Total),
		slog.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// CollectionStats counts live vs expired records in one collection.
type CollectionStats struct {
	Active  int64 `json:"active"`
	Expired int64 `json:"expired"`
}

// Stats is the read-only observability probe.
type Stats struct {
	Sessions CollectionStats `json:"sessions"`
	QRCodes  CollectionStats `json:"qr_codes"`
}

// Stats counts active vs expired records without mutating anything.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now().UTC()
	var st Stats
	var err error
	if st.Sessions.Active, st.Sessions.Expired, err = s.store.CountSessions(ctx, now); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	if st.QRCodes.Active, st.QRCodes.Expired, err = s.store.CountQRCodes(ctx, now); err != nil {
		return nil, fmt.Errorf("count qr codes: %w", err)
	}
	return &st, nil
}
