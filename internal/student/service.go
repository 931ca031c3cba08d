package student

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"qrollcall/internal/identifier"
	"qrollcall/internal/model"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrNotStudent   = errors.New("target is not a student")
)

// Store is the persistence surface for approval and profile flows.
type Store interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	SetApproval(ctx context.Context, id string, approved bool, approvedBy string, at time.Time) error
	UpdateProfile(ctx context.Context, id, university, rollNumber, studentID string) error
}

// Notifier delivers a best-effort notification. Failure never rolls back
// the primary mutation.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// Service handles approval toggles and profile completion.
type Service struct {
	store    Store
	notifier Notifier
	ids      *identifier.Generator
	strategy string
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a student service.
func NewService(store Store, notifier Notifier, ids *identifier.Generator, strategy string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		ids:      ids,
		strategy: strategy,
		logger:   logger,
		now:      time.Now,
	}
}

// ApprovalResult is the approval outcome plus any secondary warnings
// (notification failures, degraded identifiers).
type ApprovalResult struct {
	User     model.User `json:"user"`
	Warnings []string   `json:"warnings,omitempty"`
}

// Approve sets a student's approval flag and attempts exactly one
// notification. The target must exist and be a student; the caller must
// already be an authorized admin.
func (s *Service) Approve(ctx context.Context, adminID, targetID string, approved bool) (*ApprovalResult, error) {
	target, err := s.store.GetUser(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("fetch target: %w", err)
	}
	if target == nil {
		return nil, ErrUserNotFound
	}
	if target.Role != model.RoleStudent {
		return nil, ErrNotStudent
	}

	now := s.now().UTC()
	if err := s.store.SetApproval(ctx, targetID, approved, adminID, now); err != nil {
		return nil, fmt.Errorf("set approval: %w", err)
	}
	target.IsApproved = approved
	target.ApprovedBy = &adminID
	target.ApprovedAt = &now
	target.UpdatedAt = now

	result := &ApprovalResult{User: *target}

	subject := "Your account has been approved"
	body := fmt.Sprintf("Hi %s, your attendance account is now active.", target.Name)
	if !approved {
		subject = "Your account approval was revoked"
		body = fmt.Sprintf("Hi %s, your attendance account has been deactivated. Contact your administrator for details.", target.Name)
	}
	if err := s.notifier.Notify(ctx, target.Email, subject, body); err != nil {
		s.logger.Warn("approval notification failed",
			slog.String("user_id", targetID),
			slog.String("error", err.Error()),
		)
		result.Warnings = append(result.Warnings, fmt.Sprintf("notification failed: %v", err))
	}
	return result, nil
}

// ProfileResult carries the generated identifier and any warnings about a
// degraded (non-unique fallback) id.
type ProfileResult struct {
	User     model.User `json:"user"`
	Warnings []string   `json:"warnings,omitempty"`
}

// CompleteProfile stores university and roll number for a student and
// generates their identifier under the configured strategy.
func (s *Service) CompleteProfile(ctx context.Context, userID, university, rollNumber string) (*ProfileResult, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Role != model.RoleStudent {
		return nil, ErrNotStudent
	}

	gen, err := s.ids.Generate(ctx, identifier.Input{
		Name:       user.Name,
		University: university,
		RollNumber: rollNumber,
		Strategy:   s.strategy,
	})
	if err != nil {
		return nil, fmt.Errorf("generate identifier: %w", err)
	}

	if err := s.store.UpdateProfile(ctx, userID, university, rollNumber, gen.ID); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	user.University = university
	user.RollNumber = rollNumber
	user.StudentID = gen.ID

	result := &ProfileResult{User: *user}
	if !gen.Unique {
		s.logger.Warn("identifier fallback used",
			slog.String("user_id", userID),
			slog.String("student_id", gen.ID),
		)
		result.Warnings = append(result.Warnings, "identifier uniqueness could not be confirmed; a timestamp-derived id was assigned")
	}
	return result, nil
}
