package student

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrollcall/internal/identifier"
	"qrollcall/internal/model"
)

type fakeUserStore struct {
	users       map[string]*model.User
	approvals   []approvalCall
	profiles    []profileCall
	approvalErr error
}

type approvalCall struct {
	id         string
	approved   bool
	approvedBy string
}

type profileCall struct {
	id, university, rollNumber, studentID string
}

func (f *fakeUserStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return f.users[id], nil
}

func (f *fakeUserStore) SetApproval(ctx context.Context, id string, approved bool, approvedBy string, at time.Time) error {
	if f.approvalErr != nil {
		return f.approvalErr
	}
	f.approvals = append(f.approvals, approvalCall{id: id, approved: approved, approvedBy: approvedBy})
	return nil
}

func (f *fakeUserStore) UpdateProfile(ctx context.Context, id, university, rollNumber, studentID string) error {
	f.profiles = append(f.profiles, profileCall{id: id, university: university, rollNumber: rollNumber, studentID: studentID})
	return nil
}

type fakeNotifier struct {
	sent []sentMail
	err  error
}

type sentMail struct {
	to, subject, body string
}

func (f *fakeNotifier) Notify(ctx context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakeIDStore struct {
	taken map[string]bool
}

func (f *fakeIDStore) CountStudents(ctx context.Context, university string) (int, error) {
	return 0, nil
}

func (f *fakeIDStore) CountMatching(ctx context.Context, university, pattern string) (int, error) {
	return 0, nil
}

func (f *fakeIDStore) Exists(ctx context.Context, id, university string) (bool, error) {
	return f.taken[id], nil
}

type allTakenIDStore struct{}

func (allTakenIDStore) CountStudents(ctx context.Context, university string) (int, error) {
	return 0, nil
}

func (allTakenIDStore) CountMatching(ctx context.Context, university, pattern string) (int, error) {
	return 0, nil
}

func (allTakenIDStore) Exists(ctx context.Context, id, university string) (bool, error) {
	return true, nil
}

func newStudentService(store *fakeUserStore, notifier *fakeNotifier, ids identifier.Store) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if ids == nil {
		ids = &fakeIDStore{}
	}
	return NewService(store, notifier, identifier.New(ids), identifier.StrategyName, logger)
}

func pendingStudent() *model.User {
	return &model.User{
		ID:    "u-1",
		Name:  "Ana Lee",
		Email: "ana@example.com",
		Role:  model.RoleStudent,
	}
}

func TestApproveSetsFlagAndNotifies(t *testing.T) {
	store := &fakeUserStore{users: map[string]*model.User{"u-1": pendingStudent()}}
	notifier := &fakeNotifier{}
	svc := newStudentService(store, notifier, nil)

	res, err := svc.Approve(context.Background(), "admin-1", "u-1", true)
	require.NoError(t, err)
	assert.True(t, res.User.IsApproved)
	require.NotNil(t, res.User.ApprovedBy)
	assert.Equal(t, "admin-1", *res.User.ApprovedBy)
	assert.NotNil(t, res.User.ApprovedAt)
	assert.Empty(t, res.Warnings)

	require.Len(t, store.approvals, 1)
	assert.Equal(t, approvalCall{id: "u-1", approved: true, approvedBy: "admin-1"}, store.approvals[0])

	require.Len(t, notifier.sent, 1, "exactly one notification per approval")
	assert.Equal(t, "ana@example.com", notifier.sent[0].to)
	assert.Contains(t, notifier.sent[0].subject, "approved")
}

func TestRevokeUsesRevocationWording(t *testing.T) {
	user := pendingStudent()
	user.IsApproved = true
	store := &fakeUserStore{users: map[string]*model.User{"u-1": user}}
	notifier := &fakeNotifier{}
	svc := newStudentService(store, notifier, nil)

	res, err := svc.Approve(context.Background(), "admin-1", "u-1", false)
	require.NoError(t, err)
	assert.False(t, res.User.IsApproved)
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0].subject, "revoked")
}

func TestApproveUnknownUser(t *testing.T) {
	svc := newStudentService(&fakeUserStore{users: map[string]*model.User{}}, &fakeNotifier{}, nil)

	_, err := svc.Approve(context.Background(), "admin-1", "missing", true)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestApproveRejectsNonStudent(t *testing.T) {
	admin := &model.User{ID: "u-2", Role: model.RoleAdmin}
	svc := newStudentService(&fakeUserStore{users: map[string]*model.User{"u-2": admin}}, &fakeNotifier{}, nil)

	_, err := svc.Approve(context.Background(), "admin-1", "u-2", true)
	assert.ErrorIs(t, err, ErrNotStudent)
}

func TestApproveNotificationFailureIsWarning(t *testing.T) {
	store := &fakeUserStore{users: map[string]*model.User{"u-1": pendingStudent()}}
	svc := newStudentService(store, &fakeNotifier{err: errors.New("queue full")}, nil)

	res, err := svc.Approve(context.Background(), "admin-1", "u-1", true)
	require.NoError(t, err, "a failed notification must not undo the approval")
	assert.True(t, res.User.IsApproved)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "queue full")
	require.Len(t, store.approvals, 1)
}

func TestCompleteProfileAssignsIdentifier(t *testing.T) {
	store := &fakeUserStore{users: map[string]*model.User{"u-1": pendingStudent()}}
	svc := newStudentService(store, &fakeNotifier{}, &fakeIDStore{})

	res, err := svc.CompleteProfile(context.Background(), "u-1", "Tech University", "CS-42")
	require.NoError(t, err)
	assert.Equal(t, "ANL001", res.User.StudentID)
	assert.Equal(t, "Tech University", res.User.University)
	assert.Empty(t, res.Warnings)

	require.Len(t, store.profiles, 1)
	assert.Equal(t, "ANL001", store.profiles[0].studentID)
}

func TestCompleteProfileFallbackWarns(t *testing.T) {
	store := &fakeUserStore{users: map[string]*model.User{"u-1": pendingStudent()}}
	svc := newStudentService(store, &fakeNotifier{}, allTakenIDStore{})

	res, err := svc.CompleteProfile(context.Background(), "u-1", "Tech University", "")
	require.NoError(t, err)
	assert.Regexp(t, `^STU\d{6}$`, res.User.StudentID)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "uniqueness")
}

func TestCompleteProfileUnknownUser(t *testing.T) {
	svc := newStudentService(&fakeUserStore{users: map[string]*model.User{}}, &fakeNotifier{}, nil)

	_, err := svc.CompleteProfile(context.Background(), "missing", "Tech University", "")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
