package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrollcall/internal/model"
)

type fakeSessionStore struct {
	class    *model.Class
	sessions map[string]model.Session
	qrCodes  map[string]model.QRCode

	insertQRErr  error
	deletedIDs   []string
	expiredQR    int64
	endedSess    int64
	oldQR        int64
	expiredErr   error
	endedErr     error
	oldErr       error
	oldCutoff    time.Time
	oldSweepRuns int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		class:    &model.Class{ID: "class-1", Name: "Distributed Systems"},
		sessions: make(map[string]model.Session),
		qrCodes:  make(map[string]model.QRCode),
	}
}

func (f *fakeSessionStore) GetClass(ctx context.Context, id string) (*model.Class, error) {
	if f.class != nil && f.class.ID == id {
		return f.class, nil
	}
	return nil, nil
}

func (f *fakeSessionStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSessionStore) InsertSession(ctx context.Context, s model.Session) error {
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeSessionStore) InsertQRCode(ctx context.Context, q model.QRCode) error {
	if f.insertQRErr != nil {
		return f.insertQRErr
	}
	f.qrCodes[q.ID] = q
	return nil
}

func (f *fakeSessionStore) DeleteSession(ctx context.Context, id string) error {
	f.deletedIDs = append(f.deletedIDs, id)
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionStore) DeleteExpiredQRCodes(ctx context.Context, now time.Time) (int64, error) {
	return f.expiredQR, f.expiredErr
}

func (f *fakeSessionStore) DeleteEndedSessions(ctx context.Context, now time.Time) (int64, error) {
	return f.endedSess, f.endedErr
}

func (f *fakeSessionStore) DeleteQRCodesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.oldSweepRuns++
	f.oldCutoff = cutoff
	return f.oldQR, f.oldErr
}

func (f *fakeSessionStore) CountSessions(ctx context.Context, now time.Time) (int64, int64, error) {
	return 3, 2, nil
}

func (f *fakeSessionStore) CountQRCodes(ctx context.Context, now time.Time) (int64, int64, error) {
	return 1, 4, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store Store) *Service {
	svc := NewService(store, time.Hour, 90*time.Second, 7, quietLogger())
	svc.now = func() time.Time { return time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestCreateMintsSessionAndQR(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store)

	created, err := svc.Create(context.Background(), "class-1", 52.52, 13.405)
	require.NoError(t, err)

	start := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, start, created.Session.StartTime)
	assert.Equal(t, start.Add(time.Hour), created.Session.EndTime)
	assert.True(t, created.Session.IsActive)
	assert.Equal(t, "2026-08-26", created.Session.Date)

	assert.Equal(t, created.Session.ID, created.QRCode.ID, "qr id follows the session id")
	assert.Equal(t, start.Add(90*time.Second), created.QRCode.ExpiresAt)
	assert.True(t, created.QRCode.ExpiresAt.Before(created.Session.EndTime),
		"the credential must expire before the session ends")
	assert.Equal(t, created.Session.ID, created.QRCode.Payload.SessionID)
	assert.Equal(t, 52.52, created.QRCode.Payload.Lat)

	assert.True(t, strings.HasPrefix(created.Image, "data:image/png;base64,"))

	_, ok := store.sessions[created.Session.ID]
	assert.True(t, ok)
	_, ok = store.qrCodes[created.Session.ID]
	assert.True(t, ok)
}

func TestCreateUnknownClass(t *testing.T) {
	svc := newTestService(newFakeSessionStore())

	_, err := svc.Create(context.Background(), "missing", 0, 0)
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestCreateCompensatesWhenQRInsertFails(t *testing.T) {
	store := newFakeSessionStore()
	store.insertQRErr = errors.New("write timeout")
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), "class-1", 0, 0)
	require.Error(t, err)
	require.Len(t, store.deletedIDs, 1, "the orphan session must be deleted")
	assert.Empty(t, store.sessions)
}

func TestNewServiceClampsBadWindow(t *testing.T) {
	// A window at or above the session duration would mint credentials
	// outliving their session.
	svc := NewService(newFakeSessionStore(), time.Hour, 2*time.Hour, 7, quietLogger())
	assert.Equal(t, 90*time.Second, svc.qrWindow)
}

func TestSweepAll(t *testing.T) {
	store := newFakeSessionStore()
	store.expiredQR, store.endedSess, store.oldQR = 5, 2, 9
	svc := newTestService(store)

	res, err := svc.Sweep(context.Background(), CleanupAll, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.ExpiredQRCodes)
	assert.Equal(t, int64(2), res.EndedSessions)
	assert.Equal(t, int64(9), res.OldQRCodes)
	assert.Equal(t, int64(16), res.Total)
	assert.Empty(t, res.Warnings)

	wantCutoff := time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, wantCutoff, store.oldCutoff, "default max age is seven days")
}

func TestSweepExpiredOnly(t *testing.T) {
	store := newFakeSessionStore()
	store.expiredQR, store.oldQR = 3, 9
	svc := newTestService(store)

	res, err := svc.Sweep(context.Background(), CleanupExpired, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Zero(t, store.oldSweepRuns, "expired-only sweep must not touch old records")
}

func TestSweepCustomAge(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store)

	_, err := svc.Sweep(context.Background(), CleanupOld, 30)
	require.NoError(t, err)
	wantCutoff := time.Date(2026, 7, 27, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, wantCutoff, store.oldCutoff)
}

func TestSweepPartialFailureWarns(t *testing.T) {
	store := newFakeSessionStore()
	store.expiredQR, store.oldQR = 5, 9
	store.endedErr = errors.New("lock timeout")
	svc := newTestService(store)

	res, err := svc.Sweep(context.Background(), CleanupAll, 0)
	require.NoError(t, err, "a single failing operation must not abort the sweep")
	assert.Equal(t, int64(14), res.Total)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "lock timeout")
}

func TestSweepUnknownType(t *testing.T) {
	svc := newTestService(newFakeSessionStore())

	_, err := svc.Sweep(context.Background(), "everything", 0)
	assert.ErrorIs(t, err, ErrUnknownCleanupType)
}

// memoryLifecycleStore holds real session/QR entries so sweeps actually
// remove state, unlike the fixed-count fake above.
type memoryLifecycleStore struct {
	sessions map[string]model.Session
	qrCodes  map[string]model.QRCode
}

func newMemoryLifecycleStore() *memoryLifecycleStore {
	return &memoryLifecycleStore{
		sessions: make(map[string]model.Session),
		qrCodes:  make(map[string]model.QRCode),
	}
}

func (m *memoryLifecycleStore) GetClass(ctx context.Context, id string) (*model.Class, error) {
	return &model.Class{ID: id, Name: id}, nil
}

func (m *memoryLifecycleStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memoryLifecycleStore) InsertSession(ctx context.Context, s model.Session) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *memoryLifecycleStore) InsertQRCode(ctx context.Context, q model.QRCode) error {
	m.qrCodes[q.ID] = q
	return nil
}

func (m *memoryLifecycleStore) DeleteSession(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *memoryLifecycleStore) DeleteExpiredQRCodes(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, q := range m.qrCodes {
		if !q.ExpiresAt.After(now) {
			delete(m.qrCodes, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryLifecycleStore) DeleteEndedSessions(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, s := range m.sessions {
		if s.IsActive && !s.EndTime.After(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryLifecycleStore) DeleteQRCodesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, q := range m.qrCodes {
		if q.CreatedAt.Before(cutoff) {
			delete(m.qrCodes, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryLifecycleStore) CountSessions(ctx context.Context, now time.Time) (int64, int64, error) {
	var active, expired int64
	for _, s := range m.sessions {
		if s.EndTime.After(now) {
			active++
		} else {
			expired++
		}
	}
	return active, expired, nil
}

func (m *memoryLifecycleStore) CountQRCodes(ctx context.Context, now time.Time) (int64, int64, error) {
	var active, expired int64
	for _, q := range m.qrCodes {
		if q.ExpiresAt.After(now) {
			active++
		} else {
			expired++
		}
	}
	return active, expired, nil
}

func TestSweepIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	store := newMemoryLifecycleStore()

	store.qrCodes["q-expired"] = model.QRCode{ID: "q-expired", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour)}
	store.qrCodes["q-old"] = model.QRCode{ID: "q-old", ExpiresAt: now.Add(time.Hour), CreatedAt: now.AddDate(0, 0, -10)}
	store.qrCodes["q-live"] = model.QRCode{ID: "q-live", ExpiresAt: now.Add(time.Minute), CreatedAt: now}
	store.sessions["s-ended"] = model.Session{ID: "s-ended", EndTime: now.Add(-time.Minute), IsActive: true}
	store.sessions["s-live"] = model.Session{ID: "s-live", EndTime: now.Add(time.Hour), IsActive: true}

	svc := newTestService(store)

	first, err := svc.Sweep(context.Background(), CleanupAll, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ExpiredQRCodes)
	assert.Equal(t, int64(1), first.EndedSessions)
	assert.Equal(t, int64(1), first.OldQRCodes)
	assert.Equal(t, int64(3), first.Total)

	second, err := svc.Sweep(context.Background(), CleanupAll, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Total, "nothing new to reclaim on the second run")
	assert.Empty(t, second.Warnings)

	_, ok := store.qrCodes["q-live"]
	assert.True(t, ok, "live records survive both sweeps")
	_, ok = store.sessions["s-live"]
	assert.True(t, ok)
}

func TestStats(t *testing.T) {
	svc := newTestService(newFakeSessionStore())

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CollectionStats{Active: 3, Expired: 2}, st.Sessions)
	assert.Equal(t, CollectionStats{Active: 1, Expired: 4}, st.QRCodes)
}
