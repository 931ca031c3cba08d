package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"qrollcall/internal/model"
)

// ErrClassNotFound marks an export request for a class that does not exist.
var ErrClassNotFound = errors.New("class not found")

// csvHeader is the fixed column order of the report.
var csvHeader = []string{"Name", "Student ID", "Email", "Date", "Time", "Status", "Session ID", "Device Info"}

// AttendanceSource feeds the report rows, newest first.
type AttendanceSource interface {
	ListByClass(ctx context.Context, classID string, start, end *time.Time) ([]model.AttendanceRecord, error)
}

// ProfileSource resolves student ids to profiles; nil means missing.
type ProfileSource interface {
	GetUserByStudentID(ctx context.Context, studentID string) (*model.User, error)
}

// ClassSource resolves class metadata.
type ClassSource interface {
	GetClass(ctx context.Context, id string) (*model.Class, error)
}

// Uploader hands rendered bytes to object storage and returns a
// retrievable URL.
type Uploader interface {
	UploadRaw(ctx context.Context, data []byte, filename string) (string, error)
}

// Service renders attendance history as a CSV report and uploads it.
type Service struct {
	attendance AttendanceSource
	profiles   ProfileSource
	classes    ClassSource
	uploader   Uploader
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates an export service.
func NewService(attendance AttendanceSource, profiles ProfileSource, classes ClassSource, uploader Uploader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		attendance: attendance,
		profiles:   profiles,
		classes:    classes,
		uploader:   uploader,
		logger:     logger,
		now:        time.Now,
	}
}

// Request bounds an export. Nil dates mean "all time" on that side.
type Request struct {
	ClassID   string
	StartDate *time.Time
	EndDate   *time.Time
}

// Result echoes what was exported. StartDate/EndDate read "All time" when
// the corresponding bound was omitted.
type Result struct {
	URL         string `json:"url"`
	RecordCount int    `json:"record_count"`
	ClassName   string `json:"class_name"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// Run fetches the records, resolves profiles concurrently, renders the CSV
// and uploads it. Per-record defects (corrupt timestamp, missing profile)
// are defaulted, never fatal; only query and upload failures abort.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	cls, err := s.classes.GetClass(ctx, req.ClassID)
	if err != nil {
		return nil, fmt.Errorf("fetch class: %w", err)
	}
	if cls == nil {
		return nil, ErrClassNotFound
	}

	records, err := s.attendance.ListByClass(ctx, req.ClassID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("fetch attendance: %w", err)
	}

	profiles, err := s.resolveProfiles(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("resolve profiles: %w", err)
	}

	data, err := render(records, profiles)
	if err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}

	filename := fmt.Sprintf("attendance_%s_%d.csv", req.ClassID, s.now().Unix())
	url, err := s.uploader.UploadRaw(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}

	s.logger.Info("attendance export uploaded",
		slog.String("class_id", req.ClassID),
		slog.Int("records", len(records)),
		slog.String("url", url),
	)

	return &Result{
		URL:         url,
		RecordCount: len(records),
		ClassName:   cls.Name,
		StartDate:   echoBound(req.StartDate),
		EndDate:     echoBound(req.EndDate),
	}, nil
}

// resolveProfiles looks up each distinct student id concurrently and joins
// before returning. Missing profiles come back as nil entries; a failed
// lookup fails the export.
func (s *Service) resolveProfiles(ctx context.Context, records []model.AttendanceRecord) (map[string]*model.User, error) {
	distinct := make(map[string]struct{}, len(records))
	for _, rec := range records {
		distinct[rec.StudentID] = struct{}{}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	profiles := make(map[string]*model.User, len(distinct))
	for id := range distinct {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			user, err := s.profiles.GetUserByStudentID(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			profiles[id] = user
		}(id)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return profiles, nil
}

// render writes one CSV row per record. Every field is independently
// defaulted: an unresolvable profile yields "Unknown"/"N/A" and a zero
// timestamp yields "N/A" for both date and time.
func render(records []model.AttendanceRecord, profiles map[string]*model.User) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, rec := range records {
		name, email := "Unknown", "N/A"
		if u := profiles[rec.StudentID]; u != nil {
			if u.Name != "" {
				name = u.Name
			}
			if u.Email != "" {
				email = u.Email
			}
		}
		studentID := rec.StudentID
		if studentID == "" {
			studentID = "N/A"
		}
		date, clock := "N/A", "N/A"
		if !rec.Timestamp.IsZero() {
			date = rec.Timestamp.Format("2006-01-02")
			clock = rec.Timestamp.Format("15:04:05")
		}
		status := rec.Status
		if status == "" {
			status = "N/A"
		}
		sessionID := rec.SessionID
		if sessionID == "" {
			sessionID = "N/A"
		}
		device := rec.DeviceInfo
		if device == "" {
			device = "N/A"
		}
		if err := w.Write([]string{name, studentID, email, date, clock, status, sessionID, device}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func echoBound(t *time.Time) string {
	if t == nil {
		return "All time"
	}
	return t.Format("2006-01-02")
}
