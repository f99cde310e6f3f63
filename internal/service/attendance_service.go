package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gradua/ceremonia-api/internal/models"
	"github.com/gradua/ceremonia-api/internal/repository"
	appErrors "github.com/gradua/ceremonia-api/pkg/errors"
	"github.com/gradua/ceremonia-api/pkg/export"
	"github.com/gradua/ceremonia-api/pkg/retry"
)

// Timestamps are stored in the sheet the way ushers read them aloud.
const timestampLayout = "02/01/2006 15:04:05"

type attendanceStore interface {
	Read(ctx context.Context, sheet string) ([][]string, error)
	WriteCell(ctx context.Context, sheet string, row, col int, value string) error
}

type rosterIndex interface {
	Locate(ctx context.Context, sel models.CeremonySelector) (models.Ceremony, error)
	Roster(ctx context.Context, c models.Ceremony) (models.Roster, error)
	Find(ctx context.Context, c models.Ceremony, code string) (models.StudentRecord, error)
	BuildIndex(rows [][]string) models.Roster
}

type eventPublisher interface {
	Publish(event models.AttendanceRecord)
}

type auditSink interface {
	Insert(ctx context.Context, entry models.AuditEntry) error
}

// AttendanceService orchestrates the marking flow: validate, resolve the
// ceremony, look the student up, persist the timestamp with retries, then
// fan the event out to live viewers.
type AttendanceService struct {
	store         attendanceStore
	roster        rosterIndex
	hub           eventPublisher
	audit         auditSink
	retryPolicy   retry.Policy
	attendanceCol int
	loc           *time.Location
	validator     *validator.Validate
	logger        *zap.Logger
	metrics       *MetricsService
	now           func() time.Time
}

// NewAttendanceService constructs the attendance service. audit may be nil
// when the audit trail is disabled.
func NewAttendanceService(store attendanceStore, roster rosterIndex, hub eventPublisher, audit auditSink, policy retry.Policy, attendanceCol int, loc *time.Location, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if attendanceCol <= 0 {
		attendanceCol = colSeatNumber + 1 // column G, 1-based
	}
	return &AttendanceService{
		store:         store,
		roster:        roster,
		hub:           hub,
		audit:         audit,
		retryPolicy:   policy,
		attendanceCol: attendanceCol,
		loc:           loc,
		validator:     validate,
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
	}
}

// MarkAttendanceRequest is the payload for marking one student present.
type MarkAttendanceRequest struct {
	Code     string `json:"code" validate:"required"`
	Date     string `json:"date"`
	Ceremony string `json:"ceremony"`
}

// MarkAttendanceResult reports a confirmed write.
type MarkAttendanceResult struct {
	Success   bool                 `json:"success"`
	Timestamp string               `json:"timestamp"`
	Student   models.StudentRecord `json:"student"`
}

// Mark records attendance for one student. Repeating the call for the same
// student overwrites the timestamp cell; the newest value wins and is the
// one broadcast.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*MarkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	code := NormalizeCode(req.Code)
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student code is required")
	}

	ceremony, err := s.roster.Locate(ctx, models.CeremonySelector{Date: req.Date, Ceremony: req.Ceremony})
	if err != nil {
		return nil, err
	}
	if !ceremony.Active {
		return nil, appErrors.Clone(appErrors.ErrCeremonyInactive,
			fmt.Sprintf("ceremony %s is closed for attendance", ceremony.BaseName()))
	}

	student, err := s.roster.Find(ctx, ceremony, code)
	if err != nil {
		return nil, err
	}

	timestamp := s.now().In(s.loc).Format(timestampLayout)

	attempts := 0
	writeErr := s.retryPolicy.Do(ctx, "attendance write", func() error {
		attempts++
		start := time.Now()
		err := s.store.WriteCell(ctx, ceremony.SheetName(), student.SheetRow, s.attendanceCol, timestamp)
		s.metrics.ObserveSheetWrite(time.Since(start))
		return err
	})
	s.metrics.AddWriteRetries(attempts - 1)
	if writeErr != nil {
		s.logger.Error("attendance write exhausted retries",
			zap.String("ceremony", ceremony.SheetName()),
			zap.String("code", code),
			zap.Int("attempts", attempts),
			zap.Error(writeErr))
		return nil, appErrors.Wrap(writeErr, appErrors.ErrWriteFailed.Code, appErrors.ErrWriteFailed.Status, appErrors.ErrWriteFailed.Message)
	}

	// Past this point the write is durable; audit and broadcast are
	// best-effort and never change the response.
	if s.audit != nil {
		if err := s.audit.Insert(ctx, models.AuditEntry{
			Ceremony: ceremony.BaseName(),
			Code:     code,
			Seat:     student.Seat,
			SheetRow: student.SheetRow,
			MarkedAt: timestamp,
		}); err != nil {
			s.logger.Warn("audit insert failed", zap.String("code", code), zap.Error(err))
		}
	}

	s.hub.Publish(models.AttendanceRecord{
		Code:      student.Code,
		Name:      student.Name,
		Seat:      student.Seat,
		Carrera:   student.Carrera,
		Timestamp: timestamp,
		Ceremony:  ceremony.BaseName(),
	})

	return &MarkAttendanceResult{Success: true, Timestamp: timestamp, Student: student}, nil
}

// List returns the partition's marked attendance, read directly from the
// sheet so the result is always consistent with the ledger.
func (s *AttendanceService) List(ctx context.Context, sel models.CeremonySelector) (*models.AttendanceList, error) {
	ceremony, err := s.roster.Locate(ctx, sel)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.store.Read(ctx, ceremony.SheetName())
	s.metrics.ObserveSheetRead(time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrSheetNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNoCeremony,
				fmt.Sprintf("no ceremony scheduled for %s", ceremony.BaseName()))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to read ceremony sheet")
	}

	index := s.roster.BuildIndex(rows)

	records := make([]models.AttendanceRecord, 0, len(index))
	for _, student := range index {
		row := rows[student.SheetRow-1]
		if len(row) < s.attendanceCol {
			continue
		}
		timestamp := strings.TrimSpace(row[s.attendanceCol-1])
		if timestamp == "" {
			continue
		}
		records = append(records, models.AttendanceRecord{
			Code:      student.Code,
			Name:      student.Name,
			Seat:      student.Seat,
			Carrera:   student.Carrera,
			Timestamp: timestamp,
			Ceremony:  ceremony.BaseName(),
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return index[records[i].Code].SheetRow < index[records[j].Code].SheetRow
	})

	return &models.AttendanceList{Count: len(records), Students: records}, nil
}

// ExportDataset renders the attendance listing as a tabular dataset for the
// CSV/PDF exporters.
func (s *AttendanceService) ExportDataset(ctx context.Context, sel models.CeremonySelector) (export.Dataset, string, error) {
	ceremony, err := s.roster.Locate(ctx, sel)
	if err != nil {
		return export.Dataset{}, "", err
	}
	list, err := s.List(ctx, sel)
	if err != nil {
		return export.Dataset{}, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Codigo", "Nombre", "Carrera", "Asiento", "Hora"},
		Rows:    make([]map[string]string, 0, len(list.Students)),
	}
	title := "asistencia " + ceremony.BaseName()
	for _, record := range list.Students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Codigo":  record.Code,
			"Nombre":  record.Name,
			"Carrera": record.Carrera,
			"Asiento": record.Seat,
			"Hora":    record.Timestamp,
		})
	}
	return dataset, title, nil
}
