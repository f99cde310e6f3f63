package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gradua/ceremonia-api/internal/models"
	"github.com/gradua/ceremonia-api/internal/repository"
	"github.com/gradua/ceremonia-api/pkg/config"
	appErrors "github.com/gradua/ceremonia-api/pkg/errors"
)

// Sheet column layout, 0-based. Columns A..F are shared by both seat
// policies; direct sheets carry the assigned seat number in column G.
const (
	colCode = iota
	colNombres
	colApellidos
	colCarrera
	colBloque
	colFila
	colSeatNumber
)

type rosterStore interface {
	Read(ctx context.Context, sheet string) ([][]string, error)
	ListSheets(ctx context.Context) ([]string, error)
}

// RosterService builds the per-ceremony student index from sheet rows and
// resolves partition selectors against the workbook's sheet list. Indexes
// are ephemeral read-throughs of the sheet, optionally held in a bounded-TTL
// cache; the workbook stays the only durable truth.
type RosterService struct {
	store       rosterStore
	cache       *CacheService
	seatPolicy  string
	seatsPerRow int
	cacheTTL    time.Duration
	loc         *time.Location
	logger      *zap.Logger
	metrics     *MetricsService
	now         func() time.Time
}

// NewRosterService constructs the roster service. cache may be nil.
func NewRosterService(store rosterStore, cache *CacheService, workbook config.WorkbookConfig, roster config.RosterConfig, loc *time.Location, logger *zap.Logger, metrics *MetricsService) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	seats := workbook.SeatsPerRow
	if seats <= 0 {
		seats = 21
	}
	return &RosterService{
		store:       store,
		cache:       cache,
		seatPolicy:  workbook.SeatPolicy,
		seatsPerRow: seats,
		cacheTTL:    roster.CacheTTL,
		loc:         loc,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Locate resolves a partition selector to a ceremony, consulting the
// workbook's sheet list. Selector validation happens before any store
// access; an empty date defaults to today in the display timezone.
func (s *RosterService) Locate(ctx context.Context, sel models.CeremonySelector) (models.Ceremony, error) {
	date, letter, err := sel.Normalize(s.now().In(s.loc))
	if err != nil {
		return models.Ceremony{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	sheets, err := s.store.ListSheets(ctx)
	if err != nil {
		return models.Ceremony{}, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list ceremonies")
	}

	for _, name := range sheets {
		c, perr := models.ParseSheetName(name)
		if perr != nil {
			continue
		}
		if c.DateString() == date && c.Letter == letter {
			return c, nil
		}
	}

	base := date
	if letter != "" {
		base = date + "-" + letter
	}
	return models.Ceremony{}, appErrors.Clone(appErrors.ErrNoCeremony, fmt.Sprintf("no ceremony scheduled for %s", base))
}

// Roster returns the student index for a ceremony, from cache when fresh
// enough, otherwise rebuilt from the sheet.
func (s *RosterService) Roster(ctx context.Context, c models.Ceremony) (models.Roster, error) {
	key := "roster:" + c.SheetName()
	if s.cache.Enabled() {
		var cached models.Roster
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	start := time.Now()
	rows, err := s.store.Read(ctx, c.SheetName())
	s.metrics.ObserveSheetRead(time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrSheetNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNoCeremony, fmt.Sprintf("no ceremony scheduled for %s", c.BaseName()))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to read ceremony sheet")
	}

	roster := s.BuildIndex(rows)
	s.logger.Debug("roster built",
		zap.String("sheet", c.SheetName()), zap.Int("students", len(roster)))

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, key, roster, s.cacheTTL)
	}
	return roster, nil
}

// Find looks a student up by code within a ceremony.
func (s *RosterService) Find(ctx context.Context, c models.Ceremony, code string) (models.StudentRecord, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return models.StudentRecord{}, appErrors.Clone(appErrors.ErrValidation, "student code is required")
	}

	roster, err := s.Roster(ctx, c)
	if err != nil {
		return models.StudentRecord{}, err
	}

	record, ok := roster[normalized]
	if !ok {
		return models.StudentRecord{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", normalized))
	}
	return record, nil
}

// BuildIndex parses sheet rows into the code-keyed index. The header row is
// skipped; short rows, rows without a code and rows with a non-numeric fila
// are tolerated and skipped. Duplicate codes keep the last row, but every
// valid row still advances the per-(block,row) seat counter.
func (s *RosterService) BuildIndex(rows [][]string) models.Roster {
	required := colFila + 1
	if s.seatPolicy == config.SeatPolicyDirect {
		required = colSeatNumber + 1
	}

	counters := make(map[string]int)
	roster := make(models.Roster)

	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < required {
			continue
		}

		code := NormalizeCode(row[colCode])
		if code == "" {
			continue
		}

		fila, err := strconv.Atoi(strings.TrimSpace(row[colFila]))
		if err != nil {
			continue
		}
		block := strings.ToUpper(strings.TrimSpace(row[colBloque]))

		var seatNumber int
		if s.seatPolicy == config.SeatPolicyDirect {
			seatNumber, err = strconv.Atoi(strings.TrimSpace(row[colSeatNumber]))
			if err != nil {
				continue
			}
		} else {
			counterKey := block + "-" + strconv.Itoa(fila)
			counters[counterKey]++
			seatNumber = (fila-1)*s.seatsPerRow + counters[counterKey]
		}

		name := strings.TrimSpace(strings.TrimSpace(row[colNombres]) + " " + strings.TrimSpace(row[colApellidos]))

		roster[code] = models.StudentRecord{
			Code:       code,
			Name:       name,
			Carrera:    strings.TrimSpace(row[colCarrera]),
			Block:      block,
			Row:        fila,
			SeatNumber: seatNumber,
			Seat:       fmt.Sprintf("%s-%d", block, seatNumber),
			// Slice index i is 0-based with the header at 0, so the
			// workbook's 1-based row for this student is i+1.
			SheetRow: i + 1,
		}
	}

	return roster
}

// NormalizeCode canonicalises a student code: trimmed and lowercased.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
