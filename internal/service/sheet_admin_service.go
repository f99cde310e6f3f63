package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gradua/ceremonia-api/internal/models"
	appErrors "github.com/gradua/ceremonia-api/pkg/errors"
)

type sheetAdminStore interface {
	ListSheets(ctx context.Context) ([]string, error)
	RenameSheet(ctx context.Context, oldName, newName string) error
}

// SheetAdminService exposes the administrative partition operations: listing
// known ceremonies and toggling the active-state suffix via sheet rename.
type SheetAdminService struct {
	store     sheetAdminStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSheetAdminService constructs the admin service.
func NewSheetAdminService(store sheetAdminStore, validate *validator.Validate, logger *zap.Logger) *SheetAdminService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SheetAdminService{store: store, validator: validate, logger: logger}
}

// List returns every workbook sheet with parsed ceremony metadata.
// Unparseable sheet names are reported raw rather than hidden, so stray
// tabs in the workbook stay visible to operators.
func (s *SheetAdminService) List(ctx context.Context) ([]models.SheetInfo, error) {
	sheets, err := s.store.ListSheets(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list ceremonies")
	}

	infos := make([]models.SheetInfo, 0, len(sheets))
	for _, name := range sheets {
		c, perr := models.ParseSheetName(name)
		if perr != nil {
			infos = append(infos, models.SheetInfo{Name: name, Parsed: false})
			continue
		}
		infos = append(infos, models.SheetInfo{
			Name:   name,
			Parsed: true,
			Date:   c.DateString(),
			Letter: c.Letter,
			Active: c.Active,
		})
	}
	return infos, nil
}

// SetSheetStateRequest toggles a ceremony's active flag.
type SetSheetStateRequest struct {
	Date     string `json:"date" validate:"required"`
	Ceremony string `json:"ceremony"`
	Active   *bool  `json:"active" validate:"required"`
}

// SetState renames the ceremony sheet to carry or drop the inactive suffix.
// Already being in the requested state is a no-op, not an error.
func (s *SheetAdminService) SetState(ctx context.Context, req SetSheetStateRequest) (*models.SheetInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	sel := models.CeremonySelector{Date: req.Date, Ceremony: req.Ceremony}
	date, letter, err := sel.Normalize(time.Now())
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	sheets, err := s.store.ListSheets(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list ceremonies")
	}

	for _, name := range sheets {
		c, perr := models.ParseSheetName(name)
		if perr != nil {
			continue
		}
		if c.DateString() != date || c.Letter != letter {
			continue
		}

		if c.Active == *req.Active {
			info := sheetInfo(c)
			return &info, nil
		}

		target := c
		target.Active = *req.Active
		if err := s.store.RenameSheet(ctx, c.SheetName(), target.SheetName()); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to update ceremony state")
		}
		s.logger.Info("ceremony state changed",
			zap.String("ceremony", target.BaseName()), zap.Bool("active", target.Active))
		info := sheetInfo(target)
		return &info, nil
	}

	base := date
	if letter != "" {
		base = date + "-" + letter
	}
	return nil, appErrors.Clone(appErrors.ErrNoCeremony, fmt.Sprintf("no ceremony scheduled for %s", base))
}

func sheetInfo(c models.Ceremony) models.SheetInfo {
	return models.SheetInfo{
		Name:   c.SheetName(),
		Parsed: true,
		Date:   c.DateString(),
		Letter: c.Letter,
		Active: c.Active,
	}
}
