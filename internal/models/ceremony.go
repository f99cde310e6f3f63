package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Sheet names follow YYYY-MM-DD[-LETTER][-off]. The -off suffix marks a
// ceremony closed for new attendance; renaming the sheet toggles the state.
var sheetNameRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})(?:-([A-Z]))?(-off)?$`)

const (
	sheetDateLayout   = "2006-01-02"
	inactiveSuffix    = "-off"
	selectorLetterMax = 1
)

// Ceremony identifies one graduation ceremony's data set within the workbook.
type Ceremony struct {
	Date   time.Time `json:"-"`
	Letter string    `json:"letter,omitempty"`
	Active bool      `json:"active"`
}

// ParseSheetName interprets a workbook sheet name as a ceremony identifier.
func ParseSheetName(name string) (Ceremony, error) {
	m := sheetNameRe.FindStringSubmatch(name)
	if m == nil {
		return Ceremony{}, fmt.Errorf("sheet name %q does not match YYYY-MM-DD[-LETTER][-off]", name)
	}
	date, err := time.Parse(sheetDateLayout, m[1])
	if err != nil {
		return Ceremony{}, fmt.Errorf("sheet name %q has invalid date: %w", name, err)
	}
	return Ceremony{Date: date, Letter: m[2], Active: m[3] == ""}, nil
}

// BaseName is the ceremony identifier without the state suffix. Events and
// subscriptions are tagged with the base name so the active/inactive rename
// does not change the broadcast partition.
func (c Ceremony) BaseName() string {
	if c.Letter != "" {
		return c.Date.Format(sheetDateLayout) + "-" + c.Letter
	}
	return c.Date.Format(sheetDateLayout)
}

// SheetName is the workbook sheet name including the state suffix.
func (c Ceremony) SheetName() string {
	if c.Active {
		return c.BaseName()
	}
	return c.BaseName() + inactiveSuffix
}

// DateString renders the ceremony date in sheet-name form.
func (c Ceremony) DateString() string {
	return c.Date.Format(sheetDateLayout)
}

// CeremonySelector is the caller-supplied partition selector. Both fields are
// optional: an empty date means "today" and an empty ceremony letter selects
// the unlettered sheet for that date.
type CeremonySelector struct {
	Date     string `form:"date" json:"date"`
	Ceremony string `form:"ceremony" json:"ceremony"`
}

var selectorDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Normalize validates the selector and resolves defaults against now. It is
// pure string work; it must run before any store I/O.
func (s CeremonySelector) Normalize(now time.Time) (date string, letter string, err error) {
	date = strings.TrimSpace(s.Date)
	if date == "" {
		date = now.Format(sheetDateLayout)
	} else {
		if !selectorDateRe.MatchString(date) {
			return "", "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
		}
		if _, perr := time.Parse(sheetDateLayout, date); perr != nil {
			return "", "", fmt.Errorf("invalid date %q: %v", date, perr)
		}
	}

	letter = strings.ToUpper(strings.TrimSpace(s.Ceremony))
	if len(letter) > selectorLetterMax || (letter != "" && (letter[0] < 'A' || letter[0] > 'Z')) {
		return "", "", fmt.Errorf("invalid ceremony %q, expected a single letter", s.Ceremony)
	}

	return date, letter, nil
}

// SheetInfo describes one workbook sheet for the administrative listing.
type SheetInfo struct {
	Name   string `json:"name"`
	Parsed bool   `json:"parsed"`
	Date   string `json:"date,omitempty"`
	Letter string `json:"letter,omitempty"`
	Active bool   `json:"active"`
}
