package models

import "time"

// AttendanceRecord is a marked attendance entry. Timestamp is the localized
// human-readable string stored in the sheet cell; Ceremony carries the
// partition base name the record belongs to.
type AttendanceRecord struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Seat      string `json:"seat"`
	Carrera   string `json:"carrera,omitempty"`
	Timestamp string `json:"timestamp"`
	Ceremony  string `json:"ceremony"`
}

// AttendanceList groups a partition's marked records for the listing endpoint.
type AttendanceList struct {
	Count    int                `json:"count"`
	Students []AttendanceRecord `json:"students"`
}

// AuditEntry is one row of the append-only attendance audit trail. The sheet
// cell itself is last-write-wins; the audit log keeps the history the cell
// overwrites.
type AuditEntry struct {
	Ceremony   string    `db:"ceremony"`
	Code       string    `db:"code"`
	Seat       string    `db:"seat"`
	SheetRow   int       `db:"sheet_row"`
	MarkedAt   string    `db:"marked_at"`
	RecordedAt time.Time `db:"recorded_at"`
}
