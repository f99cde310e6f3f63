package models

// StudentRecord is one graduate parsed from a ceremony sheet. Records are
// rebuilt from the workbook on every read; the workbook remains the only
// durable truth.
type StudentRecord struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Carrera    string `json:"carrera"`
	Block      string `json:"block"`
	Row        int    `json:"row"`
	SeatNumber int    `json:"seatNumber"`
	Seat       string `json:"seat"`
	// SheetRow is the 1-based workbook row backing this record, the write
	// target for the attendance timestamp.
	SheetRow int `json:"sheetRow"`
}

// Roster maps a normalized student code to its record.
type Roster map[string]StudentRecord
