package catalog

import (
	"strconv"
	"time"
)

// SeatCount is one row of the "Registration Availability" table, Remaining
// goes negative when a section is over-enrolled.
type SeatCount struct {
	Capacity  int `json:"capacity"`
	Actual    int `json:"actual"`
	Remaining int `json:"remaining"`
}

// Course is a single scheduled section of a course, keyed by its CRN.
type Course struct {
	ID       int64     `json:"id"`
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	Credits  float64   `json:"credits"`
	Seats    SeatCount `json:"seats"`
	Waitlist SeatCount `json:"waitlist"`

	// Restrictions and Prerequisites are nil when the page carries no such clause.
	Restrictions  *string `json:"restrictions"`
	Prerequisites *string `json:"prerequisites"`

	// LastUpdated is stamped by the store when the course is written.
	LastUpdated time.Time `json:"last_updated"`
}

// Key is the course id as used for document keys.
func (c Course) Key() string {
	return strconv.FormatInt(c.ID, 10)
}
