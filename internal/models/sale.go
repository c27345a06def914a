package models

import (
	"fmt"
	"time"
)

// Sale is one row of the car sales dataset. Income and price are kept as
// the raw source text; numeric coercion happens where the values are used.
type Sale struct {
	Company      string
	Date         time.Time
	Model        string
	BodyStyle    string
	Gender       string
	AnnualIncome string
	Price        string

	// Derived once at load time.
	Year  int
	Month Month
}

// Month is a calendar month constrained to the fixed January..December order.
type Month int

const (
	January Month = iota
	February
	March
	April
	May
	June
	July
	August
	September
	October
	November
	December
)

// MonthsPerYear is the length of every zero-filled monthly sequence.
const MonthsPerYear = 12

var monthNames = [MonthsPerYear]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthOf maps a time.Month onto the fixed ordering.
func MonthOf(m time.Month) Month {
	return Month(m - time.January)
}

func (m Month) String() string {
	if m < January || m > December {
		return fmt.Sprintf("Month(%d)", int(m))
	}
	return monthNames[m]
}

// MonthNames returns the twelve labels in calendar order.
func MonthNames() []string {
	names := make([]string, MonthsPerYear)
	copy(names, monthNames[:])
	return names
}

// Dimension selects the attribute used by the categorical distribution.
type Dimension string

const (
	DimensionBodyStyle Dimension = "Body Style"
	DimensionGender    Dimension = "Gender"
)

// Dimensions lists the accepted pie dimensions in display order.
func Dimensions() []Dimension {
	return []Dimension{DimensionBodyStyle, DimensionGender}
}

func (d Dimension) Valid() bool {
	return d == DimensionBodyStyle || d == DimensionGender
}

// Value returns the raw category value of s for dimension d.
func (d Dimension) Value(s Sale) string {
	if d == DimensionGender {
		return s.Gender
	}
	return s.BodyStyle
}

// DateInterval is an inclusive range of calendar dates.
type DateInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i DateInterval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}
