package engine

import (
	"fmt"
	"strings"

	"patrimonio/internal/core"
)

// DayError is a failure writing one day's snapshot.
type DayError struct {
	Date core.Date
	Err  error
}

// RangeError reports which days of a recalculation could not be written.
// The other days of the range were still processed and remain valid; callers
// may simply re-invoke Recalculate for the failed dates, since every per-day
// write is idempotent.
type RangeError struct {
	OwnerID string
	Days    []DayError
}

func (e *RangeError) Error() string {
	dates := make([]string, len(e.Days))
	for i, d := range e.Days {
		dates[i] = d.Date.String()
	}
	return fmt.Sprintf("recalculation for owner %s failed on %d day(s): %s",
		e.OwnerID, len(e.Days), strings.Join(dates, ", "))
}

// FailedDates returns the dates whose snapshots were not written, oldest first.
func (e *RangeError) FailedDates() []core.Date {
	dates := make([]core.Date, len(e.Days))
	for i, d := range e.Days {
		dates[i] = d.Date
	}
	return dates
}
