package store

import (
	"fmt"
	"strings"
	"time"
)

// FormatTicketNumber renders the human-readable daily ticket number, e.g.
// sequence 7 issued on August 29 becomes "AUG29-07". The sequence widens
// past two digits rather than wrapping.
func FormatTicketNumber(day time.Time, sequence int64) string {
	return fmt.Sprintf("%s-%02d", strings.ToUpper(day.Format("Jan02")), sequence)
}
