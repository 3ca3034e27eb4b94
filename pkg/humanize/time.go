// Package humanize formats times for terminal output.
package humanize

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Time returns a relative time for times within 5 hours of now, and a fixed
// format for anything older.
func Time(t, now time.Time) string {
	if now.Sub(t) > 5*time.Hour {
		return t.Format("Jan 2, 2006 15:04")
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
