package transcript

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunIDLayout is the time prefix of a run id: hour-minute_day-month-year.
const RunIDLayout = "15-04_02-01-2006"

const runIDSuffix = "_run-"

// NewRunID returns an id such as "14-05_16-10-2026_run-3fa2c1".
func NewRunID(now time.Time) string {
	return now.Format(RunIDLayout) + runIDSuffix + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// ParseRunID returns the local time encoded in a run id.
func ParseRunID(id string) (time.Time, bool) {
	prefix, _, ok := strings.Cut(id, runIDSuffix)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(RunIDLayout, prefix, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
