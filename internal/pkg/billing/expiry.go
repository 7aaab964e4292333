package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/SubsPortal/app/models"
)

// ExpiryDate computes when a subscription bought at start runs out. Unknown
// units and non-positive values fall back to one day.
func ExpiryDate(start time.Time, value int, unit string) time.Time {
	if value <= 0 {
		return start.AddDate(0, 0, 1)
	}
	switch strings.ToUpper(strings.TrimSpace(unit)) {
	case models.DURATION_HOUR:
		return start.Add(time.Duration(value) * time.Hour)
	case models.DURATION_DAY:
		return start.AddDate(0, 0, value)
	case models.DURATION_WEEK:
		return start.AddDate(0, 0, 7*value)
	case models.DURATION_MONTH:
		return start.AddDate(0, value, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}
