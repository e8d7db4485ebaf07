package intent

import (
	"strings"
	"time"
)

// Urgent reports whether a turn is urgent: it contains an explicit urgency
// marker, or any resolved deadline falls within the near-term threshold of
// now. Intent classification never overrides this flag.
func (t *Tracker) Urgent(text string, deadlines []time.Time, now time.Time) bool {
	lower := strings.ToLower(text)
	for _, marker := range t.opts.UrgencyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, d := range deadlines {
		// Overdue counts as urgent too.
		if d.Sub(now) <= t.opts.NearTermThreshold {
			return true
		}
	}
	return false
}
