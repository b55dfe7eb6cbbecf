// Package engagement computes staleness annotations over discussion
// snapshots. Nothing here persists; results are recomputed on every
// call and intended for UI annotation only.
package engagement

import (
	"time"

	"github.com/classpulse/classpulse/backend/internal/models"
)

// InactivityThreshold is how long a discussion may sit without
// top-level activity before it counts as inactive.
const InactivityThreshold = 24 * time.Hour

// DetectInactive returns the ids of discussions that have gone quiet:
// last activity more than the threshold ago AND at least one top-level
// reply. A discussion nobody ever replied to is dormant, not inactive.
func DetectInactive(discussions []*models.Discussion, now time.Time) map[string]struct{} {
	inactive := make(map[string]struct{})
	for _, d := range discussions {
		if d == nil || d.IsDeleted {
			continue
		}
		if len(d.ReplyIDs) == 0 {
			continue
		}
		if now.Sub(d.LastActivity) > InactivityThreshold {
			inactive[d.ID] = struct{}{}
		}
	}
	return inactive
}

// Annotate sets the Inactive flag on each discussion in place and
// returns how many were inactive.
func Annotate(discussions []*models.Discussion, now time.Time) int {
	inactive := DetectInactive(discussions, now)
	for _, d := range discussions {
		if d == nil {
			continue
		}
		_, d.Inactive = inactive[d.ID]
	}
	return len(inactive)
}
