package engagement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/classpulse/classpulse/backend/internal/models"
)

func discussionWithActivity(id string, age time.Duration, replies int, now time.Time) *models.Discussion {
	d := &models.Discussion{
		ID:           id,
		LastActivity: now.Add(-age),
	}
	for i := 0; i < replies; i++ {
		d.ReplyIDs.Append("r")
	}
	return d
}

func TestDetectInactiveThreshold(t *testing.T) {
	now := time.Now().UTC()
	discussions := []*models.Discussion{
		discussionWithActivity("stale", 25*time.Hour, 1, now),
		discussionWithActivity("fresh", 23*time.Hour, 1, now),
		discussionWithActivity("never-replied", 30*time.Hour, 0, now),
	}

	inactive := DetectInactive(discussions, now)

	assert.Contains(t, inactive, "stale")
	assert.NotContains(t, inactive, "fresh")
	assert.NotContains(t, inactive, "never-replied")
}

func TestDetectInactiveSkipsDeleted(t *testing.T) {
	now := time.Now().UTC()
	d := discussionWithActivity("gone", 48*time.Hour, 3, now)
	d.IsDeleted = true

	inactive := DetectInactive([]*models.Discussion{d}, now)
	assert.Empty(t, inactive)
}

func TestAnnotate(t *testing.T) {
	now := time.Now().UTC()
	discussions := []*models.Discussion{
		discussionWithActivity("a", 26*time.Hour, 2, now),
		discussionWithActivity("b", 1*time.Hour, 2, now),
	}

	count := Annotate(discussions, now)

	assert.Equal(t, 1, count)
	assert.True(t, discussions[0].Inactive)
	assert.False(t, discussions[1].Inactive)
}

func TestAnnotateExactThresholdIsActive(t *testing.T) {
	now := time.Now().UTC()
	d := discussionWithActivity("edge", InactivityThreshold, 1, now)

	count := Annotate([]*models.Discussion{d}, now)

	// Inactivity requires strictly more than the threshold
	assert.Equal(t, 0, count)
	assert.False(t, d.Inactive)
}
