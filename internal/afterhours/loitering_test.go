package afterhours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoiteringTracker_FlagsDwellBeyondThreshold(t *testing.T) {
	tr := NewLoiteringTracker()
	base := time.Now()

	for i := 0; i < 65; i++ {
		tr.Update(1, 100, 100, base.Add(time.Duration(i)*time.Second))
	}
	loiterers := tr.Loiterers(base.Add(65 * time.Second))
	assert.Contains(t, loiterers, 1)
}

func TestLoiteringTracker_ResetsOnMovementBeyondRadius(t *testing.T) {
	tr := NewLoiteringTracker()
	base := time.Now()

	for i := 0; i < 30; i++ {
		tr.Update(1, 100, 100, base.Add(time.Duration(i)*time.Second))
	}
	// Jump well beyond the movement radius, resetting the dwell clock.
	tr.Update(1, 1000, 1000, base.Add(31*time.Second))
	for i := 32; i < 60; i++ {
		tr.Update(1, 1000, 1000, base.Add(time.Duration(i)*time.Second))
	}
	loiterers := tr.Loiterers(base.Add(60 * time.Second))
	assert.NotContains(t, loiterers, 1)
}

func TestLoiteringTracker_ExpiresUnseenEntries(t *testing.T) {
	tr := NewLoiteringTracker()
	base := time.Now()
	for i := 0; i < 65; i++ {
		tr.Update(1, 100, 100, base.Add(time.Duration(i)*time.Second))
	}
	loiterers := tr.Loiterers(base.Add(80 * time.Second))
	assert.Empty(t, loiterers)
}
