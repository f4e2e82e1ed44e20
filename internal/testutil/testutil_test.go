package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClockAdvance(t *testing.T) {
	c := NewManualClock()
	assert.Equal(t, BaseTime, c.Now())

	c.Advance(30 * time.Minute)
	assert.Equal(t, BaseTime.Add(30*time.Minute), c.Now())

	c.Set(BaseTime)
	assert.Equal(t, BaseTime, c.Now())
}

func TestSequenceIDGenerator(t *testing.T) {
	g := NewSequenceIDGenerator("wo")

	assert.Equal(t, "wo-001", g.NewID())
	assert.Equal(t, "wo-002", g.NewID())

	g.Reset()
	assert.Equal(t, "wo-001", g.NewID())
}

func TestSequenceIDGeneratorDefaultPrefix(t *testing.T) {
	g := NewSequenceIDGenerator("")
	assert.Equal(t, "id-001", g.NewID())
}
