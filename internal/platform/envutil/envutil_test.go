package envutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("ENVUTIL_INT", "nope")
	assert.Equal(t, 7, Int("ENVUTIL_INT", 7))
	t.Setenv("ENVUTIL_INT", " 12 ")
	assert.Equal(t, 12, Int("ENVUTIL_INT", 7))
}

func TestDurationAcceptsSecondsAndGoSyntax(t *testing.T) {
	t.Setenv("ENVUTIL_DUR", "90")
	assert.Equal(t, 90*time.Second, Duration("ENVUTIL_DUR", time.Minute))
	t.Setenv("ENVUTIL_DUR", "2h")
	assert.Equal(t, 2*time.Hour, Duration("ENVUTIL_DUR", time.Minute))
	t.Setenv("ENVUTIL_DUR", "")
	assert.Equal(t, time.Minute, Duration("ENVUTIL_DUR", time.Minute))
}

func TestBool(t *testing.T) {
	t.Setenv("ENVUTIL_BOOL", "on")
	assert.True(t, Bool("ENVUTIL_BOOL", false))
	t.Setenv("ENVUTIL_BOOL", "maybe")
	assert.False(t, Bool("ENVUTIL_BOOL", false))
}

func TestFloat64(t *testing.T) {
	t.Setenv("ENVUTIL_FLOAT", "0.25")
	assert.Equal(t, 0.25, Float64("ENVUTIL_FLOAT", 1))
	t.Setenv("ENVUTIL_FLOAT", "half")
	assert.Equal(t, 1.0, Float64("ENVUTIL_FLOAT", 1))
}
