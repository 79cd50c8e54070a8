package browser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitResult_TimedOut(t *testing.T) {
	assert.False(t, WaitOK.TimedOut())
	assert.True(t, WaitTimedOut.TimedOut())
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, isTimeout(errors.New("pw: Timeout 30000ms exceeded")))
	assert.True(t, isTimeout(errors.New("timeout waiting for selector")))
	assert.False(t, isTimeout(errors.New("net::ERR_NAME_NOT_RESOLVED")))
}

func TestMillis(t *testing.T) {
	got := millis(30 * time.Second)
	assert.Equal(t, float64(30000), *got)
}
