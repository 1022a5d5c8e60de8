package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestState_Modification(t *testing.T) {
	origSession := State.Session
	origDebug := State.Debug
	origStatusTimer := State.StatusTimer

	defer func() {
		State.Session = origSession
		State.Debug = origDebug
		State.StatusTimer = origStatusTimer
	}()

	State.Session = "nightly"
	State.Debug = true
	State.StatusTimer = 3 * time.Second

	assert.Equal(t, "nightly", State.Session)
	assert.True(t, State.Debug)
	assert.Equal(t, 3*time.Second, State.StatusTimer)
}

func TestActivityConstants(t *testing.T) {
	assert.Equal(t, ActivityStarting, Activity("starting"))
	assert.Equal(t, ActivityLoading, Activity("loading"))
	assert.Equal(t, ActivityAutotuning, Activity("autotuning"))
	assert.Equal(t, ActivityCracking, Activity("cracking"))
	assert.Equal(t, ActivityStopping, Activity("stopping"))
}

func TestActivity_ConcurrentAccess(t *testing.T) {
	defer State.SetActivity("")

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)

		go func() {
			defer wg.Done()
			if i%2 == 0 {
				State.SetActivity(ActivityCracking)
			} else {
				State.SetActivity(ActivityLoading)
			}
		}()

		go func() {
			defer wg.Done()
			_ = State.GetActivity()
		}()
	}

	wg.Wait()

	got := State.GetActivity()
	assert.Contains(t, []Activity{ActivityCracking, ActivityLoading}, got)
}

func TestQuitting(t *testing.T) {
	defer State.SetQuitting(false)

	assert.False(t, State.GetQuitting())
	State.SetQuitting(true)
	assert.True(t, State.GetQuitting())
}

func TestLoggers(t *testing.T) {
	assert.NotNil(t, Logger)
	assert.NotNil(t, ErrorLogger)
}
