package stats

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsUpdater(t *testing.T) {
	su := NewStatsUpdater()
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	assert.NotNil(t, su.vars.Get(MessagesSent), "expected default metrics to be registered")
}

func TestIncrDecr(t *testing.T) {
	su := NewStatsUpdater()
	su.Run()
	defer su.Stop()

	su.Incr(MessagesSent)
	su.Incr(MessagesSent)
	su.Incr(PendingMessages)
	su.Decr(PendingMessages)

	assert.Eventually(t, func() bool {
		return su.vars.Get(MessagesSent).String() == "2" &&
			su.vars.Get(PendingMessages).String() == "0"
	}, time.Second, 5*time.Millisecond, "expected counters to settle")
}

func TestHandler(t *testing.T) {
	su := NewStatsUpdater()

	rec := httptest.NewRecorder()
	su.Handler()(rec, httptest.NewRequest("GET", "/debug/vars", nil))

	var data map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data), "expected JSON body")
	assert.Contains(t, data, MessagesSent, "expected counters in debug output")
}
