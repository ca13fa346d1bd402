package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchObserve(t *testing.T) {
	c := NewCollector(5*time.Second, time.Second)

	c.FetchObserve("trips", 10*time.Millisecond, nil)
	c.FetchObserve("trips", 10*time.Millisecond, errors.New("boom"))
	c.FetchObserve("stations", 10*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Fetches.WithLabelValues("trips")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FetchErrors.WithLabelValues("trips")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.FetchErrors.WithLabelValues("stations")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.PollInterval))
}

func TestSetVisibleAndActions(t *testing.T) {
	c := NewCollector(5*time.Second, time.Second)

	c.SetVisible(3, 2, 1)
	c.NotificationInc("match")
	c.ActionObserve("start_trip", nil)
	c.ActionObserve("start_trip", errors.New("rejected"))

	assert.Equal(t, 3.0, testutil.ToFloat64(c.VisibleDrivers))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.VisibleRoutes))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Notifications.WithLabelValues("match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Actions.WithLabelValues("start_trip", "error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector(5*time.Second, time.Second)
	c.TickObserve(time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tripviz_tick_duration_seconds")
}
