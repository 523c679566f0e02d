package monitoring

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordPoll("inbox", nil, 10*time.Millisecond)
	m.RecordPoll("inbox", errors.New("boom"), time.Millisecond)
	m.RecordPollSkipped("inbox", "inactive")
	m.UpdateLookupUnread("a@temp.mail", 3)
	m.RecordNotification("sent")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PollsTotal.WithLabelValues("inbox", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PollsTotal.WithLabelValues("inbox", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PollsSkipped.WithLabelValues("inbox", "inactive")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.LookupUnread.WithLabelValues("a@temp.mail")))

	m.RemoveLookupUnread("a@temp.mail")
	assert.Equal(t, 0, testutil.CollectAndCount(m.LookupUnread))

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "tempmail_client_notifications_total")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPoll("lookup", nil, time.Second)
		m.RecordHTTPRequest("GET", "/", "200", time.Second)
		m.RecordPanic()
		m.UpdateInboxMessages(1)
	})
}
