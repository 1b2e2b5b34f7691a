package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/al002/psmoveclient/internal/protocol"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RequestSent(protocol.RequestGetControllerList)
		m.RequestResolved(protocol.ResultOK)
		m.ResponseUnmatched()
		m.Pending(3)
		m.ConnectionLost()
		m.EventReceived(protocol.EventControllerDataFrame)
	})
}

func TestCounters(t *testing.T) {
	m := New()

	m.RequestSent(protocol.RequestSetRumble)
	m.RequestSent(protocol.RequestSetRumble)
	m.RequestResolved(protocol.ResultCanceled)
	m.ResponseUnmatched()
	m.Pending(5)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RequestsSent.WithLabelValues("set_rumble")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsResolved.WithLabelValues("canceled")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResponsesUnmatched))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.RequestsPending))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ConnectionLost()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "psmoveclient_connections_lost_total 1")
}
