package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instafly/instafly/internal/app/config"
	"github.com/instafly/instafly/internal/app/metrics"
)

func newTestFunctionsClient(baseURL string, om *metrics.OrderMetrics) *FunctionsClientImpl {
	return NewFunctionsClient(config.AppConfig{
		FunctionsBaseURL:              baseURL,
		FunctionsAnonKey:              "anon-key",
		FunctionsMaxRequestsPerMinute: 600,
		FunctionsRequestTimeoutSec:    5,
	}, om)
}

func TestFunctionsClientImpl_Invoke(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	om := metrics.NewOrderMetrics(prometheus.NewRegistry())
	fc := newTestFunctionsClient(server.URL, om)

	res, err := fc.Invoke(context.Background(), FnSyncOrderStatus, map[string]string{"order_id": "abc"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Bearer anon-key", gotAuth)
	assert.Equal(t, "/functions/v1/sync-order-status", gotPath)

	assert.Equal(t, 1.0,
		testutil.ToFloat64(om.FunctionInvocationsTotal.WithLabelValues(FnSyncOrderStatus, "ok")))
}

func TestFunctionsClientImpl_InvokeCountsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"success":false,"error":"provider down"}`))
	}))
	defer server.Close()

	om := metrics.NewOrderMetrics(prometheus.NewRegistry())
	fc := newTestFunctionsClient(server.URL, om)

	_, err := fc.Invoke(context.Background(), FnProcessOrder, map[string]string{"order_id": "abc"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "provider down")

	assert.Equal(t, 1.0,
		testutil.ToFloat64(om.FunctionInvocationsTotal.WithLabelValues(FnProcessOrder, "error")))
	assert.Equal(t, 0.0,
		testutil.ToFloat64(om.FunctionInvocationsTotal.WithLabelValues(FnProcessOrder, "ok")))
}
