package obs_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/optica-pos/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("optica", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsUseChiPattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("optica", nil, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/barcodes/{code}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/barcodes/7751234567892", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/barcodes/{code}", "200")))
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "debug")
	handler := obs.RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/pricing/lines", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "http_request", entry["message"])
	require.EqualValues(t, 422, entry["status"])
	require.Equal(t, "/api/v1/pricing/lines", entry["route"])
}

func TestDomainMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("optica_test", registry)

	obs.ObservePricedLine("TAXED", "ok")
	obs.ObserveBarcodeValidation(false)
	obs.ObserveSaleTransition("void", errors.New("already voided"))

	require.Equal(t, float64(1), testutil.ToFloat64(obs.PricingLinesTotal.WithLabelValues("TAXED", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.BarcodeValidationsTotal.WithLabelValues("false")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.SaleTransitionsTotal.WithLabelValues("void", "error")))
}

func TestDomainMetricsExportedByEveryRegistry(t *testing.T) {
	first := prometheus.NewRegistry()
	second := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("optica_test", first)
	obs.MustRegisterDomainMetrics("optica_test", second)

	obs.ObserveBarcodeIssued("reserved")

	for _, reg := range []*prometheus.Registry{first, second} {
		families, err := reg.Gather()
		require.NoError(t, err)
		names := make([]string, 0, len(families))
		for _, mf := range families {
			names = append(names, mf.GetName())
		}
		require.Contains(t, names, "optica_test_barcodes_issued_total")
	}
}
