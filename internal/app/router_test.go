package app_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/optica-pos/internal/app"
	"github.com/noah-isme/optica-pos/internal/barcode"
	"github.com/noah-isme/optica-pos/internal/common"
	"github.com/noah-isme/optica-pos/internal/config"
	"github.com/noah-isme/optica-pos/internal/pricing"
)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                "test",
		HTTPBodyLimitBytes:    1 << 16,
		IGVRate:               pricing.DefaultIGVRate,
		CurrencyCode:          "PEN",
		BarcodePrefix:         barcode.DefaultPrefix,
		BarcodeReservationTTL: time.Hour,
		BarcodeIssueLimit:     100,
		BarcodeIssueWindow:    time.Minute,
		SaleLabTurnaround:     120 * time.Hour,
		SaleLockTTL:           time.Second,
		IdempotencyTTL:        time.Hour,
		RateLimit:             "1000-M",
		Obs: config.ObsConfig{
			MetricsEnabled:   true,
			MetricsNamespace: "optica",
		},
	}
}

func newServer(t *testing.T) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg := prometheus.NewRegistry()
	h, err := app.NewRouter(app.Dependencies{
		Config:     testConfig(),
		Logger:     zerolog.Nop(),
		Redis:      client,
		Registerer: reg,
		Gatherer:   reg,
	})
	require.NoError(t, err)
	return h, mr
}

func send(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPricingScenarioOverHTTP(t *testing.T) {
	h, _ := newServer(t)

	rec := send(h, http.MethodPost, "/api/v1/pricing/lines",
		`{"lines":[{"unitPrice":"100.00","taxCategory":"TAXED","quantity":2,"discountPercent":"10"}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data []pricing.LineView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "200.00", body.Data[0].Subtotal)
	require.Equal(t, "20.00", body.Data[0].DiscountAmount)
	require.Equal(t, "180.00", body.Data[0].NetOfDiscount)
	require.Equal(t, "32.40", body.Data[0].TaxAmount)
	require.Equal(t, "212.40", body.Data[0].LineTotal)
	require.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestBarcodeIssueIsIdempotent(t *testing.T) {
	h, mr := newServer(t)
	headers := map[string]string{common.IdempotencyHeader: "label-batch-1"}

	rec := send(h, http.MethodPost, "/api/v1/barcodes?count=2", "", headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var issued struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.Len(t, issued.Data, 2)
	for _, code := range issued.Data {
		require.True(t, barcode.Validate(code))
		require.True(t, mr.Exists("barcode:reserved:"+code))
	}

	replay := send(h, http.MethodPost, "/api/v1/barcodes?count=2", "", headers)
	require.Equal(t, http.StatusConflict, replay.Code)
	require.Contains(t, replay.Body.String(), "IDEMPOTENT_REPLAY")

	check := send(h, http.MethodGet, "/api/v1/barcodes/"+issued.Data[0], "", nil)
	require.Equal(t, http.StatusOK, check.Code)
	var report struct {
		Data barcode.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(check.Body.Bytes(), &report))
	require.True(t, report.Data.Valid)
	require.True(t, report.Data.Reserved)
}

func TestSaleFlowAndMetrics(t *testing.T) {
	h, _ := newServer(t)

	rec := send(h, http.MethodPost, "/api/v1/sales", `{
		"branch": "lima-centro",
		"customer": {"name": "Luis Rojas", "documentType": "DNI", "documentNumber": "40123456"},
		"lines": [{"unitPrice": "50.00", "taxCategory": "EXEMPT", "quantity": 3}],
		"advance": "150",
		"method": "YAPE"
	}`, map[string]string{common.IdempotencyHeader: "sale-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data struct {
			ID            string `json:"id"`
			PaymentStatus string `json:"paymentStatus"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "PAID", created.Data.PaymentStatus)

	ready := send(h, http.MethodPost, "/api/v1/sales/"+created.Data.ID+"/ready", "", nil)
	require.Equal(t, http.StatusOK, ready.Code, ready.Body.String())
	delivered := send(h, http.MethodPost, "/api/v1/sales/"+created.Data.ID+"/deliver", "", nil)
	require.Equal(t, http.StatusOK, delivered.Code, delivered.Body.String())

	history := send(h, http.MethodGet, "/api/v1/sales/"+created.Data.ID+"/events", "", nil)
	require.Equal(t, http.StatusOK, history.Code, history.Body.String())
	var events struct {
		Data []struct {
			Topic string `json:"topic"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(history.Body.Bytes(), &events))
	require.Len(t, events.Data, 3)
	require.Equal(t, "sale.delivered", events.Data[2].Topic)

	metrics := send(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(), `optica_http_requests_total{method="POST",route="/api/v1/sales/{id}/deliver",status="200"} 1`)
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newServer(t)

	live := send(h, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, live.Code)

	ready := send(h, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, ready.Code)
	var status map[string]string
	require.NoError(t, json.Unmarshal(ready.Body.Bytes(), &status))
	require.Equal(t, "disabled", status["db"])
	require.Equal(t, "ok", status["redis"])
}

func TestBodyLimitApplies(t *testing.T) {
	h, _ := newServer(t)
	big := `{"lines":[{"unitPrice":"1","taxCategory":"TAXED","quantity":1,"discountPercent":"` + strings.Repeat("0", 1<<16) + `"}]}`
	rec := send(h, http.MethodPost, "/api/v1/pricing/lines", big, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNewRouterRequiresConfig(t *testing.T) {
	_, err := app.NewRouter(app.Dependencies{})
	require.Error(t, err)
}
