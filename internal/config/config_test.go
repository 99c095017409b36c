package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/optica-pos/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":           "",
		"REDIS_URL":              "",
		"PRICING_IGV_RATE":       "",
		"BARCODE_COUNTRY_PREFIX": "",
		"RATE_LIMIT":             "",
		"SALE_LAB_TURNAROUND":    "",
		"PORT":                   "",
	})
	require.NoError(t, err)
	require.Equal(t, "0.18", cfg.IGVRate.String())
	require.Equal(t, "775", cfg.BarcodePrefix)
	require.Equal(t, "300-M", cfg.RateLimit)
	require.Equal(t, 120*time.Hour, cfg.SaleLabTurnaround)
	require.Empty(t, cfg.DatabaseURL)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"PRICING_IGV_RATE":       "0.10",
		"BARCODE_COUNTRY_PREFIX": "779",
		"SALE_LOCK_TTL":          "3s",
		"CORS_ALLOWED_ORIGINS":   "https://pos.example.pe, https://admin.example.pe",
		"OBS_ENABLE_PROMETHEUS":  "false",
		"PORT":                   ":9090",
	})
	require.NoError(t, err)
	require.Equal(t, "0.1", cfg.IGVRate.String())
	require.Equal(t, "779", cfg.BarcodePrefix)
	require.Equal(t, 3*time.Second, cfg.SaleLockTTL)
	require.Equal(t, []string{"https://pos.example.pe", "https://admin.example.pe"}, cfg.CORSAllowedOrigins)
	require.False(t, cfg.Obs.MetricsEnabled)
	require.Equal(t, ":9090", cfg.HTTPAddr())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"rate not a number": {"PRICING_IGV_RATE": "abc"},
		"rate negative":     {"PRICING_IGV_RATE": "-0.18"},
		"rate percent":      {"PRICING_IGV_RATE": "18"},
		"prefix short":      {"BARCODE_COUNTRY_PREFIX": "77"},
		"prefix letters":    {"BARCODE_COUNTRY_PREFIX": "7a5"},
		"rate limit":        {"RATE_LIMIT": "fast"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.LoadForTests(env)
			require.Error(t, err)
		})
	}
}
