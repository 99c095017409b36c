// Package app assembles the HTTP API from its modules.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/optica-pos/internal/barcode"
	"github.com/noah-isme/optica-pos/internal/common"
	"github.com/noah-isme/optica-pos/internal/config"
	"github.com/noah-isme/optica-pos/internal/events"
	"github.com/noah-isme/optica-pos/internal/health"
	"github.com/noah-isme/optica-pos/internal/lock"
	"github.com/noah-isme/optica-pos/internal/obs"
	"github.com/noah-isme/optica-pos/internal/pricing"
	"github.com/noah-isme/optica-pos/internal/ratelimit"
	"github.com/noah-isme/optica-pos/internal/resilience"
	"github.com/noah-isme/optica-pos/internal/sale"
	"github.com/noah-isme/optica-pos/internal/security"
)

// Dependencies are the shared clients the router is built from. DB and
// Redis are optional: without them sales live in memory and reservations,
// locks and rate-limit counters stay process-local.
type Dependencies struct {
	Config         *config.Config
	Logger         zerolog.Logger
	DB             *pgxpool.Pool
	Redis          *redis.Client
	Registerer     prometheus.Registerer
	Gatherer       prometheus.Gatherer
	TracingEnabled bool
	Now            func() time.Time
}

// NewRouter wires every module and returns the root handler.
func NewRouter(deps Dependencies) (http.Handler, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	logger := deps.Logger
	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, deps.Registerer)
		resilience.MustRegisterMetrics(cfg.Obs.MetricsNamespace, deps.Registerer)
	}

	pricer, err := pricing.New(cfg.IGVRate)
	if err != nil {
		return nil, fmt.Errorf("pricer: %w", err)
	}
	gen, err := barcode.NewGenerator(cfg.BarcodePrefix, nil)
	if err != nil {
		return nil, fmt.Errorf("barcode generator: %w", err)
	}
	registry := &barcode.Registry{
		Client:    deps.Redis,
		Generator: gen,
		TTL:       cfg.BarcodeReservationTTL,
		Breaker: resilience.NewBreaker(5, 0.5, 30*time.Second).
			WithTarget("redis.barcodes").
			WithLogger(logger),
		Logger: logger.With().Str("component", "barcode").Logger(),
	}

	var (
		store      sale.Store   = sale.NewMemoryStore()
		eventStore events.Store = events.NewMemoryStore()
	)
	if deps.DB != nil {
		store = sale.NewPGStore(deps.DB)
		eventStore = events.NewPGStore(deps.DB)
	}
	eventLog := logger.With().Str("component", "events").Logger()
	bus := &events.Bus{
		Store: eventStore,
		Notifiers: []events.Notifier{events.NotifierFunc(func(_ context.Context, ev events.Event) error {
			eventLog.Debug().Str("topic", ev.Topic).Str("sale_id", ev.AggregateID.String()).Msg("sale event")
			return nil
		})},
		Now: deps.Now,
	}
	var locker sale.Locker
	if deps.Redis != nil {
		locker = lock.Locker{Client: deps.Redis, Prefix: "lock:"}
	}
	saleSvc, err := sale.NewService(sale.ServiceConfig{
		Store:         store,
		Pricer:        pricer,
		Locker:        locker,
		LockTTL:       cfg.SaleLockTTL,
		LabTurnaround: cfg.SaleLabTurnaround,
		Events:        bus,
		Logger:        logger.With().Str("component", "sale").Logger(),
		Now:           deps.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("sale service: %w", err)
	}

	apiLimiter, err := ratelimit.NewFixed(cfg.RateLimit, deps.Redis, "ratelimit:api")
	if err != nil {
		return nil, err
	}
	onLimiterError := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	issueLimiter := ratelimit.Handler{
		Limiter: ratelimit.Sliding{
			Client: deps.Redis,
			Prefix: "ratelimit:barcodes:",
			Window: cfg.BarcodeIssueWindow,
			Max:    cfg.BarcodeIssueLimit,
		},
		OnError: onLimiterError,
	}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}

	pricingHandler := pricing.NewHandler(pricing.HandlerConfig{Pricer: pricer, Currency: cfg.CurrencyCode})
	barcodeHandler := barcode.NewHandler(barcode.HandlerConfig{Registry: registry})
	saleHandler := sale.NewHandler(sale.HandlerConfig{Service: saleSvc})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if deps.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Obs.MetricsEnabled {
		buckets := obs.ParseBucketsCSV(cfg.Obs.MetricsBucketsMS)
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, buckets, deps.Registerer)}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", common.IdempotencyHeader},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)

	if cfg.Obs.MetricsEnabled {
		gatherer := deps.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug", protectPprof(middleware.Profiler(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{Checks: []health.Check{
		{Name: "db", Probe: dbProbe(deps.DB), Timeout: cfg.Obs.ReadyDBTimeout},
		{Name: "redis", Probe: redisProbe(deps.Redis), Timeout: cfg.Obs.ReadyRedisTimeout},
	}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(ratelimit.Handler{Limiter: apiLimiter, OnError: onLimiterError}.Middleware)
		v.Use(security.BodyLimit{Max: cfg.HTTPBodyLimitBytes}.Middleware)

		v.Route("/pricing", func(p chi.Router) {
			p.Post("/lines", pricingHandler.Lines)
			p.Post("/cart", pricingHandler.Cart)
		})

		v.Route("/barcodes", func(b chi.Router) {
			b.With(issueLimiter.Middleware, idem.Middleware).Post("/", barcodeHandler.Issue)
			b.Post("/check-digit", barcodeHandler.ComputeCheckDigit)
			b.Get("/{code}", barcodeHandler.Inspect)
		})

		v.Route("/sales", func(s chi.Router) {
			s.Get("/", saleHandler.List)
			s.Get("/{id}", saleHandler.Get)
			s.Get("/{id}/events", saleHandler.History)
			s.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", saleHandler.Create)
				g.Post("/{id}/payments", saleHandler.RegisterPayment)
				g.Post("/{id}/lab", saleHandler.SendToLab)
				g.Post("/{id}/ready", saleHandler.MarkReady)
				g.Post("/{id}/deliver", saleHandler.MarkDelivered)
				g.Post("/{id}/void", saleHandler.Void)
			})
		})
	})

	return r, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func dbProbe(pool *pgxpool.Pool) health.Probe {
	if pool == nil {
		return nil
	}
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

func redisProbe(client *redis.Client) health.Probe {
	if client == nil {
		return nil
	}
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}
