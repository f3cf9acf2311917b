package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/clover-relay/internal/checkout"
	"github.com/noah-isme/clover-relay/internal/clover"
	"github.com/noah-isme/clover-relay/internal/common"
	"github.com/noah-isme/clover-relay/internal/config"
	"github.com/noah-isme/clover-relay/internal/health"
	"github.com/noah-isme/clover-relay/internal/obs"
	"github.com/noah-isme/clover-relay/internal/ratelimit"
	"github.com/noah-isme/clover-relay/internal/security"
	"github.com/noah-isme/clover-relay/internal/voice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "relay")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", false)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "clover-relay",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		if tracingEnabled {
			if err := redisotel.InstrumentTracing(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis tracing")
			}
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	cloverClient := &clover.Client{
		ClientID:     cfg.CloverClientID,
		ClientSecret: cfg.CloverClientSecret,
		TokenURL:     cfg.CloverTokenURL,
		APIBase:      cfg.CloverAPIBase,
		HTTPClient:   clover.NewHTTPClient(cfg.UpstreamTimeout),
	}

	oauthHandler := &clover.OAuthHandler{
		Client:       cloverClient,
		AuthorizeURL: cfg.AuthorizeURL(),
		RedirectURI:  cfg.CloverRedirectURI,
		Logger:       logger,
	}
	webhookHandler := clover.WebhookHandler{Logger: logger}

	checkoutSvc := &checkout.Service{
		Clover:      cloverClient,
		Currency:    cfg.CheckoutCurrency,
		RedirectURL: cfg.CheckoutRedirect,
		Logger:      logger,
	}
	checkoutHandler := checkout.NewHandler(checkoutSvc)

	incomingHandler := voice.IncomingHandler{PublicHost: cfg.PublicHost, Logger: logger}
	bridge := voice.NewBridge(logger)

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.RateLimit).Msg("parse rate limit")
	}
	limiter.OnError = func(err error) {
		logger.Error().Err(err).Msg("rate limiter store error")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key"},
		MaxAge:         300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{}
	r.Get("/health", healthHandler.Live)

	r.Route("/clover", func(c chi.Router) {
		c.Get("/oauth/start", oauthHandler.Start)
		c.Get("/oauth/callback", oauthHandler.Callback)
		c.Group(func(g chi.Router) {
			g.Use(limiter.Middleware)
			g.Use(security.BodyLimit{Max: cfg.BodyMaxBytes}.Middleware)
			g.Post("/webhook", webhookHandler.Handle)
		})
	})

	r.Group(func(g chi.Router) {
		g.Use(limiter.Middleware)
		g.Use(security.BodyLimit{Max: cfg.BodyMaxBytes}.Middleware)
		g.Use(idem.Middleware)
		g.Post("/orders/checkout", checkoutHandler.Checkout)
	})

	r.Post("/voice/incoming", incomingHandler.Handle)
	r.Get(voice.StreamPath, bridge.HandleStream)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}
