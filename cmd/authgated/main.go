// authgated serves the authgate HTTP routes.
//
// Accounts live in sqlite or postgres. Redis, when configured, holds the
// rate-limit counters, the revocation state, and the lifecycle event
// streams. Without Redis the limiter runs per process and refresh is
// refused. Counters are served in Prometheus format on /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/accountstore"
	"github.com/MrEthical07/authgate/events"
	otelexport "github.com/MrEthical07/authgate/metrics/export/otel"
	promexport "github.com/MrEthical07/authgate/metrics/export/prometheus"
	authhttp "github.com/MrEthical07/authgate/transport/http"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn(".env not loaded")
	}

	s, err := parseSettings(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}
	level, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	cfg, err := s.engineConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------- STORES --------
	store, err := accountstore.Open(s.DBDriver, s.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("account store: %w", err)
	}
	defer store.Close()

	builder := authgate.New().
		WithConfig(cfg).
		WithAccountStore(store).
		WithLogger(log.WithField("component", "authgate"))

	var rdb *redis.Client
	if s.RedisURL != "" {
		rdb, err = newRedisClient(s.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.WithError(err).Warn("redis not reachable at startup; limiter will fall back per process")
		}
		cancel()
		builder = builder.WithRedis(rdb)

		streams, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: rdb},
			events.NewLogrusAdapter(log.WithField("component", "events")),
		)
		if err != nil {
			return fmt.Errorf("event publisher: %w", err)
		}
		publisher := events.NewPublisher(streams, s.EventsPrefix)
		defer publisher.Close()
		builder = builder.WithEventPublisher(publisher)
	} else {
		log.Warn("no redis configured: refresh and logout-all are unavailable")
	}

	if s.Audit {
		builder = builder.WithAuditSink(authgate.NewJSONWriterSink(os.Stdout))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	// -------- METRICS --------
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	otelExporter, err := otelexport.NewExporter(provider.Meter("github.com/MrEthical07/authgate"), engine)
	if err != nil {
		return fmt.Errorf("otel exporter: %w", err)
	}
	defer otelExporter.Close()
	if s.OTelInterval > 0 {
		go logCollections(ctx, reader, s.OTelInterval, log.WithField("component", "otel"))
	}

	// -------- HTTP --------
	gin.SetMode(gin.ReleaseMode)
	router, err := authhttp.NewRouter(engine, store, authhttp.Options{
		TrustedProxies: s.TrustedProxies,
		MeMode:         authgate.ModeInherit,
		Logger:         log.WithField("component", "http"),
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promexport.NewExporter(engine).Handler())
	mux.Handle("/", router)

	co := cors.New(cors.Options{
		AllowedOrigins:   s.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              s.Listen,
		Handler:           co.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"listen":          s.Listen,
			"validation_mode": cfg.ValidationMode.String(),
			"rate_limit":      cfg.RateLimit.Enabled,
		}).Info("authgated listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// logCollections pulls from the OpenTelemetry reader on every tick and logs
// the non-zero sums at debug level.
func logCollections(ctx context.Context, reader *sdkmetric.ManualReader, every time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var rm metricdata.ResourceMetrics
		if err := reader.Collect(ctx, &rm); err != nil {
			log.WithError(err).Warn("otel collect failed")
			continue
		}

		fields := logrus.Fields{}
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok || len(sum.DataPoints) == 0 || sum.DataPoints[0].Value == 0 {
					continue
				}
				fields[m.Name] = sum.DataPoints[0].Value
			}
		}
		log.WithFields(fields).Debug("otel collection")
	}
}
