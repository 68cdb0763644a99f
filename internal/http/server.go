package http

import (
	"context"
	"net/http"

	"github.com/jmehdipour/sms-ingest/internal/config"
	"github.com/jmehdipour/sms-ingest/internal/http/middleware"
	ingestkafka "github.com/jmehdipour/sms-ingest/internal/kafka"
	"github.com/jmehdipour/sms-ingest/internal/metrics"
	"github.com/jmehdipour/sms-ingest/internal/repository"
	"github.com/jmehdipour/sms-ingest/internal/service/ingest"
	"github.com/jmehdipour/sms-ingest/internal/webhook"
	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

// NewServer wires repositories, the ingestion pipeline, and routes.
// rds and producer may be nil (stats cache / event publishing disabled).
func NewServer(cfg config.Config, mysqlDB *sqlx.DB, rds *redis.Client, producer *ingestkafka.Producer, log *zap.Logger) *Server {
	messagesRepo := repository.NewMessagesRepository(mysqlDB)

	verifier := webhook.NewVerifier(cfg.Webhook.Secret)

	var pub ingest.Publisher
	if producer != nil {
		pub = producer
	}
	ingestSvc := ingest.New(verifier, messagesRepo, pub, log)

	// echo
	e := echo.New()
	e.HideBanner = true
	// Audit sits outside Recover so even a panicking handler gets its record.
	e.Use(middleware.Audit(log), echoMid.Recover())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/health/live", func(c echo.Context) error {
		return c.JSON(http.StatusOK, "live route working fine")
	})
	e.GET("/health/ready", func(c echo.Context) error {
		if !verifier.SecretSet() || messagesRepo.Ready(c.Request().Context()) != nil {
			return c.JSON(http.StatusServiceUnavailable, "error")
		}
		return c.JSON(http.StatusOK, "ready route working fine")
	})

	// routes
	e.POST("/webhook", webhookHandler(ingestSvc))
	e.GET("/messages", listMessagesHandler(messagesRepo))
	e.GET("/stats", statsHandler(messagesRepo, rds, cfg.Stats.CacheTTL))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
