package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/psds-microservice/ticket-feed-service/internal/config"
	"github.com/psds-microservice/ticket-feed-service/internal/database"
	"github.com/psds-microservice/ticket-feed-service/internal/handler"
	"github.com/psds-microservice/ticket-feed-service/internal/kafka"
	"github.com/psds-microservice/ticket-feed-service/internal/router"
	"github.com/psds-microservice/ticket-feed-service/internal/service"
	"github.com/psds-microservice/ticket-feed-service/internal/session"
)

// API — приложение режима api: HTTP-поверхность ленты поверх
// менеджера сессий.
type API struct {
	cfg      *config.Config
	httpSrv  *http.Server
	sessions *session.Manager
}

// NewAPI собирает приложение: миграции, БД, слой данных, push-фид,
// менеджер сессий, роутер.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	ticketSvc := service.NewTicketService(db, service.TagMatch(cfg.TagMatch))
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, cfg.KafkaGroupPrefix)
	if len(cfg.KafkaBrokers) == 0 {
		log.Println("application: KAFKA_BROKERS not set, feed runs without push updates")
	}
	sessions := session.NewManager(ticketSvc, consumer, session.Options{
		DeleteBehavior: session.DeleteBehavior(cfg.DeleteBehavior),
	})

	sessionHandler := handler.NewSessionHandler(sessions)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(sessionHandler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// WriteTimeout не задан: SSE-поток живёт, пока открыта сессия.
	}

	return &API{
		cfg:      cfg,
		httpSrv:  httpSrv,
		sessions: sessions,
	}, nil
}

// Run запускает HTTP-сервер, блокируется до отмены ctx.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	log.Printf("HTTP server listening on %s", a.httpSrv.Addr)
	log.Printf("  Swagger UI:    %s/swagger", base)
	log.Printf("  Swagger spec:  %s/swagger/openapi.json", base)
	log.Printf("  Health:        %s/health", base)
	log.Printf("  Ready:         %s/ready", base)
	log.Printf("  API v1:        %s/api/v1/", base)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-ctx.Done()
	a.sessions.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
