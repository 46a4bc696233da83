package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"

	"github.com/bookwell/scheduling-core/internal/client"
	"github.com/bookwell/scheduling-core/internal/config"
	"github.com/bookwell/scheduling-core/internal/database"
	"github.com/bookwell/scheduling-core/internal/handlers"
	"github.com/bookwell/scheduling-core/internal/middleware"
	"github.com/bookwell/scheduling-core/internal/realtime"
	"github.com/bookwell/scheduling-core/internal/repository"
	"github.com/bookwell/scheduling-core/internal/service"
	"github.com/bookwell/scheduling-core/internal/subscribers"
	"github.com/bookwell/scheduling-core/pkg/events"
	"github.com/bookwell/scheduling-core/pkg/logger"
	"github.com/bookwell/scheduling-core/pkg/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		appLogger.Fatal("failed to connect to database", "error", err)
	}
	if err := database.Migrate(db); err != nil {
		appLogger.Fatal("failed to run database migrations", "error", err)
	}

	redisClient, err := database.ConnectRedis(cfg.Redis)
	if err != nil {
		appLogger.Fatal("failed to connect to redis", "error", err)
	}
	if redisClient == nil {
		appLogger.Warn("no redis URL configured, falling back to in-process cache")
	}

	natsConn, js, eventPublisher := connectBus(cfg, appLogger)
	if natsConn != nil {
		defer natsConn.Close()
	}

	meetingTypeRepo := repository.NewMeetingTypeRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	holdRepo := repository.NewHoldRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	signingClient := client.NewSigningClient(cfg.Signing, appLogger)

	availabilityService := service.NewAvailabilityService(meetingTypeRepo, availabilityRepo, cfg.Hold.MinLeadTime, appLogger)
	holdService := service.NewHoldService(holdRepo, meetingTypeRepo, documentRepo, signingClient, eventPublisher, cfg.Hold.TTL, appLogger)
	bookingService := service.NewBookingService(db, bookingRepo, holdRepo, meetingTypeRepo, documentRepo, eventPublisher, appLogger)
	webhookService := service.NewWebhookService(webhookRepo, documentRepo, cacheRepo, eventPublisher, cfg.Webhook.SharedSecret, cfg.Environment == "development", appLogger)

	gateway := realtime.NewGateway(appLogger)
	emailDispatcher := subscribers.NewEmailDispatcher(eventPublisher, appLogger)

	if js != nil {
		eventSubscriber := events.NewSubscriber(js, eventPublisher, appLogger)
		if err := setupEventSubscribers(context.Background(), eventSubscriber, gateway, emailDispatcher); err != nil {
			appLogger.Fatal("failed to set up event subscribers", "error", err)
		}
	} else {
		appLogger.Warn("skipping event subscribers (no bus connection)")
	}

	cronScheduler := scheduler.New(holdService, cfg.Hold.SweepInterval, appLogger)
	if err := cronScheduler.Start(); err != nil {
		appLogger.Fatal("failed to start background scheduler", "error", err)
	}
	defer cronScheduler.Stop()

	bookingHandler := handlers.NewBookingHandler(availabilityService, holdService, bookingService, appLogger)
	webhookHandler := handlers.NewWebhookHandler(webhookService, appLogger)
	realtimeHandler := handlers.NewRealtimeHandler(gateway, appLogger)
	healthHandler := handlers.NewHealthHandler(db, redisClient, js, appLogger)

	router := buildRouter(cfg, appLogger, bookingHandler, webhookHandler, realtimeHandler, healthHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("starting scheduling core", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down scheduling core")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Fatal("server forced to shutdown", "error", err)
	}

	appLogger.Info("scheduling core stopped")
}

// connectBus opens the NATS connection and JetStream context. A failure to
// connect never aborts startup in development, mirroring the teacher's
// optional-collaborator pattern for every external dependency but the
// primary database: the publisher degrades to a logged no-op and the bus
// consumers are simply skipped.
func connectBus(cfg *config.Config, appLogger *logger.Logger) (*nats.Conn, jetstream.JetStream, *events.Publisher) {
	conn, err := events.Connect(cfg.Bus)
	if err != nil {
		if cfg.Environment == "development" {
			appLogger.Warn("failed to connect to event bus, continuing without it", "error", err)
			return nil, nil, events.NewNullPublisher(appLogger)
		}
		appLogger.Fatal("failed to connect to event bus", "error", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		appLogger.Fatal("failed to open jetstream context", "error", err)
	}

	if err := events.EnsureStreams(context.Background(), js); err != nil {
		appLogger.Fatal("failed to ensure event streams", "error", err)
	}

	return conn, js, events.NewPublisher(js, appLogger)
}

// setupEventSubscribers wires the Realtime Gateway's fan-out and the
// email dispatcher onto durable consumers (spec §4.4/§4.5). Each consumer
// is durable and independently acked, so a slow or crashed realtime
// gateway never blocks email delivery or vice versa.
func setupEventSubscribers(ctx context.Context, subscriber *events.Subscriber, gateway *realtime.Gateway, emailDispatcher *subscribers.EmailDispatcher) error {
	realtimeSubjects := []struct {
		stream  string
		subject string
	}{
		{events.StreamBookings, events.SlotHeldEvent},
		{events.StreamBookings, events.SlotReleasedEvent},
		{events.StreamBookings, events.BookingConfirmedEvent},
	}
	for _, s := range realtimeSubjects {
		opts := events.ConsumerOptions{
			Stream:        s.stream,
			Durable:       "realtime-gateway-" + sanitizeDurableName(s.subject),
			FilterSubject: s.subject,
			DeliverPolicy: jetstream.DeliverNewPolicy,
		}
		if err := subscriber.Subscribe(ctx, opts, gateway.HandleBusEvent(s.subject)); err != nil {
			return fmt.Errorf("failed to subscribe realtime gateway to %s: %w", s.subject, err)
		}
	}

	if err := subscriber.Subscribe(ctx, events.ConsumerOptions{
		Stream:        events.StreamBookings,
		Durable:       "email-dispatcher-booking-confirmed",
		FilterSubject: events.BookingConfirmedEvent,
	}, emailDispatcher.HandleBookingConfirmed); err != nil {
		return fmt.Errorf("failed to subscribe email dispatcher to %s: %w", events.BookingConfirmedEvent, err)
	}

	if err := subscriber.Subscribe(ctx, events.ConsumerOptions{
		Stream:        events.StreamDocuments,
		Durable:       "email-dispatcher-nda-signed",
		FilterSubject: events.NdaSignedEvent,
	}, emailDispatcher.HandleNdaSigned); err != nil {
		return fmt.Errorf("failed to subscribe email dispatcher to %s: %w", events.NdaSignedEvent, err)
	}

	return nil
}

func sanitizeDurableName(subject string) string {
	out := make([]byte, len(subject))
	for i := 0; i < len(subject); i++ {
		if subject[i] == '.' {
			out[i] = '-'
		} else {
			out[i] = subject[i]
		}
	}
	return string(out)
}

func buildRouter(
	cfg *config.Config,
	appLogger *logger.Logger,
	bookingHandler *handlers.BookingHandler,
	webhookHandler *handlers.WebhookHandler,
	realtimeHandler *handlers.RealtimeHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging(appLogger))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/health/live", healthHandler.Live)

	general := middleware.RateLimiter("general", cfg.RateLimit.GeneralPerMinute, appLogger)
	holdLimit := middleware.RateLimiter("hold", cfg.RateLimit.HoldsPerMinute, appLogger)

	book := router.Group("/book/:slug", general)
	{
		book.GET("", bookingHandler.GetMeetingType)
		book.GET("/slots", bookingHandler.GetSlots)
		book.POST("/hold", holdLimit, bookingHandler.CreateHold)
		book.GET("/hold/:id", bookingHandler.GetHold)
		book.DELETE("/hold/:id", bookingHandler.ReleaseHold)
		book.POST("/confirm", bookingHandler.ConfirmBooking)
	}

	router.GET("/realtime/slots/:meetingTypeId", general, realtimeHandler.StreamSlots)
	router.POST("/webhooks/signwell", webhookHandler.HandleSignwell)

	return router
}
