package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"healthtracker-server/internal/booking"
	"healthtracker-server/internal/config"
	"healthtracker-server/internal/logger"
	"healthtracker-server/internal/mailer"
	"healthtracker-server/internal/metrics"
	"healthtracker-server/internal/middleware"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/routes"
	"healthtracker-server/internal/scheduler"
	"healthtracker-server/internal/storage"
	"healthtracker-server/internal/utils"
)

func main() {
	// Load environment variables; a missing .env is fine outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	zl, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, zl)
	if err != nil {
		return err
	}

	sender, err := mailer.New(ctx, cfg.Mailer, zl)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	images, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	var rdb redis.Cmdable
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			zl.Warn("redis unreachable, rate limiter will fail open", zap.Error(err))
		}
		rdb = client
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	loc := cfg.Location()

	bookingService := booking.NewService(store, booking.NewValidator(loc, time.Now), sender, m, zl, booking.Options{
		DoctorID:   cfg.Clinic.DoctorID,
		DoctorName: cfg.Clinic.DoctorName,
		SlotLength: time.Duration(cfg.Clinic.SlotMinutes) * time.Minute,
	})

	reminders := scheduler.NewReminderJob(store.Appointments, sender, m, zl, loc, cfg.Clinic.ReminderAt)
	if err := reminders.Start(); err != nil {
		return fmt.Errorf("reminder job: %w", err)
	}
	defer reminders.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(middleware.Recovery(zl), middleware.RequestLogger(zl), m.Middleware())
	router.Use(middleware.RequireHTTPS(cfg.IsProduction()))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Dependencies{
		Config:  cfg,
		Store:   store,
		Mailer:  sender,
		Google:  utils.IDTokenVerifier{ClientID: cfg.Google.ClientID},
		Booking: bookingService,
		Images:  images,
		Redis:   rdb,
		Logger:  zl,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("port", cfg.Port), zap.String("env", cfg.Environment), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore picks the repository backend from DB_DRIVER.
func openStore(cfg *config.Config, zl *zap.Logger) (*repository.Store, error) {
	switch cfg.Database.Driver {
	case "memory":
		zl.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), nil
	case "mysql", "":
		db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		return repository.NewGormStore(db), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Database.Driver)
	}
}
