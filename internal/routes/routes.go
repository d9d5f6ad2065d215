package routes

import (
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"healthtracker-server/internal/booking"
	"healthtracker-server/internal/config"
	"healthtracker-server/internal/handlers"
	"healthtracker-server/internal/mailer"
	"healthtracker-server/internal/metrics"
	"healthtracker-server/internal/middleware"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/storage"
	"healthtracker-server/internal/utils"
)

// Dependencies is everything the handlers need. Redis may be nil, which
// disables rate limiting.
type Dependencies struct {
	Config  *config.Config
	Store   *repository.Store
	Mailer  mailer.Sender
	Google  utils.GoogleVerifier
	Booking *booking.Service
	Images  storage.Store
	Redis   redis.Cmdable
	Logger  *zap.Logger
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	cfg := deps.Config
	loc := cfg.Location()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.Store, cfg, deps.Mailer, deps.Google, deps.Logger)
	patientHandler := handlers.NewPatientHandler(deps.Store, cfg, deps.Mailer, deps.Logger)
	appointmentHandler := handlers.NewAppointmentHandler(deps.Store, deps.Booking, cfg.Clinic.DoctorID, loc)
	recordHandler := handlers.NewHealthRecordHandler(deps.Store, loc)
	availabilityHandler := handlers.NewAvailabilityHandler(deps.Store)
	notificationHandler := handlers.NewNotificationHandler(deps.Store, cfg.Clinic.NotificationsCap)
	dashboardHandler := handlers.NewDashboardHandler(deps.Store, cfg.Clinic.UpcomingDays)
	profileHandler := handlers.NewProfileHandler(deps.Store, deps.Images, cfg.Clinic.DoctorID, loc, deps.Logger)
	historyHandler := handlers.NewHistoryHandler(deps.Store, loc)

	router.Use(gzip.Gzip(gzip.BestSpeed, gzip.WithExcludedPaths([]string{"/metrics"})))

	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.Redis != nil {
		window := time.Duration(cfg.Redis.RateWindowSec) * time.Second
		limit = middleware.NewRateLimiter(deps.Redis, "ratelimit", cfg.Redis.RateLimit, window, deps.Logger).Middleware()
	}
	auth := middleware.AuthMiddleware(cfg, deps.Store.Identities)

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", limit, authHandler.Register)
		authRoutes.POST("/login", limit, authHandler.Login)
		authRoutes.POST("/forgot-password", limit, authHandler.ForgotPassword)
		authRoutes.POST("/verify-otp", limit, authHandler.VerifyOTP)
		authRoutes.POST("/update-password", limit, authHandler.UpdatePassword)
		authRoutes.POST("/doctor-login", limit, authHandler.DoctorLogin)
		authRoutes.POST("/google-login", authHandler.GoogleLogin)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	// Doctor-only routes
	doctor := router.Group("/doctor")
	doctor.Use(auth, middleware.RoleAuthMiddleware(models.RoleDoctor))
	{
		doctor.GET("/dashboard", dashboardHandler.GetDashboard)

		doctor.POST("/addPatient", patientHandler.AddPatient)
		doctor.GET("/allPatient", patientHandler.GetPatients)
		doctor.GET("/allPatient/:id", patientHandler.GetPatientByID)
		doctor.PUT("/updatePatient/:id", patientHandler.UpdatePatient)
		doctor.POST("/addHistory/:id", patientHandler.AddHistory)
		doctor.POST("/addAppointment/:id", patientHandler.AddAppointment)
		doctor.POST("/addPrescription/:id", patientHandler.AddPrescription)
		doctor.PUT("/updateAppointment/:id/:appointmentId", patientHandler.UpdateAppointment)
		doctor.DELETE("/deleteAppointment/:id/:appointmentId", patientHandler.DeleteAppointment)
		doctor.PUT("/updatePrescription/:id/:prescriptionId", patientHandler.UpdatePrescription)
		doctor.DELETE("/deletePrescription/:id/:prescriptionId", patientHandler.DeletePrescription)

		doctor.POST("/addRecord", recordHandler.CreateHealthRecord)
		doctor.GET("/allRecords", recordHandler.GetHealthRecords)
		doctor.PUT("/updateRecord/:id", recordHandler.UpdateHealthRecord)
		doctor.DELETE("/deleteRecord/:id", recordHandler.DeleteHealthRecord)

		doctor.POST("/setAvailability", availabilityHandler.SetAvailability)
		doctor.GET("/getAvailability", availabilityHandler.GetAvailability)

		doctor.GET("/notifications/:doctorId", notificationHandler.GetNotifications)
		doctor.PATCH("/notifications/:doctorId/:notificationId/read", notificationHandler.MarkRead)
	}

	// Any signed-in user; handlers narrow patients to their own data
	patient := router.Group("/patient")
	patient.Use(auth)
	{
		patient.POST("/bookAppointment", appointmentHandler.BookAppointment)
		patient.GET("/getAppointments", appointmentHandler.GetAppointments)
		patient.PUT("/updateAppointment/:id", appointmentHandler.UpdateAppointment)

		patient.PUT("/updateProfile", profileHandler.UpdateProfile)
		patient.GET("/getProfile", profileHandler.GetProfile)
		patient.GET("/getByAuth", profileHandler.GetByAuth)

		patient.GET("/history/:patientId", historyHandler.GetHistory)
		patient.GET("/history/pdf/:patientId", historyHandler.DownloadPDF)
		patient.GET("/history/excel/:patientId", historyHandler.DownloadExcel)
		patient.GET("/history/image/:patientId", historyHandler.DownloadImage)
	}

	if cfg.Storage.Driver == "local" {
		router.Static("/uploads", cfg.Storage.UploadDir)
	}
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})

	router.NoRoute(func(c *gin.Context) {
		utils.NotFound(c, "Route not found")
	})
}
