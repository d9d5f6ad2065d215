package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port               string
	AllowedOrigins     []string
	Environment        string
	LogLevel           string
	JWTSecret          string
	JWTExpirationHours int
	Database           DatabaseConfig
	Clinic             ClinicConfig
	Mailer             MailerConfig
	Google             GoogleOAuthConfig
	Redis              RedisConfig
	Storage            StorageConfig
	OTPExpiryMinutes   int
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string // "mysql" or "memory"
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// ClinicConfig describes the single doctor this server books for.
type ClinicConfig struct {
	Timezone         string
	DoctorID         string
	DoctorName       string
	DoctorUsername   string
	DoctorPassword   string
	SlotMinutes      int
	ReminderAt       string
	UpcomingDays     int
	NotificationsCap int
}

// MailerConfig holds email service configuration
type MailerConfig struct {
	Transport      string // "sendgrid", "ses" or "log"
	FromEmail      string
	FromName       string
	SendGridAPIKey string
	AWSRegion      string
}

// GoogleOAuthConfig holds Google sign-in configuration
type GoogleOAuthConfig struct {
	ClientID string
}

// RedisConfig configures the login rate limiter. An empty Addr disables it.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	RateLimit     int
	RateWindowSec int
}

// StorageConfig selects where profile images end up.
type StorageConfig struct {
	Driver    string // "local" or "s3"
	UploadDir string
	PublicURL string
	S3Bucket  string
	AWSRegion string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "healthtracker"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	jwtExpHours, err := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %w", err)
	}

	otpExpiry, err := strconv.Atoi(getEnv("OTP_EXPIRY_MINUTES", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid OTP_EXPIRY_MINUTES: %w", err)
	}

	slotMinutes, err := strconv.Atoi(getEnv("APPOINTMENT_SLOT_MINUTES", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid APPOINTMENT_SLOT_MINUTES: %w", err)
	}

	upcomingDays, err := strconv.Atoi(getEnv("DASHBOARD_UPCOMING_DAYS", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid DASHBOARD_UPCOMING_DAYS: %w", err)
	}

	clinic := ClinicConfig{
		Timezone:         getEnv("CLINIC_TIMEZONE", "Asia/Kolkata"),
		DoctorID:         getEnv("DOCTOR_ID", "7d3c1b6e-3f0a-4b8e-9a51-2f6f0c9d4e10"),
		DoctorName:       getEnv("DOCTOR_NAME", "Dr. Raj Miyani"),
		DoctorUsername:   getEnv("DOCTOR_USERNAME", "Doctor"),
		DoctorPassword:   getEnv("DOCTOR_PASSWORD", "Doctor@1"),
		SlotMinutes:      slotMinutes,
		ReminderAt:       getEnv("REMINDER_AT", "09:00"),
		UpcomingDays:     upcomingDays,
		NotificationsCap: 10,
	}
	if _, err := time.LoadLocation(clinic.Timezone); err != nil {
		return nil, fmt.Errorf("invalid CLINIC_TIMEZONE: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_REQUESTS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS: %w", err)
	}
	rateWindow, err := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW_SECONDS: %w", err)
	}

	awsRegion := getEnv("AWS_REGION", "ap-south-1")

	return &Config{
		Port:               getEnv("PORT", "5000"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		Environment:        getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		JWTSecret:          getEnv("JWT_SECRET", "developer"),
		JWTExpirationHours: jwtExpHours,
		Database:           dbConfig,
		Clinic:             clinic,
		Mailer: MailerConfig{
			Transport:      strings.ToLower(getEnv("MAILER_TRANSPORT", "log")),
			FromEmail:      getEnv("MAILER_FROM_EMAIL", "no-reply@healthtracker.local"),
			FromName:       getEnv("MAILER_FROM_NAME", "Health Tracker"),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			AWSRegion:      awsRegion,
		},
		Google: GoogleOAuthConfig{
			ClientID: getEnv("GOOGLE_CLIENT_ID", ""),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            redisDB,
			RateLimit:     rateLimit,
			RateWindowSec: rateWindow,
		},
		Storage: StorageConfig{
			Driver:    strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
			UploadDir: getEnv("UPLOAD_DIR", "uploads"),
			PublicURL: getEnv("UPLOAD_PUBLIC_URL", "/uploads"),
			S3Bucket:  getEnv("S3_BUCKET", ""),
			AWSRegion: awsRegion,
		},
		OTPExpiryMinutes: otpExpiry,
	}, nil
}

// IsProduction reports whether the server runs with production transport rules.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Location returns the clinic's reference timezone. LoadConfig has already
// rejected unknown zones, so UTC is only a fallback for hand-built configs.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Clinic.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
