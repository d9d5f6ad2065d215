package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthtracker-server/internal/booking"
	"healthtracker-server/internal/config"
	"healthtracker-server/internal/mailer"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/storage"
	"healthtracker-server/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, rdb redis.Cmdable) (*gin.Engine, string) {
	t.Helper()
	uploads := t.TempDir()
	cfg := &config.Config{
		JWTSecret:          "test-secret",
		JWTExpirationHours: 1,
		OTPExpiryMinutes:   5,
		Clinic: config.ClinicConfig{
			Timezone:         "UTC",
			DoctorID:         "7d3c1b6e-3f0a-4b8e-9a51-2f6f0c9d4e10",
			DoctorName:       "Dr. Raj Miyani",
			DoctorUsername:   "Doctor",
			DoctorPassword:   "Doctor@1",
			UpcomingDays:     15,
			NotificationsCap: 10,
		},
		Redis:   config.RedisConfig{RateLimit: 2, RateWindowSec: 60},
		Storage: config.StorageConfig{Driver: "local", UploadDir: uploads, PublicURL: "/uploads"},
	}
	store := repository.NewMemoryStore()
	logger := zap.NewNop()
	sender := mailer.NewLogSender(logger)
	images, err := storage.NewLocalStore(uploads, "/uploads")
	require.NoError(t, err)

	r := gin.New()
	SetupRoutes(r, Dependencies{
		Config:  cfg,
		Store:   store,
		Mailer:  sender,
		Google:  utils.IDTokenVerifier{},
		Booking: booking.NewService(store, booking.NewValidator(time.UTC, time.Now), sender, nil, logger, booking.Options{DoctorID: cfg.Clinic.DoctorID, DoctorName: cfg.Clinic.DoctorName}),
		Images:  images,
		Redis:   rdb,
		Logger:  logger,
	})
	return r, uploads
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInfrastructureRoutes(t *testing.T) {
	r, uploads := newRouter(t, nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, os.MkdirAll(filepath.Join(uploads, "profiles"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "profiles", "p1.jpg"), []byte("jpeg"), 0o644))
	w = serve(r, httptest.NewRequest(http.MethodGet, "/uploads/profiles/p1.jpg", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg", w.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	r, _ := newRouter(t, nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/no/such/thing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp utils.ResponseData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Route not found", resp.Message)
}

func TestProtectedGroups(t *testing.T) {
	r, _ := newRouter(t, nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/doctor/dashboard", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/patient/getProfile", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/doctor/dashboard", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDoctorLoginThenDashboard(t *testing.T) {
	r, _ := newRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/doctor-login", strings.NewReader(`{"username":"Doctor","password":"Doctor@1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The login cookie alone authenticates the next request.
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	req = httptest.NewRequest(http.MethodGet, "/doctor/dashboard", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLoginIsRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	r, _ := newRouter(t, rdb)

	login := func() int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"jane@example.com","password":"password123"}`))
		req.Header.Set("Content-Type", "application/json")
		return serve(r, req).Code
	}
	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusTooManyRequests, login())

	// Each route has its own budget, and the OTP routes are limited too.
	verify := func() int {
		req := httptest.NewRequest(http.MethodPost, "/auth/verify-otp", strings.NewReader(`{"email":"jane@example.com","otp":"123456"}`))
		req.Header.Set("Content-Type", "application/json")
		return serve(r, req).Code
	}
	assert.Equal(t, http.StatusNotFound, verify())
	assert.Equal(t, http.StatusNotFound, verify())
	assert.Equal(t, http.StatusTooManyRequests, verify())

	req := httptest.NewRequest(http.MethodPost, "/auth/update-password", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, serve(r, req).Code)

	// Routes without a limiter are unaffected.
	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestResponsesAreCompressed(t *testing.T) {
	r, _ := newRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}
