package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthtracker-server/internal/booking"
	"healthtracker-server/internal/config"
	"healthtracker-server/internal/mailer"
	"healthtracker-server/internal/middleware"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testSecret   = "test-secret"
	testDoctorID = "7d3c1b6e-3f0a-4b8e-9a51-2f6f0c9d4e10"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type memImages struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func (m *memImages) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts[key] = data
	return "https://cdn.test/" + key, nil
}

type staticGoogle struct {
	profile *utils.GoogleProfile
	err     error
}

func (g staticGoogle) Verify(context.Context, string) (*utils.GoogleProfile, error) {
	return g.profile, g.err
}

type testEnv struct {
	router *gin.Engine
	store  *repository.Store
	cfg    *config.Config
	sender *recordingSender
	images *memImages
	loc    *time.Location
}

// Sunday 1 March 2026, 08:00 in the clinic zone.
func clinicNow(loc *time.Location) time.Time {
	return time.Date(2026, 3, 1, 8, 0, 0, 0, loc)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:          testSecret,
		JWTExpirationHours: 1,
		OTPExpiryMinutes:   5,
		Clinic: config.ClinicConfig{
			Timezone:         "Asia/Kolkata",
			DoctorID:         testDoctorID,
			DoctorName:       "Dr. Raj Miyani",
			DoctorUsername:   "Doctor",
			DoctorPassword:   "Doctor@1",
			UpcomingDays:     15,
			NotificationsCap: 10,
		},
	}
	env := &testEnv{
		store:  repository.NewMemoryStore(),
		cfg:    cfg,
		sender: &recordingSender{},
		images: &memImages{puts: make(map[string][]byte)},
		loc:    loc,
	}
	now := func() time.Time { return clinicNow(loc) }
	logger := zap.NewNop()
	google := staticGoogle{profile: &utils.GoogleProfile{Subject: "g-1", Email: "gina@example.com", Name: "Gina Google"}}

	authHandler := NewAuthHandler(env.store, cfg, env.sender, google, logger)
	authHandler.Now = now
	patientHandler := NewPatientHandler(env.store, cfg, env.sender, logger)
	patientHandler.Now = now
	svc := booking.NewService(env.store, booking.NewValidator(loc, now), env.sender, nil, logger, booking.Options{
		DoctorID:   testDoctorID,
		DoctorName: cfg.Clinic.DoctorName,
	})
	appointmentHandler := NewAppointmentHandler(env.store, svc, testDoctorID, loc)
	recordHandler := NewHealthRecordHandler(env.store, loc)
	availabilityHandler := NewAvailabilityHandler(env.store)
	notificationHandler := NewNotificationHandler(env.store, cfg.Clinic.NotificationsCap)
	notificationHandler.Now = now
	dashboardHandler := NewDashboardHandler(env.store, cfg.Clinic.UpcomingDays)
	dashboardHandler.Now = now
	profileHandler := NewProfileHandler(env.store, env.images, testDoctorID, loc, logger)
	profileHandler.Now = now
	historyHandler := NewHistoryHandler(env.store, loc)
	historyHandler.Now = now

	r := gin.New()
	a := r.Group("/auth")
	a.POST("/register", authHandler.Register)
	a.POST("/login", authHandler.Login)
	a.POST("/logout", authHandler.Logout)
	a.POST("/forgot-password", authHandler.ForgotPassword)
	a.POST("/verify-otp", authHandler.VerifyOTP)
	a.POST("/update-password", authHandler.UpdatePassword)
	a.POST("/doctor-login", authHandler.DoctorLogin)
	a.POST("/google-login", authHandler.GoogleLogin)

	auth := middleware.AuthMiddleware(cfg, env.store.Identities)
	d := r.Group("/doctor", auth, middleware.RoleAuthMiddleware(models.RoleDoctor))
	d.GET("/dashboard", dashboardHandler.GetDashboard)
	d.POST("/addPatient", patientHandler.AddPatient)
	d.GET("/allPatient", patientHandler.GetPatients)
	d.GET("/allPatient/:id", patientHandler.GetPatientByID)
	d.PUT("/updatePatient/:id", patientHandler.UpdatePatient)
	d.POST("/addHistory/:id", patientHandler.AddHistory)
	d.POST("/addAppointment/:id", patientHandler.AddAppointment)
	d.POST("/addPrescription/:id", patientHandler.AddPrescription)
	d.PUT("/updateAppointment/:id/:appointmentId", patientHandler.UpdateAppointment)
	d.DELETE("/deleteAppointment/:id/:appointmentId", patientHandler.DeleteAppointment)
	d.PUT("/updatePrescription/:id/:prescriptionId", patientHandler.UpdatePrescription)
	d.DELETE("/deletePrescription/:id/:prescriptionId", patientHandler.DeletePrescription)
	d.POST("/addRecord", recordHandler.CreateHealthRecord)
	d.GET("/allRecords", recordHandler.GetHealthRecords)
	d.PUT("/updateRecord/:id", recordHandler.UpdateHealthRecord)
	d.DELETE("/deleteRecord/:id", recordHandler.DeleteHealthRecord)
	d.POST("/setAvailability", availabilityHandler.SetAvailability)
	d.GET("/getAvailability", availabilityHandler.GetAvailability)
	d.GET("/notifications/:doctorId", notificationHandler.GetNotifications)
	d.PATCH("/notifications/:doctorId/:notificationId/read", notificationHandler.MarkRead)

	p := r.Group("/patient", auth)
	p.POST("/bookAppointment", appointmentHandler.BookAppointment)
	p.GET("/getAppointments", appointmentHandler.GetAppointments)
	p.PUT("/updateAppointment/:id", appointmentHandler.UpdateAppointment)
	p.PUT("/updateProfile", profileHandler.UpdateProfile)
	p.GET("/getProfile", profileHandler.GetProfile)
	p.GET("/getByAuth", profileHandler.GetByAuth)
	p.GET("/history/:patientId", historyHandler.GetHistory)
	p.GET("/history/pdf/:patientId", historyHandler.DownloadPDF)
	p.GET("/history/excel/:patientId", historyHandler.DownloadExcel)
	p.GET("/history/image/:patientId", historyHandler.DownloadImage)

	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doctorToken(t *testing.T) string {
	t.Helper()
	tok, err := utils.GenerateToken(testDoctorID, models.RoleDoctor, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

// register creates an identity through the API and returns a patient token.
func (e *testEnv) register(t *testing.T, name, email, phone string) (string, *models.Identity) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"name": name, "email": email, "phone": phone, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	identity, err := e.store.Identities.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	tok, err := utils.GenerateToken(identity.ID, models.RolePatient, testSecret, time.Hour)
	require.NoError(t, err)
	return tok, identity
}

// envelope mirrors utils.ResponseData with a typed payload.
type envelope[T any] struct {
	Success bool                `json:"success"`
	Status  int                 `json:"status"`
	Message string              `json:"message"`
	Data    T                   `json:"data"`
	Error   string              `json:"error"`
	Fields  []models.FieldError `json:"fields"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}
