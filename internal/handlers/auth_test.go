package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthtracker-server/internal/models"
)

type loginData struct {
	Token string                 `json:"token"`
	User  map[string]interface{} `json:"user"`
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"name": "Jane Doe", "email": "Jane@Example.com", "phone": "9876543210", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]interface{}](t, w)
	assert.Equal(t, "jane@example.com", created.Data["email"])
	assert.NotContains(t, created.Data, "password")

	notifications, err := env.store.Notifications.ListRecent(context.Background(), testDoctorID, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, `New patient "Jane Doe" registered with email jane@example.com`, notifications[0].Message)

	w = env.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"name": "Jane Again", "email": "jane@example.com", "phone": "9876543210", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", decode[any](t, w).Message)

	w = env.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "jane@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "jane@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[loginData](t, w)
	assert.NotEmpty(t, login.Data.Token)
	assert.Equal(t, "Jane Doe", login.Data.User["name"])

	cookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, "token="+login.Data.Token)
	assert.Contains(t, cookie, "HttpOnly")
}

func TestRegisterRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]gin.H{
		"short phone":    {"name": "Jane Doe", "email": "jane@example.com", "phone": "12345", "password": "password123"},
		"short password": {"name": "Jane Doe", "email": "jane@example.com", "phone": "9876543210", "password": "short"},
		"bad email":      {"name": "Jane Doe", "email": "not-an-email", "phone": "9876543210", "password": "password123"},
		"missing name":   {"email": "jane@example.com", "phone": "9876543210", "password": "password123"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/auth/register", "", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "Jane Doe", "jane@example.com", "9876543210")

	w := env.do(t, http.MethodPost, "/auth/forgot-password", "", gin.H{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decode[any](t, w).Message)

	// Resetting before any OTP was verified is refused.
	w = env.do(t, http.MethodPost, "/auth/update-password", "", gin.H{
		"email": "jane@example.com", "newPassword": "new-password", "confirmPassword": "new-password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "OTP verification required", decode[any](t, w).Message)

	w = env.do(t, http.MethodPost, "/auth/forgot-password", "", gin.H{"email": "jane@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, 1, env.sender.count())

	identity, err := env.store.Identities.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	require.Len(t, identity.OTP, 6)
	assert.Contains(t, env.sender.sent[0].HTML, identity.OTP)

	wrong := "000000"
	if identity.OTP == wrong {
		wrong = "111111"
	}
	w = env.do(t, http.MethodPost, "/auth/verify-otp", "", gin.H{"email": "jane@example.com", "otp": wrong})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired OTP", decode[any](t, w).Message)

	w = env.do(t, http.MethodPost, "/auth/verify-otp", "", gin.H{"email": "jane@example.com", "otp": identity.OTP})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/auth/update-password", "", gin.H{
		"email": "jane@example.com", "newPassword": "new-password", "confirmPassword": "other-password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Passwords do not match", decode[any](t, w).Message)

	w = env.do(t, http.MethodPost, "/auth/update-password", "", gin.H{
		"email": "jane@example.com", "newPassword": "new-password", "confirmPassword": "new-password",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "jane@example.com", "password": "new-password"})
	assert.Equal(t, http.StatusOK, w.Code)

	// The verification is consumed by the reset.
	w = env.do(t, http.MethodPost, "/auth/update-password", "", gin.H{
		"email": "jane@example.com", "newPassword": "third-password", "confirmPassword": "third-password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyOTPRefusesCorrectCodeAfterTooManyMisses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "Jane Doe", "jane@example.com", "9876543210")

	w := env.do(t, http.MethodPost, "/auth/forgot-password", "", gin.H{"email": "jane@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	identity, err := env.store.Identities.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	code := identity.OTP

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 1; i < models.MaxOTPAttempts; i++ {
		w = env.do(t, http.MethodPost, "/auth/verify-otp", "", gin.H{"email": "jane@example.com", "otp": wrong})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid or expired OTP", decode[any](t, w).Message)
	}
	w = env.do(t, http.MethodPost, "/auth/verify-otp", "", gin.H{"email": "jane@example.com", "otp": wrong})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Too many invalid attempts. Please request a new OTP", decode[any](t, w).Message)

	w = env.do(t, http.MethodPost, "/auth/verify-otp", "", gin.H{"email": "jane@example.com", "otp": code})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/auth/update-password", "", gin.H{
		"email": "jane@example.com", "newPassword": "new-password", "confirmPassword": "new-password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Requesting a new code starts over.
	w = env.do(t, http.MethodPost, "/auth/forgot-password", "", gin.H{"email": "jane@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	identity, err = env.store.Identities.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	w = env.do(t, http.MethodPost, "/auth/verify-otp", "", gin.H{"email": "jane@example.com", "otp": identity.OTP})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestForgotPasswordFailsWhenMailFails(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Jane Doe", "jane@example.com", "9876543210")
	env.sender.err = errors.New("smtp down")

	w := env.do(t, http.MethodPost, "/auth/forgot-password", "", gin.H{"email": "jane@example.com"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to send OTP email", decode[any](t, w).Message)
}

func TestDoctorLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/auth/doctor-login", "", gin.H{"username": "Doctor", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid doctor credentials", decode[any](t, w).Message)

	w = env.do(t, http.MethodPost, "/auth/doctor-login", "", gin.H{"username": "Doctor", "password": "Doctor@1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[loginData](t, w)
	assert.Equal(t, testDoctorID, login.Data.User["id"])
	assert.Equal(t, "doctor", login.Data.User["role"])

	// The doctor token opens doctor routes without an identity row.
	w = env.do(t, http.MethodGet, "/doctor/allPatient", login.Data.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGoogleLoginFindsOrCreatesIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := env.do(t, http.MethodPost, "/auth/google-login", "", gin.H{"token": "google-id-token"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[loginData](t, w)

	identity, err := env.store.Identities.FindByEmail(ctx, "gina@example.com")
	require.NoError(t, err)
	assert.Equal(t, "g-1", identity.GoogleID)
	assert.Equal(t, "Gina Google", identity.Name)
	assert.True(t, identity.Verified)

	w = env.do(t, http.MethodPost, "/auth/google-login", "", gin.H{"token": "google-id-token"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.Data.User["id"], decode[loginData](t, w).Data.User["id"])
}

func TestGoogleLoginRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	h := NewAuthHandler(env.store, env.cfg, env.sender, staticGoogle{err: errors.New("bad signature")}, nil)
	r := gin.New()
	r.POST("/google-login", h.GoogleLogin)
	env.router = r

	w := env.do(t, http.MethodPost, "/google-login", "", gin.H{"token": "forged"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Google login failed", decode[any](t, w).Message)
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, "token=;")
	assert.Contains(t, cookie, "Max-Age=0")
}
