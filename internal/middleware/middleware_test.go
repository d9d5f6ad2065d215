package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthtracker-server/internal/config"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const secret = "test-secret"

type authFixture struct {
	router   *gin.Engine
	identity *models.Identity
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	identity := &models.Identity{Name: "Jane Doe", Email: "jane@example.com", Phone: "9876543210"}
	require.NoError(t, identity.SetPassword("password123"))
	require.NoError(t, store.Identities.Create(context.Background(), identity))

	cfg := &config.Config{JWTSecret: secret}
	r := gin.New()
	protected := r.Group("/", AuthMiddleware(cfg, store.Identities))
	protected.GET("/me", func(c *gin.Context) {
		id, _ := GetUserIDFromContext(c)
		role, _ := GetUserRoleFromContext(c)
		_, hasIdentity := GetIdentityFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role, "identity": hasIdentity})
	})
	protected.GET("/doctor", RoleAuthMiddleware(models.RoleDoctor), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return &authFixture{router: r, identity: identity}
}

func (f *authFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, subject string, role models.Role, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.GenerateToken(subject, role, secret, ttl)
	require.NoError(t, err)
	return tok
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp utils.ResponseData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Message
}

func TestAuthTokenSources(t *testing.T) {
	f := newAuthFixture(t)
	tok := token(t, f.identity.ID, models.RolePatient, time.Hour)

	cookie := httptest.NewRequest(http.MethodGet, "/me", nil)
	cookie.AddCookie(&http.Cookie{Name: TokenCookie, Value: tok})

	bearer := httptest.NewRequest(http.MethodGet, "/me", nil)
	bearer.Header.Set("Authorization", "Bearer "+tok)

	raw := httptest.NewRequest(http.MethodGet, "/me", nil)
	raw.Header.Set("Authorization", tok)

	query := httptest.NewRequest(http.MethodGet, "/me?token="+tok, nil)

	for name, req := range map[string]*http.Request{"cookie": cookie, "bearer": bearer, "raw header": raw, "query": query} {
		t.Run(name, func(t *testing.T) {
			w := f.do(req)
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"id":"`+f.identity.ID+`","role":"patient","identity":true}`, w.Body.String())
		})
	}
}

func TestAuthCookieWinsOverHeader(t *testing.T) {
	f := newAuthFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token(t, f.identity.ID, models.RolePatient, time.Hour)})
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusOK, f.do(req).Code)
}

func TestAuthFailures(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Access Denied. No token provided.", message(t, w))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = f.do(req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid or expired token. Please login again.", message(t, w))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, f.identity.ID, models.RolePatient, -time.Minute))
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "deleted-user", models.RolePatient, time.Hour))
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}

func TestDoctorTokenSkipsIdentityLookup(t *testing.T) {
	f := newAuthFixture(t)
	tok := token(t, "7d3c1b6e-3f0a-4b8e-9a51-2f6f0c9d4e10", models.RoleDoctor, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/doctor", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusNoContent, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/doctor", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, f.identity.ID, models.RolePatient, time.Hour))
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)
}

func TestRequireHTTPS(t *testing.T) {
	r := gin.New()
	r.Use(RequireHTTPS(true))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "http://clinic.example.com/x?a=1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://clinic.example.com/x?a=1", w.Header().Get("Location"))

	req.Header.Set("X-Forwarded-Proto", "https")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	dev := gin.New()
	dev.Use(RequireHTTPS(false))
	dev.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	dev.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRateLimiter(client, "rl", 2, time.Minute, nil)

	r := gin.New()
	r.POST("/auth/login", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		return w
	}

	assert.Equal(t, http.StatusOK, hit().Code)
	assert.Equal(t, http.StatusOK, hit().Code)
	w := hit()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	mr.FastForward(61 * time.Second)
	assert.Equal(t, http.StatusOK, hit().Code)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	limiter := NewRateLimiter(client, "rl", 1, time.Minute, zap.NewNop())
	mr.Close()

	r := gin.New()
	r.POST("/auth/login", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Server Error", message(t, w))
}
