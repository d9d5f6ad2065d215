package handlers

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"healthtracker-server/internal/config"
	"healthtracker-server/internal/mailer"
	"healthtracker-server/internal/middleware"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Store  *repository.Store
	Cfg    *config.Config
	Mailer mailer.Sender
	Google utils.GoogleVerifier
	Logger *zap.Logger
	Now    func() time.Time
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store *repository.Store, cfg *config.Config, sender mailer.Sender, google utils.GoogleVerifier, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{Store: store, Cfg: cfg, Mailer: sender, Google: google, Logger: logger, Now: time.Now}
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required,len=10,numeric"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register handles account registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return // Error response handled by BindAndValidate
	}

	identity := &models.Identity{
		Name:  strings.TrimSpace(req.Name),
		Email: req.Email,
		Phone: req.Phone,
	}
	if err := identity.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}

	if err := h.Store.Identities.Create(c.Request.Context(), identity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			utils.BadRequest(c, "User already exists")
			return
		}
		fail(c, err, "Failed to create user")
		return
	}

	msg := fmt.Sprintf("New patient %q registered with email %s", identity.Name, identity.Email)
	if err := h.Store.Notifications.Create(c.Request.Context(), models.NewNotification(h.Cfg.Clinic.DoctorID, msg)); err != nil {
		h.Logger.Warn("registration notification failed", zap.String("identity_id", identity.ID), zap.Error(err))
	}

	utils.Created(c, "Registered successfully", identity.Sanitize())
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	Token string      `json:"token"`
	User  interface{} `json:"user"`
}

// Login handles login with e-mail and password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	identity, err := h.Store.Identities.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Unauthorized(c, "Invalid email or password")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if !identity.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	token, err := h.issueToken(c, identity.ID, models.RolePatient)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate token: "+err.Error())
		return
	}

	utils.Success(c, "Login successful", LoginResponse{Token: token, User: identity.Sanitize()})
}

// issueToken signs a token and sets it as an HTTP-only cookie.
func (h *AuthHandler) issueToken(c *gin.Context, subject string, role models.Role) (string, error) {
	ttl := time.Duration(h.Cfg.JWTExpirationHours) * time.Hour
	token, err := utils.GenerateToken(subject, role, h.Cfg.JWTSecret, ttl)
	if err != nil {
		return "", err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		middleware.TokenCookie, // Name
		token,                  // Value
		int(ttl.Seconds()),     // Max age in seconds
		"/",                    // Path
		"",                     // Domain (empty means current domain)
		h.Cfg.IsProduction(),   // Secure
		true,                   // HTTP only
	)
	return token, nil
}

// Logout clears the token cookie. Bearer tokens stay valid until expiry.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", h.Cfg.IsProduction(), true)
	utils.Success(c, "Logged out successfully", nil)
}

// ForgotPasswordRequest starts the OTP reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword e-mails a one-time code.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()

	identity, err := h.Store.Identities.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	code, err := utils.GenerateOTP()
	if err != nil {
		utils.InternalServerError(c, err.Error())
		return
	}
	ttl := time.Duration(h.Cfg.OTPExpiryMinutes) * time.Minute
	identity.IssueOTP(code, h.Now(), ttl)
	if err := h.Store.Identities.Save(ctx, identity); err != nil {
		fail(c, err, "Failed to store OTP")
		return
	}

	msg, err := mailer.OTPMessage(identity.Email, code, ttl)
	if err == nil {
		err = h.Mailer.Send(ctx, msg)
	}
	if err != nil {
		h.Logger.Error("otp email failed", zap.String("to", identity.Email), zap.Error(err))
		utils.InternalServerError(c, "Failed to send OTP email")
		return
	}

	utils.Success(c, "OTP sent to email", nil)
}

// VerifyOTPRequest checks a reset code.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

// VerifyOTP accepts a valid code and allows one password reset.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()

	identity, err := h.Store.Identities.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	verifyErr := identity.VerifyOTP(req.OTP, h.Now())
	if verifyErr != nil && !errors.Is(verifyErr, models.ErrOTPInvalid) && !errors.Is(verifyErr, models.ErrOTPExhausted) {
		utils.BadRequest(c, "Invalid or expired OTP")
		return
	}
	// Misses are saved too so the attempt count survives between requests.
	if err := h.Store.Identities.Save(ctx, identity); err != nil {
		fail(c, err, "Failed to verify OTP")
		return
	}
	switch {
	case errors.Is(verifyErr, models.ErrOTPExhausted):
		h.Logger.Warn("otp attempts exhausted", zap.String("identity_id", identity.ID))
		utils.BadRequest(c, "Too many invalid attempts. Please request a new OTP")
		return
	case verifyErr != nil:
		utils.BadRequest(c, "Invalid or expired OTP")
		return
	}

	utils.Success(c, "OTP verified successfully", nil)
}

// UpdatePasswordRequest completes the reset flow.
type UpdatePasswordRequest struct {
	Email           string `json:"email" binding:"required,email"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// UpdatePassword sets a new password once the OTP was verified.
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req UpdatePasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		utils.BadRequest(c, "Passwords do not match")
		return
	}
	ctx := c.Request.Context()

	identity, err := h.Store.Identities.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if err := identity.ResetPassword(req.NewPassword); err != nil {
		if errors.Is(err, models.ErrResetNotAllowed) {
			utils.BadRequest(c, "OTP verification required")
			return
		}
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}
	if err := h.Store.Identities.Save(ctx, identity); err != nil {
		fail(c, err, "Failed to update password")
		return
	}

	utils.Success(c, "Password updated successfully", nil)
}

// DoctorLoginRequest carries the configured doctor credentials.
type DoctorLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// DoctorProfile is returned on doctor login.
type DoctorProfile struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
}

// DoctorLogin signs in the single clinic doctor.
func (h *AuthHandler) DoctorLogin(c *gin.Context) {
	var req DoctorLoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	clinic := h.Cfg.Clinic
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(clinic.DoctorUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(clinic.DoctorPassword)) == 1
	if !userOK || !passOK {
		utils.Unauthorized(c, "Invalid doctor credentials")
		return
	}

	token, err := h.issueToken(c, clinic.DoctorID, models.RoleDoctor)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate token: "+err.Error())
		return
	}

	utils.Success(c, "Doctor logged in successfully", LoginResponse{
		Token: token,
		User:  DoctorProfile{ID: clinic.DoctorID, Username: clinic.DoctorUsername, Name: clinic.DoctorName, Role: models.RoleDoctor},
	})
}

// GoogleLoginRequest carries a Google Sign-In ID token.
type GoogleLoginRequest struct {
	Token string `json:"token" binding:"required"`
}

// GoogleLogin signs in with Google, creating the identity on first use.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req GoogleLoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()

	profile, err := h.Google.Verify(ctx, req.Token)
	if err != nil {
		h.Logger.Info("google login rejected", zap.Error(err))
		utils.BadRequest(c, "Google login failed")
		return
	}

	identity, err := h.Store.Identities.FindByEmail(ctx, profile.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		identity = &models.Identity{Name: googleName(profile), Email: profile.Email, GoogleID: profile.Subject, Verified: true}
		if err := h.Store.Identities.Create(ctx, identity); err != nil {
			fail(c, err, "Failed to create user")
			return
		}
	case err != nil:
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	case identity.GoogleID == "":
		identity.GoogleID = profile.Subject
		if err := h.Store.Identities.Save(ctx, identity); err != nil {
			fail(c, err, "Failed to link Google account")
			return
		}
	}

	token, err := h.issueToken(c, identity.ID, models.RolePatient)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate token: "+err.Error())
		return
	}
	utils.Success(c, "Login successful", LoginResponse{Token: token, User: identity.Sanitize()})
}

// googleName falls back to the e-mail's local part when Google sends no
// usable display name.
func googleName(p *utils.GoogleProfile) string {
	name := strings.TrimSpace(p.Name)
	if len([]rune(name)) >= 3 {
		if len([]rune(name)) > 50 {
			name = string([]rune(name)[:50])
		}
		return name
	}
	local := p.Email
	if at := strings.IndexByte(local, '@'); at > 0 {
		local = local[:at]
	}
	for len(local) < 3 {
		local += "_"
	}
	if len(local) > 50 {
		local = local[:50]
	}
	return local
}
