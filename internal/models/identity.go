package models

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// MaxOTPAttempts is how many wrong codes an issued OTP survives.
const MaxOTPAttempts = 5

var (
	ErrOTPInvalid      = errors.New("invalid OTP")
	ErrOTPExpired      = errors.New("OTP has expired")
	ErrOTPExhausted    = errors.New("too many invalid OTP attempts")
	ErrResetNotAllowed = errors.New("OTP verification required before resetting the password")
)

// Identity is an account that can sign in. It carries no clinical data;
// the doctor's view of the person lives in Patient.
type Identity struct {
	BaseModel
	Name             string     `gorm:"size:50;not null" json:"name" validate:"notblank,min=3,max=50"`
	Email            string     `gorm:"uniqueIndex;size:255;not null" json:"email" validate:"required,email"`
	Phone            string     `gorm:"size:10" json:"phone" validate:"omitempty,len=10,numeric"`
	Password         string     `gorm:"size:255" json:"-"` // Never send password in JSON
	OTP              string     `gorm:"size:6" json:"-"`
	OTPExpiry        *time.Time `json:"-"`
	OTPAttempts      int        `gorm:"default:0" json:"-"`
	Verified         bool       `gorm:"default:false" json:"verified"`
	CanResetPassword bool       `gorm:"default:false" json:"-"`
	GoogleID         string     `gorm:"size:255" json:"-"`
}

// IdentitySanitized is the part of an identity that is safe to return.
type IdentitySanitized struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SetPassword hashes a password and sets it on the identity
func (i *Identity) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	i.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the stored hash. Google-only
// accounts have no hash and never match.
func (i *Identity) CheckPassword(password string) bool {
	if i.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(i.Password), []byte(password)) == nil
}

// IssueOTP stores a reset code valid for ttl from now.
func (i *Identity) IssueOTP(code string, now time.Time, ttl time.Duration) {
	expiry := now.Add(ttl)
	i.OTP = code
	i.OTPExpiry = &expiry
	i.OTPAttempts = 0
	i.CanResetPassword = false
}

// VerifyOTP checks code against the stored OTP. On success the code is
// cleared and the identity may reset its password once. Each miss counts;
// the MaxOTPAttempts-th miss burns the code. Callers must save the identity
// after a failure too, or the count is lost.
func (i *Identity) VerifyOTP(code string, now time.Time) error {
	if i.OTP == "" {
		return ErrOTPInvalid
	}
	if subtle.ConstantTimeCompare([]byte(i.OTP), []byte(strings.TrimSpace(code))) != 1 {
		i.OTPAttempts++
		if i.OTPAttempts >= MaxOTPAttempts {
			i.clearOTP()
			return ErrOTPExhausted
		}
		return ErrOTPInvalid
	}
	if i.OTPExpiry == nil || now.After(*i.OTPExpiry) {
		return ErrOTPExpired
	}
	i.clearOTP()
	i.Verified = true
	i.CanResetPassword = true
	return nil
}

func (i *Identity) clearOTP() {
	i.OTP = ""
	i.OTPExpiry = nil
	i.OTPAttempts = 0
}

// ResetPassword consumes the one-time reset permission.
func (i *Identity) ResetPassword(password string) error {
	if !i.CanResetPassword {
		return ErrResetNotAllowed
	}
	if err := i.SetPassword(password); err != nil {
		return err
	}
	i.CanResetPassword = false
	return nil
}

// Validate checks the schema rules before a save. The phone rule that
// depends on GoogleID is registered with the validator.
func (i *Identity) Validate() error {
	return check(i).errOrNil()
}

// Sanitize creates an IdentitySanitized struct, excluding sensitive data.
func (i *Identity) Sanitize() IdentitySanitized {
	return IdentitySanitized{
		ID:        i.ID,
		Name:      i.Name,
		Email:     i.Email,
		Phone:     i.Phone,
		Verified:  i.Verified,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}
