package domain

import "time"

// EmailOTP is the transient email verification code stored on the user record.
// Both fields are nil outside the window between issuance and consumption.
type EmailOTP struct {
	Code      *string    `json:"-" dynamodbav:"code"`
	ExpiresAt *time.Time `json:"-" dynamodbav:"expires_at"`
}

// Issued reports whether an OTP is currently stored.
func (o EmailOTP) Issued() bool { return o.Code != nil }

// Expired reports whether the stored OTP is past its expiry at the given time.
func (o EmailOTP) Expired(now time.Time) bool {
	return o.ExpiresAt == nil || now.After(*o.ExpiresAt)
}

type User struct {
	UserID          string     `json:"id" dynamodbav:"user_id"`
	Name            string     `json:"name" dynamodbav:"name"`
	Email           string     `json:"email" dynamodbav:"email"` // partition key, lowercased
	Phone           *string    `json:"phone" dynamodbav:"phone"`
	PINHash         string     `json:"-" dynamodbav:"pin_hash"`
	IsEmailVerified bool       `json:"isEmailVerified" dynamodbav:"is_email_verified"`
	IsPhoneVerified bool       `json:"isPhoneVerified" dynamodbav:"is_phone_verified"`
	IsVerified      bool       `json:"isVerified" dynamodbav:"is_verified"`
	EmailOTP        EmailOTP   `json:"-" dynamodbav:"email_otp"`
	SignupStartedAt *time.Time `json:"-" dynamodbav:"signup_started_at"`
	CreatedAt       time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// SignupState is the verification state machine position, computed from the
// persisted flags on every request. IsVerified dominates, so a record can
// never present as activated-but-unverified.
type SignupState int

const (
	// SignupStatePending: identity collected, OTP challenges outstanding.
	SignupStatePending SignupState = iota
	// SignupStateVerified: both channels confirmed, PIN not yet set.
	SignupStateVerified
	// SignupStateActivated: account fully activated, eligible for login.
	SignupStateActivated
)

func (u *User) SignupState() SignupState {
	switch {
	case u.IsVerified:
		return SignupStateActivated
	case u.IsEmailVerified && u.IsPhoneVerified:
		return SignupStateVerified
	default:
		return SignupStatePending
	}
}

// PhoneNumber returns the bound phone number or "".
func (u *User) PhoneNumber() string {
	if u.Phone == nil {
		return ""
	}
	return *u.Phone
}

// SignupRequest is the single signup endpoint body, discriminated by Step.
// Step 1 initiates, step 2 verifies both OTPs (or resends when Resend is
// set), step 3 sets the PIN and activates the account.
type SignupRequest struct {
	Step     int    `json:"step"`
	Resend   bool   `json:"resend"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	EmailOTP string `json:"emailOtp"`
	PhoneOTP string `json:"phoneOtp"`
	PIN      string `json:"pin"`
}

// InitiateSignupRequest carries the step-1 identity fields for validation.
type InitiateSignupRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"` // email or phone, disambiguated on "@"
	PIN        string `json:"pin"`
}

// ForgetPINRequest is the two-step PIN reset body, discriminated by Step.
type ForgetPINRequest struct {
	Step       int    `json:"step"`
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
	NewPIN     string `json:"newPin"`
}

// AuthResult is returned by every operation that issues a session token.
type AuthResult struct {
	Token string
	Email string
	Phone string
}
