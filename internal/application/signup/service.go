// Package signup drives the multi-step account creation flow. All state
// lives on the persisted user record; the caller resubmits the step
// discriminator on every request and failures carry a resume-step hint.
package signup

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cardvault-api/internal/domain"
	"github.com/cardvault-api/internal/pkg/id"
	"github.com/cardvault-api/internal/pkg/otp"
	"github.com/cardvault-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// Wire step numbers. Resend is a side channel on StepVerify, not a
// transition of its own.
const (
	StepInitiate = 1
	StepVerify   = 2
	StepFinalize = 3
)

const (
	// emailOTPTTL bounds a single email code.
	emailOTPTTL = 5 * time.Minute
	// signupWindow bounds the whole attempt, measured from step 1. Resends do
	// not extend it.
	signupWindow = 5 * time.Minute

	otpMailSubject = "Your OTP for Credit Card System"
)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// DynamoDB attribute names used in partial update maps.
const (
	fieldPINHash         = "pin_hash"
	fieldEmailOTP        = "email_otp"
	fieldIsEmailVerified = "is_email_verified"
	fieldIsPhoneVerified = "is_phone_verified"
	fieldIsVerified      = "is_verified"
)

type Service interface {
	// Initiate collects identity fields, issues both OTP challenges and opens
	// the signup window.
	Initiate(ctx context.Context, req domain.InitiateSignupRequest) error
	// Resend re-issues both OTP challenges without moving the window.
	Resend(ctx context.Context, email string) error
	// Verify checks both OTP codes and sets both verification flags together,
	// or neither.
	Verify(ctx context.Context, email, emailOTP, phoneOTP string) error
	// Finalize sets the PIN, activates the account and issues a session token.
	Finalize(ctx context.Context, email, pin string) (*domain.AuthResult, error)
}

type userStore interface {
	PutIfNotActivated(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetActivatedByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, email string, updates map[string]interface{}) error
}

type phoneVerifier interface {
	StartChallenge(ctx context.Context, phone string) error
	CheckChallenge(ctx context.Context, phone, code string) (bool, error)
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type jwtSigner interface {
	Sign(userID, email, phone string) (string, error)
}

type service struct {
	users    userStore
	verifier phoneVerifier
	mailer   mailer
	signer   jwtSigner
}

type ServiceDeps struct {
	Users    userStore
	Verifier phoneVerifier
	Mailer   mailer
	Signer   jwtSigner
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:    deps.Users,
		verifier: deps.Verifier,
		mailer:   deps.Mailer,
		signer:   deps.Signer,
	}
}

func (s *service) Initiate(ctx context.Context, req domain.InitiateSignupRequest) error {
	if err := validate.Struct(&req); err != nil {
		return domain.StepErr(StepInitiate, fmt.Errorf("%v: %w", err, domain.ErrBadRequest))
	}
	email := normalizeEmail(req.Email)
	phone := strings.TrimSpace(req.Phone)

	// Phone uniqueness among activated accounts. Email uniqueness is enforced
	// by the conditional put below.
	if _, err := s.users.GetActivatedByPhone(ctx, phone); err == nil {
		return domain.StepErr(StepInitiate, fmt.Errorf("user already exists: %w", domain.ErrConflict))
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	code, err := otp.New()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(emailOTPTTL)

	userID := id.New()
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		// A pending record keeps its id across repeated initiations.
		userID = existing.UserID
	case !errors.Is(err, domain.ErrNotFound):
		// A transient read failure must not mint a fresh id over the
		// pending record's identity.
		return err
	}

	u := &domain.User{
		UserID:          userID,
		Name:            strings.TrimSpace(req.Name),
		Email:           email,
		Phone:           &phone,
		EmailOTP:        domain.EmailOTP{Code: &code, ExpiresAt: &expiresAt},
		SignupStartedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.users.PutIfNotActivated(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.StepErr(StepInitiate, err)
		}
		return err
	}

	// Phone challenge first: if the provider rejects the number, the step
	// fails as a whole before any "sent" state is reported.
	if err := s.verifier.StartChallenge(ctx, phone); err != nil {
		return domain.StepErr(StepInitiate, fmt.Errorf("phone verification request failed: %w", domain.ErrBadRequest))
	}
	if err := s.mailer.SendEmail(email, otpMailSubject, otpMailBody(code)); err != nil {
		return domain.StepErr(StepInitiate, fmt.Errorf("failed to send email OTP: %w", err))
	}
	return nil
}

func (s *service) Resend(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return domain.StepErr(StepInitiate, fmt.Errorf("please start signup process again: %w", domain.ErrNotFound))
	}
	if u.SignupState() == domain.SignupStateActivated {
		return domain.StepErr(StepInitiate, fmt.Errorf("user already exists: %w", domain.ErrConflict))
	}

	code, err := otp.New()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(emailOTPTTL)
	// signup_started_at is deliberately untouched: resending codes does not
	// extend the signup window.
	if err := s.users.Update(ctx, email, map[string]interface{}{
		fieldEmailOTP: domain.EmailOTP{Code: &code, ExpiresAt: &expiresAt},
	}); err != nil {
		return err
	}

	if err := s.verifier.StartChallenge(ctx, u.PhoneNumber()); err != nil {
		return domain.StepErr(StepVerify, fmt.Errorf("phone verification request failed: %w", domain.ErrBadRequest))
	}
	if err := s.mailer.SendEmail(email, otpMailSubject, otpMailBody(code)); err != nil {
		return domain.StepErr(StepVerify, fmt.Errorf("failed to send email OTP: %w", err))
	}
	return nil
}

func (s *service) Verify(ctx context.Context, email, emailOTP, phoneOTP string) error {
	if emailOTP == "" || phoneOTP == "" {
		return domain.StepErr(StepVerify, fmt.Errorf("email and phone OTP required: %w", domain.ErrBadRequest))
	}
	email = normalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return domain.StepErr(StepInitiate, fmt.Errorf("please start signup process again: %w", domain.ErrNotFound))
	}
	if u.SignupState() == domain.SignupStateActivated {
		return domain.StepErr(StepInitiate, fmt.Errorf("user already exists: %w", domain.ErrConflict))
	}

	if !u.EmailOTP.Issued() || *u.EmailOTP.Code != emailOTP {
		return domain.StepErr(StepVerify, fmt.Errorf("invalid email OTP: %w", domain.ErrUnauthorized))
	}
	if u.EmailOTP.Expired(time.Now().UTC()) {
		// The stored code is unrecoverable; the caller must restart.
		return domain.StepErr(StepInitiate, fmt.Errorf("email OTP expired: %w", domain.ErrUnauthorized))
	}

	approved, err := s.verifier.CheckChallenge(ctx, u.PhoneNumber(), phoneOTP)
	if err != nil {
		return domain.StepErr(StepVerify, fmt.Errorf("phone verification check failed: %w", err))
	}
	if !approved {
		// Neither flag is set: a valid email OTP alone moves nothing.
		return domain.StepErr(StepVerify, fmt.Errorf("invalid phone verification code: %w", domain.ErrUnauthorized))
	}

	return s.users.Update(ctx, email, map[string]interface{}{
		fieldIsEmailVerified: true,
		fieldIsPhoneVerified: true,
	})
}

func (s *service) Finalize(ctx context.Context, email, pin string) (*domain.AuthResult, error) {
	if !pinPattern.MatchString(pin) {
		return nil, domain.StepErr(StepFinalize, fmt.Errorf("PIN must be 4 digits: %w", domain.ErrBadRequest))
	}
	email = normalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, domain.StepErr(StepInitiate, fmt.Errorf("please start signup process again: %w", domain.ErrNotFound))
	}
	switch u.SignupState() {
	case domain.SignupStateActivated:
		return nil, domain.StepErr(StepInitiate, fmt.Errorf("user already exists: %w", domain.ErrConflict))
	case domain.SignupStatePending:
		return nil, domain.StepErr(StepInitiate, fmt.Errorf("please complete verification steps first: %w", domain.ErrBadRequest))
	}

	if u.SignupStartedAt == nil || time.Since(*u.SignupStartedAt) > signupWindow {
		// Window exceeded: force a restart by resetting everything the
		// attempt accumulated.
		if err := s.users.Update(ctx, email, map[string]interface{}{
			fieldIsEmailVerified: false,
			fieldIsPhoneVerified: false,
			fieldEmailOTP:        domain.EmailOTP{},
		}); err != nil {
			return nil, err
		}
		return nil, domain.StepErr(StepInitiate, fmt.Errorf("signup session expired, please start over: %w", domain.ErrUnauthorized))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, email, map[string]interface{}{
		fieldPINHash:    string(hash),
		fieldIsVerified: true,
		fieldEmailOTP:   domain.EmailOTP{},
	}); err != nil {
		return nil, err
	}

	token, err := s.signer.Sign(u.UserID, email, u.PhoneNumber())
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{Token: token, Email: email, Phone: u.PhoneNumber()}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func otpMailBody(code string) string {
	return fmt.Sprintf("Your Email verification OTP is: %s. This OTP will expire in 5 minutes.", code)
}
