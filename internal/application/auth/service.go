// Package auth covers PIN login, the two-step PIN reset flow and account
// deletion for activated accounts.
package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cardvault-api/internal/domain"
	"github.com/cardvault-api/internal/pkg/otp"
	"golang.org/x/crypto/bcrypt"
)

// PIN reset wire steps.
const (
	StepRequest = 1
	StepConfirm = 2
)

// resetOTPTTL bounds a PIN-reset email code. There is no equivalent of the
// signup window here; the reset flow is two independent steps.
const resetOTPTTL = 5 * time.Minute

var pinPattern = regexp.MustCompile(`^\d{4}$`)

const (
	fieldPINHash  = "pin_hash"
	fieldEmailOTP = "email_otp"
)

type Service interface {
	// Login authenticates an activated account by email-or-phone and PIN.
	Login(ctx context.Context, identifier, pin string) (*domain.AuthResult, error)
	// RequestPINReset issues a fresh OTP on the channel matching the
	// identifier: email codes are persisted and mailed, phone codes go
	// through the SMS challenge provider.
	RequestPINReset(ctx context.Context, identifier string) error
	// ConfirmPINReset validates the OTP on the same channel, stores the new
	// PIN and issues a fresh session token.
	ConfirmPINReset(ctx context.Context, identifier, code, newPIN string) (*domain.AuthResult, error)
	// DeleteAccount removes the user record and cascade-deletes every card
	// it owns.
	DeleteAccount(ctx context.Context, userID, email string) error
}

type userStore interface {
	GetActivatedByEmail(ctx context.Context, email string) (*domain.User, error)
	GetActivatedByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, email string, updates map[string]interface{}) error
	Delete(ctx context.Context, email string) error
}

type cardStore interface {
	DeleteAllByUser(ctx context.Context, userID string) error
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
	cards    cardStore
	verifier phoneVerifier
	mailer   mailer
	signer   jwtSigner
}

type ServiceDeps struct {
	Users    userStore
	Cards    cardStore
	Verifier phoneVerifier
	Mailer   mailer
	Signer   jwtSigner
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:    deps.Users,
		cards:    deps.Cards,
		verifier: deps.Verifier,
		mailer:   deps.Mailer,
		signer:   deps.Signer,
	}
}

func (s *service) Login(ctx context.Context, identifier, pin string) (*domain.AuthResult, error) {
	if identifier == "" || pin == "" {
		return nil, fmt.Errorf("identifier and PIN are required: %w", domain.ErrBadRequest)
	}
	u, err := s.findActivated(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("user not found or not verified: %w", domain.ErrNotFound)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PINHash), []byte(pin)); err != nil {
		return nil, fmt.Errorf("invalid PIN: %w", domain.ErrUnauthorized)
	}
	token, err := s.signer.Sign(u.UserID, u.Email, u.PhoneNumber())
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{Token: token, Email: u.Email, Phone: u.PhoneNumber()}, nil
}

func (s *service) RequestPINReset(ctx context.Context, identifier string) error {
	u, err := s.findActivated(ctx, identifier)
	if err != nil {
		return domain.StepErr(StepRequest, fmt.Errorf("user not found or not verified: %w", domain.ErrNotFound))
	}

	if isEmail(identifier) {
		code, err := otp.New()
		if err != nil {
			return err
		}
		expiresAt := time.Now().UTC().Add(resetOTPTTL)
		if err := s.users.Update(ctx, u.Email, map[string]interface{}{
			fieldEmailOTP: domain.EmailOTP{Code: &code, ExpiresAt: &expiresAt},
		}); err != nil {
			return err
		}
		if err := s.mailer.SendEmail(u.Email, "Your PIN reset OTP", otpMailBody(code)); err != nil {
			return domain.StepErr(StepRequest, fmt.Errorf("failed to send email OTP: %w", err))
		}
		return nil
	}

	if err := s.verifier.StartChallenge(ctx, u.PhoneNumber()); err != nil {
		return domain.StepErr(StepRequest, fmt.Errorf("phone verification request failed: %w", domain.ErrBadRequest))
	}
	return nil
}

func (s *service) ConfirmPINReset(ctx context.Context, identifier, code, newPIN string) (*domain.AuthResult, error) {
	if !pinPattern.MatchString(newPIN) {
		return nil, domain.StepErr(StepConfirm, fmt.Errorf("PIN must be 4 digits: %w", domain.ErrBadRequest))
	}
	u, err := s.findActivated(ctx, identifier)
	if err != nil {
		return nil, domain.StepErr(StepRequest, fmt.Errorf("user not found or not verified: %w", domain.ErrNotFound))
	}

	if isEmail(identifier) {
		if !u.EmailOTP.Issued() || *u.EmailOTP.Code != code {
			return nil, domain.StepErr(StepConfirm, fmt.Errorf("invalid OTP: %w", domain.ErrUnauthorized))
		}
		if u.EmailOTP.Expired(time.Now().UTC()) {
			return nil, domain.StepErr(StepRequest, fmt.Errorf("OTP expired: %w", domain.ErrUnauthorized))
		}
	} else {
		approved, err := s.verifier.CheckChallenge(ctx, u.PhoneNumber(), code)
		if err != nil {
			return nil, domain.StepErr(StepConfirm, fmt.Errorf("phone verification check failed: %w", err))
		}
		if !approved {
			return nil, domain.StepErr(StepConfirm, fmt.Errorf("invalid OTP: %w", domain.ErrUnauthorized))
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u.Email, map[string]interface{}{
		fieldPINHash:  string(hash),
		fieldEmailOTP: domain.EmailOTP{},
	}); err != nil {
		return nil, err
	}

	token, err := s.signer.Sign(u.UserID, u.Email, u.PhoneNumber())
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{Token: token, Email: u.Email, Phone: u.PhoneNumber()}, nil
}

func (s *service) DeleteAccount(ctx context.Context, userID, email string) error {
	// Cards first: if the cascade dies halfway the user can still retry.
	if err := s.cards.DeleteAllByUser(ctx, userID); err != nil {
		return err
	}
	return s.users.Delete(ctx, strings.ToLower(email))
}

func (s *service) findActivated(ctx context.Context, identifier string) (*domain.User, error) {
	if isEmail(identifier) {
		return s.users.GetActivatedByEmail(ctx, strings.ToLower(strings.TrimSpace(identifier)))
	}
	return s.users.GetActivatedByPhone(ctx, strings.TrimSpace(identifier))
}

func isEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}

func otpMailBody(code string) string {
	return fmt.Sprintf("Your OTP is: %s. This OTP will expire in 5 minutes.", code)
}
