package sns

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/cardvault-api/internal/config"
	"github.com/cardvault-api/internal/domain"
	"github.com/cardvault-api/internal/infrastructure/dynamo"
	"github.com/cardvault-api/internal/pkg/otp"
)

// challenge codes outlive the 5-minute signup window slightly so a code
// issued right before the window closes can still be checked.
const challengeTTL = 10 * time.Minute

// PhoneVerifier issues and checks SMS verification challenges.
// CheckChallenge returns approved=false (not an error) for wrong, expired,
// or unknown codes; errors are reserved for provider/storage failures.
type PhoneVerifier interface {
	StartChallenge(ctx context.Context, phone string) error
	CheckChallenge(ctx context.Context, phone, code string) (approved bool, err error)
}

type challengeStore interface {
	Put(ctx context.Context, c *dynamo.PhoneChallenge) error
	Get(ctx context.Context, phone string) (*dynamo.PhoneChallenge, error)
	Delete(ctx context.Context, phone string) error
}

type verifier struct {
	client     *sns.Client
	challenges challengeStore
}

// NewVerifier creates a PhoneVerifier backed by AWS SNS for delivery and the
// challenges table for state.
func NewVerifier(cfg *config.Config, challenges *dynamo.ChallengeRepo) (PhoneVerifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &verifier{client: sns.NewFromConfig(awsCfg), challenges: challenges}, nil
}

func (v *verifier) StartChallenge(ctx context.Context, phone string) error {
	code, err := otp.New()
	if err != nil {
		return err
	}
	c := &dynamo.PhoneChallenge{
		Phone:     phone,
		Code:      code,
		ExpiresAt: time.Now().Add(challengeTTL).Unix(),
	}
	if err := v.challenges.Put(ctx, c); err != nil {
		return err
	}
	message := "Your phone verification code is: " + code
	_, err = v.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: &phone,
		Message:     &message,
	})
	if err != nil {
		return fmt.Errorf("publish verification SMS: %w", err)
	}
	return nil
}

func (v *verifier) CheckChallenge(ctx context.Context, phone, code string) (bool, error) {
	c, err := v.challenges.Get(ctx, phone)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if c.Code != code || c.ExpiresAt < time.Now().Unix() {
		return false, nil
	}
	if err := v.challenges.Delete(ctx, phone); err != nil {
		return false, err
	}
	return true, nil
}
