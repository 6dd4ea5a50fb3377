// Package card implements CRUD over per-user credit-card records with
// field-level encryption of the bank and card-holder names.
package card

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cardvault-api/internal/domain"
	"github.com/cardvault-api/internal/pkg/id"
)

var lastFourPattern = regexp.MustCompile(`^\d{4}$`)

const (
	fieldBankName           = "bank_name"
	fieldUserName           = "user_name"
	fieldBillGenerationDate = "bill_generation_date"
	fieldBillDueDate        = "bill_due_date"
)

type Service interface {
	Create(ctx context.Context, userID string, req domain.CreateCardRequest) (*domain.CardView, error)
	List(ctx context.Context, userID string) ([]domain.CardView, error)
	Get(ctx context.Context, userID, lastFour string) (*domain.CardView, error)
	Update(ctx context.Context, userID, lastFour string, req domain.UpdateCardRequest) (*domain.CardView, error)
	Delete(ctx context.Context, userID, lastFour string) (*domain.CardView, error)
}

type cardStore interface {
	Create(ctx context.Context, c *domain.Card) error
	Get(ctx context.Context, userID, lastFour string) (*domain.Card, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Card, error)
	Update(ctx context.Context, userID, lastFour string, updates map[string]interface{}) error
	Delete(ctx context.Context, userID, lastFour string) (*domain.Card, error)
}

type fieldCodec interface {
	Encrypt(plaintext string) (domain.EncryptedField, error)
	Decrypt(f domain.EncryptedField) string
}

type service struct {
	cards cardStore
	codec fieldCodec
}

func NewService(cards cardStore, codec fieldCodec) Service {
	return &service{cards: cards, codec: codec}
}

func (s *service) Create(ctx context.Context, userID string, req domain.CreateCardRequest) (*domain.CardView, error) {
	lastFour := strings.TrimSpace(req.LastFourDigits)
	bankName := strings.TrimSpace(req.BankName)
	userName := strings.TrimSpace(req.UserName)

	if lastFour == "" || bankName == "" || userName == "" || req.BillGenerationDate == 0 || req.BillDueDate == 0 {
		return nil, fmt.Errorf("all fields are required: %w", domain.ErrBadRequest)
	}
	if !lastFourPattern.MatchString(lastFour) {
		return nil, fmt.Errorf("last four digits must be exactly 4 digits: %w", domain.ErrBadRequest)
	}
	if !validDay(req.BillGenerationDate) || !validDay(req.BillDueDate) {
		return nil, fmt.Errorf("bill generation and due dates must be between 1 and 31: %w", domain.ErrBadRequest)
	}

	encBank, err := s.codec.Encrypt(bankName)
	if err != nil {
		return nil, err
	}
	encUser, err := s.codec.Encrypt(userName)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &domain.Card{
		CardID:             id.New(),
		UserID:             userID,
		LastFourDigits:     lastFour,
		BankName:           encBank,
		UserName:           encUser,
		BillGenerationDate: req.BillGenerationDate,
		BillDueDate:        req.BillDueDate,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.cards.Create(ctx, c); err != nil {
		return nil, err
	}
	return s.view(c), nil
}

func (s *service) List(ctx context.Context, userID string) ([]domain.CardView, error) {
	cards, err := s.cards.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].CreatedAt.After(cards[j].CreatedAt)
	})
	views := make([]domain.CardView, len(cards))
	for i := range cards {
		views[i] = *s.view(&cards[i])
	}
	return views, nil
}

func (s *service) Get(ctx context.Context, userID, lastFour string) (*domain.CardView, error) {
	if !lastFourPattern.MatchString(lastFour) {
		return nil, fmt.Errorf("invalid last four digits format: %w", domain.ErrBadRequest)
	}
	c, err := s.cards.Get(ctx, userID, lastFour)
	if err != nil {
		return nil, err
	}
	return s.view(c), nil
}

func (s *service) Update(ctx context.Context, userID, lastFour string, req domain.UpdateCardRequest) (*domain.CardView, error) {
	if !lastFourPattern.MatchString(lastFour) {
		return nil, fmt.Errorf("invalid last four digits format: %w", domain.ErrBadRequest)
	}
	if _, err := s.cards.Get(ctx, userID, lastFour); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.BankName != nil {
		// Fresh IV on every rewrite, even for identical plaintext.
		enc, err := s.codec.Encrypt(strings.TrimSpace(*req.BankName))
		if err != nil {
			return nil, err
		}
		updates[fieldBankName] = enc
	}
	if req.UserName != nil {
		enc, err := s.codec.Encrypt(strings.TrimSpace(*req.UserName))
		if err != nil {
			return nil, err
		}
		updates[fieldUserName] = enc
	}
	if req.BillGenerationDate != nil {
		if !validDay(*req.BillGenerationDate) {
			return nil, fmt.Errorf("invalid bill generation date: %w", domain.ErrBadRequest)
		}
		updates[fieldBillGenerationDate] = *req.BillGenerationDate
	}
	if req.BillDueDate != nil {
		if !validDay(*req.BillDueDate) {
			return nil, fmt.Errorf("invalid bill due date: %w", domain.ErrBadRequest)
		}
		updates[fieldBillDueDate] = *req.BillDueDate
	}

	if len(updates) > 0 {
		if err := s.cards.Update(ctx, userID, lastFour, updates); err != nil {
			return nil, err
		}
	}
	c, err := s.cards.Get(ctx, userID, lastFour)
	if err != nil {
		return nil, err
	}
	return s.view(c), nil
}

func (s *service) Delete(ctx context.Context, userID, lastFour string) (*domain.CardView, error) {
	if !lastFourPattern.MatchString(lastFour) {
		return nil, fmt.Errorf("invalid last four digits format: %w", domain.ErrBadRequest)
	}
	c, err := s.cards.Delete(ctx, userID, lastFour)
	if err != nil {
		return nil, err
	}
	return s.view(c), nil
}

// view decrypts the sensitive fields into the response shape. Decryption
// never fails; corrupt fields come back empty.
func (s *service) view(c *domain.Card) *domain.CardView {
	return &domain.CardView{
		CardID:             c.CardID,
		UserID:             c.UserID,
		LastFourDigits:     c.LastFourDigits,
		BankName:           s.codec.Decrypt(c.BankName),
		UserName:           s.codec.Decrypt(c.UserName),
		BillGenerationDate: c.BillGenerationDate,
		BillDueDate:        c.BillDueDate,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// Calendar day-of-month only; month lengths and leap years are deliberately
// not checked.
func validDay(d int) bool {
	return d >= 1 && d <= 31
}
