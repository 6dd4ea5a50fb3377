package card

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cardvault-api/internal/domain"
	"github.com/cardvault-api/internal/pkg/fieldcrypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCardStore struct{ mock.Mock }

func (m *mockCardStore) Create(ctx context.Context, c *domain.Card) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockCardStore) Get(ctx context.Context, userID, lastFour string) (*domain.Card, error) {
	args := m.Called(ctx, userID, lastFour)
	if c, _ := args.Get(0).(*domain.Card); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCardStore) ListByUser(ctx context.Context, userID string) ([]domain.Card, error) {
	args := m.Called(ctx, userID)
	if cards, _ := args.Get(0).([]domain.Card); cards != nil {
		return cards, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCardStore) Update(ctx context.Context, userID, lastFour string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, lastFour, updates).Error(0)
}
func (m *mockCardStore) Delete(ctx context.Context, userID, lastFour string) (*domain.Card, error) {
	args := m.Called(ctx, userID, lastFour)
	if c, _ := args.Get(0).(*domain.Card); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func newCodec(t *testing.T) *fieldcrypt.Codec {
	t.Helper()
	codec, err := fieldcrypt.New("test-passphrase", "test-salt")
	require.NoError(t, err)
	return codec
}

func validCreateReq() domain.CreateCardRequest {
	return domain.CreateCardRequest{
		LastFourDigits:     "4242",
		BankName:           "First National",
		UserName:           "Alice Smith",
		BillGenerationDate: 1,
		BillDueDate:        15,
	}
}

// --- Create ---

func TestCreate_RequiresAllFields(t *testing.T) {
	svc := NewService(&mockCardStore{}, newCodec(t))

	for name, mutate := range map[string]func(*domain.CreateCardRequest){
		"last four": func(r *domain.CreateCardRequest) { r.LastFourDigits = "" },
		"bank name": func(r *domain.CreateCardRequest) { r.BankName = " " },
		"user name": func(r *domain.CreateCardRequest) { r.UserName = "" },
		"gen date":  func(r *domain.CreateCardRequest) { r.BillGenerationDate = 0 },
		"due date":  func(r *domain.CreateCardRequest) { r.BillDueDate = 0 },
	} {
		req := validCreateReq()
		mutate(&req)
		_, err := svc.Create(context.Background(), "u1", req)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, domain.ErrBadRequest), name)
	}
}

func TestCreate_RejectsBadLastFour(t *testing.T) {
	svc := NewService(&mockCardStore{}, newCodec(t))
	for _, lf := range []string{"123", "12345", "42ab"} {
		req := validCreateReq()
		req.LastFourDigits = lf
		_, err := svc.Create(context.Background(), "u1", req)
		assert.True(t, errors.Is(err, domain.ErrBadRequest), lf)
	}
}

func TestCreate_BillDateBounds(t *testing.T) {
	store := &mockCardStore{}
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	svc := NewService(store, newCodec(t))

	for _, d := range []int{-1, 32, 99} {
		req := validCreateReq()
		req.BillDueDate = d
		_, err := svc.Create(context.Background(), "u1", req)
		assert.True(t, errors.Is(err, domain.ErrBadRequest), "day %d", d)
	}
	// Boundary days 1 and 31 are accepted.
	req := validCreateReq()
	req.BillGenerationDate = 1
	req.BillDueDate = 31
	_, err := svc.Create(context.Background(), "u1", req)
	require.NoError(t, err)
}

func TestCreate_EncryptsSensitiveFields(t *testing.T) {
	codec := newCodec(t)
	var stored *domain.Card
	store := &mockCardStore{}
	store.On("Create", mock.Anything, mock.AnythingOfType("*domain.Card")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.Card) }).
		Return(nil)

	svc := NewService(store, codec)
	view, err := svc.Create(context.Background(), "u1", validCreateReq())

	require.NoError(t, err)
	require.NotNil(t, stored)
	// The persisted record never carries the plaintext names.
	assert.NotEmpty(t, stored.BankName.Ciphertext)
	assert.NotEmpty(t, stored.BankName.IV)
	assert.NotContains(t, stored.BankName.Ciphertext, "First National")
	assert.Equal(t, "First National", codec.Decrypt(stored.BankName))
	assert.Equal(t, "Alice Smith", codec.Decrypt(stored.UserName))
	// The response is already decrypted.
	assert.Equal(t, "First National", view.BankName)
	assert.Equal(t, "Alice Smith", view.UserName)
	assert.NotEmpty(t, stored.CardID)
	assert.Equal(t, "u1", stored.UserID)
}

func TestCreate_DuplicateLastFour_Conflict(t *testing.T) {
	store := &mockCardStore{}
	store.On("Create", mock.Anything, mock.Anything).Return(domain.ErrConflict)

	svc := NewService(store, newCodec(t))
	_, err := svc.Create(context.Background(), "u1", validCreateReq())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

// --- List ---

func TestList_DecryptsAndSortsNewestFirst(t *testing.T) {
	codec := newCodec(t)
	encBank, err := codec.Encrypt("Bank A")
	require.NoError(t, err)
	encUser, err := codec.Encrypt("Alice")
	require.NoError(t, err)

	old := domain.Card{LastFourDigits: "1111", BankName: encBank, UserName: encUser,
		CreatedAt: time.Now().Add(-time.Hour)}
	recent := domain.Card{LastFourDigits: "2222", BankName: encBank, UserName: encUser,
		CreatedAt: time.Now()}

	store := &mockCardStore{}
	store.On("ListByUser", mock.Anything, "u1").Return([]domain.Card{old, recent}, nil)

	svc := NewService(store, codec)
	views, err := svc.List(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "2222", views[0].LastFourDigits)
	assert.Equal(t, "1111", views[1].LastFourDigits)
	assert.Equal(t, "Bank A", views[0].BankName)
	assert.Equal(t, "Alice", views[0].UserName)
}

func TestList_CorruptFieldComesBackEmpty(t *testing.T) {
	codec := newCodec(t)
	store := &mockCardStore{}
	store.On("ListByUser", mock.Anything, "u1").Return([]domain.Card{
		{LastFourDigits: "3333", BankName: domain.EncryptedField{Ciphertext: "zz", IV: "zz"}},
	}, nil)

	svc := NewService(store, codec)
	views, err := svc.List(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "", views[0].BankName)
}

// --- Get / Delete ---

func TestGet_InvalidFormat(t *testing.T) {
	svc := NewService(&mockCardStore{}, newCodec(t))
	_, err := svc.Get(context.Background(), "u1", "42x")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestGet_NotFoundPassesThrough(t *testing.T) {
	store := &mockCardStore{}
	store.On("Get", mock.Anything, "u1", "4242").Return(nil, domain.ErrNotFound)

	svc := NewService(store, newCodec(t))
	_, err := svc.Get(context.Background(), "u1", "4242")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDelete_ReturnsDeletedCard(t *testing.T) {
	codec := newCodec(t)
	encBank, err := codec.Encrypt("Bank A")
	require.NoError(t, err)
	store := &mockCardStore{}
	store.On("Delete", mock.Anything, "u1", "4242").Return(&domain.Card{
		LastFourDigits: "4242", BankName: encBank,
	}, nil)

	svc := NewService(store, codec)
	view, err := svc.Delete(context.Background(), "u1", "4242")

	require.NoError(t, err)
	assert.Equal(t, "Bank A", view.BankName)
}

// --- Update ---

func TestUpdate_ReencryptsWithFreshIV(t *testing.T) {
	codec := newCodec(t)
	encBank, err := codec.Encrypt("Bank A")
	require.NoError(t, err)
	existing := &domain.Card{UserID: "u1", LastFourDigits: "4242", BankName: encBank}

	var updates map[string]interface{}
	store := &mockCardStore{}
	store.On("Get", mock.Anything, "u1", "4242").Return(existing, nil)
	store.On("Update", mock.Anything, "u1", "4242", mock.Anything).
		Run(func(args mock.Arguments) { updates = args.Get(3).(map[string]interface{}) }).
		Return(nil)

	svc := NewService(store, codec)
	bank := "Bank A"
	_, err = svc.Update(context.Background(), "u1", "4242", domain.UpdateCardRequest{BankName: &bank})

	require.NoError(t, err)
	enc, ok := updates["bank_name"].(domain.EncryptedField)
	require.True(t, ok)
	// Same plaintext, new IV, new ciphertext.
	assert.NotEqual(t, encBank.IV, enc.IV)
	assert.NotEqual(t, encBank.Ciphertext, enc.Ciphertext)
	assert.Equal(t, "Bank A", codec.Decrypt(enc))
}

func TestUpdate_RejectsBadDates(t *testing.T) {
	store := &mockCardStore{}
	store.On("Get", mock.Anything, "u1", "4242").Return(&domain.Card{}, nil)

	svc := NewService(store, newCodec(t))
	for _, d := range []int{0, 32} {
		day := d
		_, err := svc.Update(context.Background(), "u1", "4242", domain.UpdateCardRequest{BillDueDate: &day})
		assert.True(t, errors.Is(err, domain.ErrBadRequest), "day %d", d)
	}
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate_NoFields_NoWrite(t *testing.T) {
	store := &mockCardStore{}
	store.On("Get", mock.Anything, "u1", "4242").Return(&domain.Card{LastFourDigits: "4242"}, nil)

	svc := NewService(store, newCodec(t))
	view, err := svc.Update(context.Background(), "u1", "4242", domain.UpdateCardRequest{})

	require.NoError(t, err)
	assert.Equal(t, "4242", view.LastFourDigits)
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate_UnknownCard_NotFound(t *testing.T) {
	store := &mockCardStore{}
	store.On("Get", mock.Anything, "u1", "4242").Return(nil, domain.ErrNotFound)

	svc := NewService(store, newCodec(t))
	day := 10
	_, err := svc.Update(context.Background(), "u1", "4242", domain.UpdateCardRequest{BillDueDate: &day})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
