package domain

import "time"

// EncryptedField is a ciphertext+IV pair as stored at rest. Both halves are
// hex-encoded; a pair with either half missing decrypts to "".
type EncryptedField struct {
	Ciphertext string `json:"-" dynamodbav:"ciphertext"`
	IV         string `json:"-" dynamodbav:"iv"`
}

// Card is a stored credit-card record. BankName and UserName are never
// plaintext at rest. Keyed by user_id + last_four_digits, so the per-user
// uniqueness of the last four digits is enforced by the table itself.
type Card struct {
	CardID             string         `dynamodbav:"card_id"`
	UserID             string         `dynamodbav:"user_id"`
	LastFourDigits     string         `dynamodbav:"last_four_digits"`
	BankName           EncryptedField `dynamodbav:"bank_name"`
	UserName           EncryptedField `dynamodbav:"user_name"`
	BillGenerationDate int            `dynamodbav:"bill_generation_date"`
	BillDueDate        int            `dynamodbav:"bill_due_date"`
	CreatedAt          time.Time      `dynamodbav:"created_at"`
	UpdatedAt          time.Time      `dynamodbav:"updated_at"`
}

// CardView is the decrypted response shape.
type CardView struct {
	CardID             string    `json:"id"`
	UserID             string    `json:"userId"`
	LastFourDigits     string    `json:"lastFourDigits"`
	BankName           string    `json:"bankName"`
	UserName           string    `json:"userName"`
	BillGenerationDate int       `json:"billGenerationDate"`
	BillDueDate        int       `json:"billDueDate"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type CreateCardRequest struct {
	LastFourDigits     string `json:"lastFourDigits"`
	BankName           string `json:"bankName"`
	UserName           string `json:"userName"`
	BillGenerationDate int    `json:"billGenerationDate"`
	BillDueDate        int    `json:"billDueDate"`
}

type UpdateCardRequest struct {
	BankName           *string `json:"bankName"`
	UserName           *string `json:"userName"`
	BillGenerationDate *int    `json:"billGenerationDate"`
	BillDueDate        *int    `json:"billDueDate"`
}
