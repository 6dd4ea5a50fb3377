// Package fieldcrypt encrypts individual record fields with AES-256-CBC.
// Each encryption uses a fresh random IV, so identical plaintexts produce
// different ciphertexts across writes. Decryption never fails: any malformed
// or missing input yields "" so legacy/corrupt records can still be read.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cardvault-api/internal/domain"
	"golang.org/x/crypto/scrypt"
)

// scrypt cost parameters, 32-byte key for AES-256.
const (
	scryptN = 16384
	scryptR = 8
	scryptP = 1
	keyLen  = 32
)

// Codec holds the process-wide symmetric key, derived once at startup.
type Codec struct {
	key []byte
}

// New derives the encryption key from the configured passphrase and salt.
func New(passphrase, salt string) (*Codec, error) {
	if passphrase == "" {
		return nil, errors.New("encryption passphrase is required")
	}
	if salt == "" {
		return nil, errors.New("encryption salt is required")
	}
	key, err := scrypt.Key([]byte(passphrase), []byte(salt), scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}
	return &Codec{key: key}, nil
}

// Encrypt encrypts the UTF-8 plaintext with a fresh random 16-byte IV and
// returns hex-encoded ciphertext and IV.
func (c *Codec) Encrypt(plaintext string) (domain.EncryptedField, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return domain.EncryptedField{}, fmt.Errorf("generate IV: %w", err)
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return domain.EncryptedField{}, err
	}
	padded := pad([]byte(plaintext))
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	return domain.EncryptedField{
		Ciphertext: hex.EncodeToString(ct),
		IV:         hex.EncodeToString(iv),
	}, nil
}

// Decrypt reverses Encrypt. A pair with either half missing, or any malformed
// or tampered input, returns "" — the read path must never break on bad
// ciphertext.
func (c *Codec) Decrypt(f domain.EncryptedField) string {
	if f.Ciphertext == "" || f.IV == "" {
		return ""
	}
	plaintext, err := c.decrypt(f)
	if err != nil {
		slog.Warn("field decryption failed", "err", err)
		return ""
	}
	return plaintext
}

func (c *Codec) decrypt(f domain.EncryptedField) (string, error) {
	iv, err := hex.DecodeString(f.IV)
	if err != nil {
		return "", fmt.Errorf("decode IV: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return "", errors.New("bad IV length")
	}
	ct, err := hex.DecodeString(f.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", errors.New("bad ciphertext length")
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	return unpad(pt)
}

// pad applies PKCS#7 padding to a whole number of AES blocks.
func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte) (string, error) {
	n := int(b[len(b)-1])
	if n < 1 || n > aes.BlockSize || n > len(b) {
		return "", errors.New("bad padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return "", errors.New("bad padding")
		}
	}
	return string(b[:len(b)-n]), nil
}
