// Package secrets implements the two-tier credential scheme for stored
// game accounts: a one-way bcrypt digest used to prove possession, and a
// reversible AES-256-GCM ciphertext used to hand the password back to its
// owner. When encryption is unavailable the reversible tier degrades to a
// tagged plaintext value instead of losing the secret.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrDecryptFailed indicates a ciphertext that is malformed, tampered
	// with, or sealed under a different key.
	ErrDecryptFailed = errors.New("secrets: decrypt failed")
	// ErrCorruptDigest indicates a stored digest bcrypt cannot parse.
	ErrCorruptDigest = errors.New("secrets: corrupt digest")
	// ErrInvalidKey indicates key material that is not 32 hex-encoded bytes.
	ErrInvalidKey = errors.New("secrets: invalid key")
)

const gcmNonceSize = 12

// Column prefixes discriminate the two storage modes inside the single
// text column both backends share.
const (
	encryptedPrefix = "gcm:"
	plaintextPrefix = "plain:"
)

// Mode tags how a secret is stored.
type Mode int

const (
	// ModeEncrypted holds an AES-GCM ciphertext.
	ModeEncrypted Mode = iota
	// ModePlaintext holds the raw secret; produced only when encryption
	// was unavailable at write time.
	ModePlaintext
)

// StoredSecret is the reversible tier of a stored credential.
type StoredSecret struct {
	Mode  Mode
	Value string
}

// Encode renders the secret for the shared text column.
func (s StoredSecret) Encode() string {
	if s.Mode == ModePlaintext {
		return plaintextPrefix + s.Value
	}
	return encryptedPrefix + s.Value
}

// Decode parses a column value back into a StoredSecret. Values without a
// known prefix are treated as encrypted; Open reports ErrDecryptFailed on
// them rather than guessing.
func Decode(column string) StoredSecret {
	if rest, ok := strings.CutPrefix(column, plaintextPrefix); ok {
		return StoredSecret{Mode: ModePlaintext, Value: rest}
	}
	if rest, ok := strings.CutPrefix(column, encryptedPrefix); ok {
		return StoredSecret{Mode: ModeEncrypted, Value: rest}
	}
	return StoredSecret{Mode: ModeEncrypted, Value: column}
}

// Digest derives the one-way bcrypt digest of a secret.
func Digest(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("secrets: digest: %w", err)
	}
	return string(digest), nil
}

// VerifyDigest reports whether secret matches digest. A digest bcrypt
// cannot parse reports ErrCorruptDigest.
func VerifyDigest(secret, digest string) (bool, error) {
	errCompare := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	if errCompare == nil {
		return true, nil
	}
	if errors.Is(errCompare, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrCorruptDigest, errCompare)
}

// Cipher seals and opens account secrets under a shared AES-256 key.
// A Cipher without key material still works: it seals into plaintext mode
// so data is readable-but-marked-insecure instead of lost.
type Cipher struct {
	key []byte
}

// NewCipher builds a Cipher from a hex-encoded 32-byte key. An empty key
// yields a degraded cipher that only produces plaintext-mode secrets.
func NewCipher(hexKey string) (*Cipher, error) {
	trimmed := strings.TrimSpace(hexKey)
	if trimmed == "" {
		return &Cipher{}, nil
	}
	key, errDecode := hex.DecodeString(trimmed)
	if errDecode != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, errDecode)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: need 32 bytes, got %d", ErrInvalidKey, len(key))
	}
	return &Cipher{key: key}, nil
}

// Seal encrypts secret with a fresh random nonce, so sealing the same
// secret twice yields distinct ciphertexts. Encryption failure degrades to
// a plaintext-mode secret rather than failing the write.
func (c *Cipher) Seal(secret string) StoredSecret {
	if c == nil || len(c.key) == 0 {
		return StoredSecret{Mode: ModePlaintext, Value: secret}
	}
	nonce := make([]byte, gcmNonceSize)
	if _, errRead := io.ReadFull(rand.Reader, nonce); errRead != nil {
		return StoredSecret{Mode: ModePlaintext, Value: secret}
	}
	block, errBlock := aes.NewCipher(c.key)
	if errBlock != nil {
		return StoredSecret{Mode: ModePlaintext, Value: secret}
	}
	aead, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return StoredSecret{Mode: ModePlaintext, Value: secret}
	}
	sealed := aead.Seal(nonce, nonce, []byte(secret), nil)
	return StoredSecret{Mode: ModeEncrypted, Value: base64.StdEncoding.EncodeToString(sealed)}
}

// Open returns the plaintext of a stored secret. Plaintext-mode values are
// returned unchanged; encrypted values must authenticate under the key.
func (c *Cipher) Open(s StoredSecret) (string, error) {
	if s.Mode == ModePlaintext {
		return s.Value, nil
	}
	if c == nil || len(c.key) == 0 {
		return "", fmt.Errorf("%w: no key configured", ErrDecryptFailed)
	}
	raw, errDecode := base64.StdEncoding.DecodeString(s.Value)
	if errDecode != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, errDecode)
	}
	if len(raw) <= gcmNonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptFailed)
	}
	block, errBlock := aes.NewCipher(c.key)
	if errBlock != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, errBlock)
	}
	aead, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, errGCM)
	}
	plaintext, errOpen := aead.Open(nil, raw[:gcmNonceSize], raw[gcmNonceSize:], nil)
	if errOpen != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, errOpen)
	}
	return string(plaintext), nil
}
