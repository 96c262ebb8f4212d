package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
)

// Envelope layout, fixed-width fields before the variable-length
// ciphertext: salt | iv | tag | ciphertext, base64-encoded at rest.
const (
	saltSize  = 16
	nonceSize = 12
	tagSize   = 16
	keySize   = 32
)

// Cipher performs the vault's envelope encryption. Every value gets
// its own random salt and nonce; the content key is derived per-value
// from the master key via PBKDF2-SHA256 so a leak of one derived key
// exposes one value only. The iteration count is the configured cost
// bound, intentionally slow.
type Cipher struct {
	masterKey  []byte
	iterations int
}

// NewCipher validates the master key once at startup. Callers treat a
// returned error as fatal.
func NewCipher(masterKey []byte, iterations int) (*Cipher, error) {
	if len(masterKey) != keySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", keySize, len(masterKey))
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("kdf iterations must be greater than 0")
	}
	return &Cipher{masterKey: masterKey, iterations: iterations}, nil
}

// Encrypt seals plaintext into a base64 envelope.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the envelope stores it
	// in front so the fixed-width fields stay contiguous.
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	envelope := make([]byte, 0, saltSize+nonceSize+tagSize+len(ciphertext))
	envelope = append(envelope, salt...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, tag...)
	envelope = append(envelope, ciphertext...)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt opens a base64 envelope. Any corruption, truncation or
// master-key mismatch fails with ErrDecryptionFailed; the tag is
// verified before a single plaintext byte is returned.
func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	envelope, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64", domain.ErrDecryptionFailed)
	}

	if len(envelope) < saltSize+nonceSize+tagSize {
		return nil, fmt.Errorf("%w: envelope too short", domain.ErrDecryptionFailed)
	}

	salt := envelope[:saltSize]
	nonce := envelope[saltSize : saltSize+nonceSize]
	tag := envelope[saltSize+nonceSize : saltSize+nonceSize+tagSize]
	ciphertext := envelope[saltSize+nonceSize+tagSize:]

	gcm, err := c.aead(salt)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication tag mismatch", domain.ErrDecryptionFailed)
	}

	return plaintext, nil
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.masterKey, salt, c.iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}
