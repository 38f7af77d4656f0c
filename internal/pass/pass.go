package pass

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"ms-events/internal/models"

	"github.com/skip2/go-qrcode"
)

const qrSize = 256

var ErrInvalidPass = errors.New("invalid registration pass")

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// Encode renders pass as a PNG QR code carrying the sealed payload.
func (g *Generator) Encode(pass models.RegistrationPass) ([]byte, error) {
	payload, err := g.Seal(pass)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(payload, qrcode.Medium, qrSize)
}

// Seal encrypts pass into the base64url string stored in the QR code.
func (g *Generator) Seal(pass models.RegistrationPass) (string, error) {
	data, err := json.Marshal(pass)
	if err != nil {
		return "", err
	}

	gcm, err := g.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decode reverses Seal. Tampered or foreign payloads give ErrInvalidPass.
func (g *Generator) Decode(payload string) (*models.RegistrationPass, error) {
	raw, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}

	gcm, err := g.aead()
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrInvalidPass
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}

	var pass models.RegistrationPass
	if err := json.Unmarshal(data, &pass); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	return &pass, nil
}

func (g *Generator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(g.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
