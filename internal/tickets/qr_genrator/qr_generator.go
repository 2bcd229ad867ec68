package qr

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
	"ms-checkin/internal/apperr"
	"ms-checkin/internal/models"
	"time"

	"github.com/skip2/go-qrcode"
)

// Payload is what a ticket QR code carries once decrypted.
type Payload struct {
	TicketNumber string    `json:"ticketNumber"`
	Email        string    `json:"email,omitempty"`
	IssuedAt     time.Time `json:"issuedAt"`
}

type QRGenerator struct {
	secret []byte
	size   int
}

func NewQRGenerator(secret string, size int) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	if size <= 0 {
		size = 256
	}
	return &QRGenerator{secret: hashed[:], size: size}
}

// GenerateEncryptedQR renders a PNG QR code holding the encrypted payload of
// the ticket.
func (q *QRGenerator) GenerateEncryptedQR(ticket models.Ticket) ([]byte, error) {
	token, err := q.Encrypt(Payload{
		TicketNumber: ticket.TicketNumber,
		Email:        ticket.Email,
		IssuedAt:     ticket.IssuedAt.UTC(),
	})
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, q.size)
}

// Encrypt seals the payload with AES-GCM and returns it base64url encoded,
// nonce first.
func (q *QRGenerator) Encrypt(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	gcm, err := q.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a scanned token. Tampered or foreign tokens are validation
// errors, not storage errors.
func (q *QRGenerator) Decrypt(token string) (Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, apperr.Validation("qr code is not a ticket")
	}

	gcm, err := q.aead()
	if err != nil {
		return Payload{}, err
	}
	if len(raw) < gcm.NonceSize() {
		return Payload{}, apperr.Validation("qr code is not a ticket")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]

	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Payload{}, apperr.Validation("qr code signature mismatch")
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: qr payload: %v", apperr.ErrValidation, err)
	}
	p.TicketNumber = models.NormalizeTicketNumber(p.TicketNumber)
	if p.TicketNumber == "" {
		return Payload{}, errors.Join(apperr.ErrValidation, errors.New("qr payload has no ticket number"))
	}
	return p, nil
}

func (q *QRGenerator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(q.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
