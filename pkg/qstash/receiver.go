package qstash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const signatureIssuer = "Upstash"

var ErrInvalidSignature = errors.New("qstash signature is invalid")

// Receiver verifies the Upstash-Signature header QStash puts on every delivery.
// The header is an HS256 JWT signed with the current or the next signing key.
type Receiver struct {
	keys []string
	now  func() time.Time
}

type signatureClaims struct {
	jwt.RegisteredClaims
	Body string `json:"body"`
}

func NewReceiver(currentSigningKey, nextSigningKey string) (*Receiver, error) {
	current := strings.TrimSpace(currentSigningKey)
	if current == "" {
		return nil, errors.New("qstash current signing key is required")
	}
	keys := []string{current}
	if next := strings.TrimSpace(nextSigningKey); next != "" {
		keys = append(keys, next)
	}
	return &Receiver{keys: keys, now: time.Now}, nil
}

// Receiver builds a Receiver from the client's signing keys.
func (c *Client) Receiver() (*Receiver, error) {
	return NewReceiver(c.currentSigningKey, c.nextSigningKey)
}

// Verify checks signature against body. When url is non-empty it must match
// the token subject.
func (r *Receiver) Verify(signature string, body []byte, url string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}

	var lastErr error
	for _, key := range r.keys {
		err := r.verifyWithKey(key, signature, body, url)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (r *Receiver) verifyWithKey(key, signature string, body []byte, url string) error {
	claims := &signatureClaims{}
	_, err := jwt.ParseWithClaims(signature, claims,
		func(*jwt.Token) (any, error) { return []byte(key), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(signatureIssuer),
		jwt.WithLeeway(time.Second),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if url != "" && claims.Subject != url {
		return fmt.Errorf("%w: subject %q does not match %q", ErrInvalidSignature, claims.Subject, url)
	}

	sum := sha256.Sum256(body)
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	if strings.TrimRight(claims.Body, "=") != want {
		return fmt.Errorf("%w: body hash mismatch", ErrInvalidSignature)
	}
	return nil
}
