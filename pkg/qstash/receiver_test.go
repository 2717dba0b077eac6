package qstash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, key, subject string, body []byte, now time.Time) string {
	t.Helper()

	sum := sha256.Sum256(body)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, signatureClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    signatureIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
		},
		Body: base64.URLEncoding.EncodeToString(sum[:]),
	})
	signed, err := token.SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestReceiverVerify(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	body := []byte(`{"name":"J. de Vries"}`)
	const url = "https://quotes.example.com/leads"

	r, err := NewReceiver("current", "next")
	if err != nil {
		t.Fatalf("NewReceiver() error = %v", err)
	}
	r.now = func() time.Time { return now }

	tests := []struct {
		name      string
		signature string
		body      []byte
		url       string
		wantErr   bool
	}{
		{name: "current key", signature: sign(t, "current", url, body, now), body: body, url: url},
		{name: "next key", signature: sign(t, "next", url, body, now), body: body, url: url},
		{name: "no url check", signature: sign(t, "current", url, body, now), body: body},
		{name: "unknown key", signature: sign(t, "other", url, body, now), body: body, url: url, wantErr: true},
		{name: "tampered body", signature: sign(t, "current", url, body, now), body: []byte(`{"name":"x"}`), url: url, wantErr: true},
		{name: "wrong url", signature: sign(t, "current", url, body, now), body: body, url: "https://evil.example.com", wantErr: true},
		{name: "expired", signature: sign(t, "current", url, body, now.Add(-time.Hour)), body: body, url: url, wantErr: true},
		{name: "empty", signature: "", body: body, url: url, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := r.Verify(tt.signature, tt.body, tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSignature) {
					t.Fatalf("expected ErrInvalidSignature, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
		})
	}
}

func TestNewReceiverRequiresCurrentKey(t *testing.T) {
	t.Parallel()

	if _, err := NewReceiver("  ", "next"); err == nil {
		t.Fatal("expected error for missing current key")
	}

	c := MustNew(Config{URL: "https://qstash.upstash.io", Token: "tok", CurrentSigningKey: "k"})
	if _, err := c.Receiver(); err != nil {
		t.Fatalf("Receiver() error = %v", err)
	}
}
