// Package sign implements the shared-token request and response signatures.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

// TokenHeader carries the hashed token on every request.
const TokenHeader = "X-Judge-Server-Token"

const keyInfo = "sentinel-judge signature v1"

// HashToken returns the hex sha256 of the raw shared token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Signer signs and verifies payloads with a key derived from the shared token.
// It is immutable after construction and safe for concurrent use.
type Signer struct {
	tokenHash string
	key       []byte
	window    time.Duration
	now       func() time.Time
}

// NewSigner hashes token once and derives the HMAC key from the hash.
func NewSigner(token string, window time.Duration) (*Signer, error) {
	if token == "" {
		return nil, domain.ErrMissingToken
	}
	if window <= 0 {
		window = 60 * time.Second
	}

	tokenHash := HashToken(token)
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(tokenHash), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}

	return &Signer{
		tokenHash: tokenHash,
		key:       key,
		window:    window,
		now:       time.Now,
	}, nil
}

// TokenHash is the value expected in TokenHeader.
func (s *Signer) TokenHash() string {
	return s.tokenHash
}

// Window is the accepted clock skew for request timestamps.
func (s *Signer) Window() time.Duration {
	return s.window
}

// Now returns the signer's clock as a unix timestamp.
func (s *Signer) Now() int64 {
	return s.now().Unix()
}

// Sign returns hex(HMAC(key, "<timestamp>\n<payload>")).
func (s *Signer) Sign(payload []byte, timestamp int64) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte{'\n'})
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature and that timestamp lies inside the window.
func (s *Signer) Verify(payload []byte, timestamp int64, signature string) error {
	want := s.Sign(payload, timestamp)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return domain.ErrSignatureMismatch
	}

	skew := s.now().Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > s.window {
		return domain.ErrStaleTimestamp
	}
	return nil
}

// CheckToken compares a TokenHeader value with the configured token hash.
func (s *Signer) CheckToken(header string) error {
	if subtle.ConstantTimeCompare([]byte(header), []byte(s.tokenHash)) != 1 {
		return domain.ErrTokenMismatch
	}
	return nil
}

// WithClock returns a copy of s that reads time from now. Used by tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	c := *s
	c.now = now
	return &c
}
