package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSigningSecretMissing = errors.New("signing secret missing")
	ErrTokenMalformed       = errors.New("malformed download token")
	ErrTokenSignature       = errors.New("invalid download token signature")
	ErrTokenExpired         = errors.New("download token expired")
)

// SignedURLSigner issues short-lived download tokens for evidence objects.
// A token is two base64url segments: the claims (object id, unix expiry and
// relative path joined by newlines) and their HMAC-SHA256.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer; a non-positive ttl defaults to one day.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL reports how long issued tokens stay valid.
func (s *SignedURLSigner) TTL() time.Duration {
	return s.ttl
}

// Generate signs objectID and relPath and returns the token with its expiry.
func (s *SignedURLSigner) Generate(objectID, relPath string) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrSigningSecretMissing
	}
	if objectID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("%w: object id and path required", ErrTokenMalformed)
	}
	if strings.ContainsRune(objectID, '\n') || strings.ContainsRune(relPath, '\n') {
		return "", time.Time{}, fmt.Errorf("%w: newline in claims", ErrTokenMalformed)
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	claims := strings.Join([]string{objectID, strconv.FormatInt(expiresAt.Unix(), 10), relPath}, "\n")
	body := base64.RawURLEncoding.EncodeToString([]byte(claims))
	return body + "." + base64.RawURLEncoding.EncodeToString(s.sign(body)), expiresAt, nil
}

// Parse verifies token and returns its claims. allowExpired skips the expiry check.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (objectID, relPath string, expiresAt time.Time, err error) {
	if len(s.secret) == 0 {
		return "", "", time.Time{}, ErrSigningSecretMissing
	}
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || strings.Contains(sig, ".") {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	rawSig, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	if !hmac.Equal(rawSig, s.sign(body)) {
		return "", "", time.Time{}, ErrTokenSignature
	}
	claims, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	parts := strings.SplitN(string(claims), "\n", 3)
	if len(parts) != 3 {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	expiresAt = time.Unix(exp, 0)
	if !allowExpired && !s.now().Before(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}
	return parts[0], parts[2], expiresAt, nil
}

func (s *SignedURLSigner) sign(body string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(body))
	return mac.Sum(nil)
}
