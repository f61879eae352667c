package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidToken is returned for every verification failure. Callers get
// one generic error so the response never reveals whether a token was
// malformed, forged or merely expired.
var ErrInvalidToken = errors.New("invalid or expired download token")

// DownloadTokenClaims is the signed payload of a download capability token.
// Nothing is persisted for these tokens; the claims are reconstructed from
// the token itself on verification.
type DownloadTokenClaims struct {
	ResourceID string `json:"resource_id"`
	ExpiresAt  int64  `json:"exp"`
}

// GenerateDownloadToken issues a stateless, time-limited capability token
// granting access to one resource. Tokens cannot be revoked before expiry.
func GenerateDownloadToken(resourceID string, ttl time.Duration, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required for token generation")
	}
	if resourceID == "" {
		return "", errors.New("resource id is required")
	}
	claims := DownloadTokenClaims{
		ResourceID: resourceID,
		ExpiresAt:  time.Now().Add(ttl).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	sig := mac.Sum(nil)
	token := fmt.Sprintf("%s.%s", base64.RawURLEncoding.EncodeToString(payload), base64.RawURLEncoding.EncodeToString(sig))
	return token, nil
}

// VerifyDownloadToken checks the signature and expiry of a token and returns
// the resource id it grants. Signature comparison is constant-time.
func VerifyDownloadToken(token, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required for token verification")
	}
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", ErrInvalidToken
	}
	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalidToken
	}
	sigBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalidToken
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payloadBytes)
	expected := mac.Sum(nil)
	if !hmac.Equal(sigBytes, expected) {
		return "", ErrInvalidToken
	}
	var claims DownloadTokenClaims
	if err := json.Unmarshal(payloadBytes, &claims); err != nil {
		return "", ErrInvalidToken
	}
	if time.Now().Unix() > claims.ExpiresAt {
		return "", ErrInvalidToken
	}
	return claims.ResourceID, nil
}
