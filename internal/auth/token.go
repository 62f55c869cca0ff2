// Package auth implements the HMAC-signed access tokens used for API sessions.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Claims is the payload carried inside an access token. Exp is a Unix
// timestamp; JTI identifies the token for revocation.
type Claims struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
	JTI  string `json:"jti"`
	Exp  int64  `json:"exp"`
}

var (
	ErrInvalidToken = errors.New("token is not valid")
	ErrExpiredToken = errors.New("token has expired")
)

var enc = base64.RawURLEncoding

// IssueToken produces a compact "payload.signature" token. The payload is
// the base64url JSON encoding of claims; the signature is HMAC-SHA256 over
// the encoded payload.
func IssueToken(secret []byte, claims Claims) (string, error) {
	body, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	encoded := enc.EncodeToString(body)
	return encoded + "." + hmacSign(secret, encoded), nil
}

// ParseToken verifies the signature before touching the payload, then
// rejects tokens with missing required claims or a past expiry.
func ParseToken(secret []byte, token string) (Claims, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(hmacSign(secret, encoded)), []byte(signature)) {
		return Claims{}, ErrInvalidToken
	}

	body, err := enc.DecodeString(encoded)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if json.Unmarshal(body, &claims) != nil {
		return Claims{}, ErrInvalidToken
	}

	switch {
	case claims.Sub == "", claims.JTI == "", claims.Exp == 0:
		return Claims{}, ErrInvalidToken
	case claims.Exp <= time.Now().Unix():
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

func hmacSign(secret []byte, encoded string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(encoded))
	return enc.EncodeToString(mac.Sum(nil))
}

// HashToken returns the hex SHA-256 digest used to key stored refresh
// tokens, so the raw token never touches the database.
func HashToken(value string) string {
	digest := sha256.Sum256([]byte(value))
	return hex.EncodeToString(digest[:])
}
