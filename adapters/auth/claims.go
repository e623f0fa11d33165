package auth

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims 是 access token 的內容
type Claims struct {
	Email         string `json:"email"`
	Nickname      string `json:"nickname,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

func jwtSubject(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: subject}
}

func (s *Service) signAccessToken(claims Claims, now time.Time) (string, time.Time, error) {
	const op = "signAccessToken"
	expiresAt := now.Add(s.config.AccessTokenTTL)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    s.config.Issuer,
		Subject:   claims.Subject,
		ID:        uuid.NewString(),
		Audience:  []string{s.config.Audience},
	}
	token := jwt.NewWithClaims(&jwt.SigningMethodEd25519{}, claims)
	signed, err := token.SignedString(s.config.PrivateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("[%s] Fail to sign JWT, err=%w", op, err)
	}
	return signed, expiresAt, nil
}

// ParseAndValidateJWT 驗證簽章、期限、issuer 與 audience
func ParseAndValidateJWT(tokenString string, key ed25519.PublicKey, issuer, audience string, now func() time.Time) (*Claims, error) {
	const op = "ParseAndValidateJWT"
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: token claims are invalid", op)
	}
	return claims, nil
}
