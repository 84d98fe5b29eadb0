package service

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/instafly/instafly/internal/app/config"
	appErrors "github.com/instafly/instafly/internal/app/errors"
)

type (
	TokenService interface {
		GetUserEmail(tokenString string) (string, error)
		GenerateToken(userEmail string) (string, error)
	}

	TokenServiceImpl struct {
		secretKey     []byte
		tokenLifetime time.Duration
	}

	authClaims struct {
		jwt.RegisteredClaims
		UserEmail string `json:"user_email"`
	}
)

// The email claim is re-validated on every parse so a token minted for a
// non-email subject is rejected even when the signature checks out.
var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,4}$`)

func NewTokenService(cfg config.AppConfig) *TokenServiceImpl {
	return &TokenServiceImpl{
		secretKey:     []byte(cfg.TokenSecretKey),
		tokenLifetime: time.Duration(cfg.TokenLifetimeSec) * time.Second,
	}
}

func (ts TokenServiceImpl) GenerateToken(userEmail string) (string, error) {
	now := time.Now()
	claims := authClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "instafly",
			Subject:   userEmail,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.tokenLifetime)),
		},
		UserEmail: userEmail,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secretKey)
}

func (ts TokenServiceImpl) GetUserEmail(tokenString string) (string, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, ts.keyFunc)
	if err != nil {
		return "", appErrors.New(err, "failed to parse token")
	}
	if !token.Valid {
		return "", appErrors.New(errors.New("token error"), "token is not valid")
	}
	if !emailRegex.MatchString(claims.UserEmail) {
		return "", appErrors.New(errors.New("token error"), "invalid email in token")
	}
	return claims.UserEmail, nil
}

func (ts TokenServiceImpl) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return ts.secretKey, nil
}
