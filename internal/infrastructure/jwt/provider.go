package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-push-dispatch/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload fields this service reads. Tokens are issued
// by the account service and may carry more.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Provider verifies RS256 JWTs. It signs only when a private key is configured.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
}

var ErrSigningDisabled = errors.New("jwt signing disabled: no private key")

// NewProvider loads the public key, which is required, and the private key
// when it exists.
func NewProvider(cfg *config.Config) (*Provider, error) {
	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	p := &Provider{publicKey: pubKey, expiry: cfg.JWTExpiry}

	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	p.privateKey = privKey
	return p, nil
}

// Sign issues a token for userID. Production tokens come from the account
// service; this is used by tests and local tooling.
func (p *Provider) Sign(userID string) (string, error) {
	if p.privateKey == nil {
		return "", ErrSigningDisabled
	}
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}
