// Package github implements the forge port against the GitHub REST API,
// authenticating as a GitHub App.
package github

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// maxJWTDuration is the longest App JWT lifetime GitHub accepts.
const maxJWTDuration = 10 * time.Minute

// appJWT signs short-lived RS256 JWTs identifying the GitHub App.
type appJWT struct {
	appID      string
	privateKey *rsa.PrivateKey
	now        func() time.Time // for testing
}

func newAppJWT(appID string, privateKeyPEM []byte) (*appJWT, error) {
	if appID == "" {
		return nil, fmt.Errorf("app ID cannot be empty")
	}

	key, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &appJWT{appID: appID, privateKey: key, now: time.Now}, nil
}

// sign returns a JWT valid for the maximum allowed duration, with the App ID
// as issuer.
func (a *appJWT) sign() (string, error) {
	now := a.now()

	claims := jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(maxJWTDuration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// parsePrivateKey parses a PEM-encoded RSA private key in PKCS#1 or PKCS#8
// format.
func parsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse PKCS#8 key: %w", err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}

	return rsaKey, nil
}
