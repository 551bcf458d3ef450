package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the set of JWT claims the core reads off a bearer token minted
// by the (out-of-scope) auth service.
type Claims struct {
	Sub string `json:"sub"`
	Iss string `json:"iss"`
	Exp int64  `json:"exp"`
	Iat int64  `json:"iat"`
}

// Ensure Claims implements jwt.Claims
var _ jwt.Claims = (*Claims)(nil)

func (c *Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

func (c *Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Iat, 0)), nil
}

func (c *Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

func (c *Claims) GetIssuer() (string, error) {
	return c.Iss, nil
}

func (c *Claims) GetSubject() (string, error) {
	return c.Sub, nil
}

func (c *Claims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}

// Signer handles token generation and validation. The core never signs
// tokens in production — only NewSignerFromPublicKey is used by the
// request facade; NewSigner exists for tests that need to mint a token to
// validate.
type Signer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
}

// NewSigner creates a Signer from PEM-encoded keys (for tests that sign
// tokens).
func NewSigner(privateKeyPEM, publicKeyPEM []byte, issuer string) (*Signer, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("failed to parse private key PEM")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	blockPub, _ := pem.Decode(publicKeyPEM)
	if blockPub == nil {
		return nil, errors.New("failed to parse public key PEM")
	}
	pub, err := x509.ParsePKIXPublicKey(blockPub.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}

	return &Signer{
		privateKey: priv,
		publicKey:  rsaPub,
		issuer:     issuer,
	}, nil
}

// NewSignerFromPublicKey creates a Signer with only the public key (for
// services that only validate tokens). This signer cannot generate tokens.
func NewSignerFromPublicKey(publicKeyPEM []byte, issuer string) (*Signer, error) {
	blockPub, _ := pem.Decode(publicKeyPEM)
	if blockPub == nil {
		return nil, errors.New("failed to parse public key PEM")
	}
	pub, err := x509.ParsePKIXPublicKey(blockPub.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}

	return &Signer{
		privateKey: nil, // No private key - cannot sign tokens
		publicKey:  rsaPub,
		issuer:     issuer,
	}, nil
}

// GenerateTokens creates a short-lived access token for subject (a bidder
// id). Only used by tests.
func (s *Signer) GenerateTokens(subject string) (accessToken string, expiry time.Time, err error) {
	now := time.Now()
	accessExpiry := now.Add(15 * time.Minute)

	claims := &Claims{
		Sub: subject,
		Iss: s.issuer,
		Exp: accessExpiry.Unix(),
		Iat: now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, accessExpiry, nil
}

// ValidateToken parses and verifies the JWT signature.
func (s *Signer) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
