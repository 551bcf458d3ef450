package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Helper to generate fresh keys for each test
func generateTestKeys(t *testing.T) ([]byte, []byte) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}

	privBytes := x509.MarshalPKCS1PrivateKey(privateKey)
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: privBytes,
	})

	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	return privPEM, pubPEM
}

func TestTokenLifecycle(t *testing.T) {
	privPEM, pubPEM := generateTestKeys(t)
	signer, err := NewSigner(privPEM, pubPEM, "test-issuer")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	bidderID := uuid.New()

	// 1. Generate
	tokenString, expiry, err := signer.GenerateTokens(bidderID.String())
	if err != nil {
		t.Fatalf("GenerateTokens failed: %v", err)
	}
	if !expiry.After(time.Now()) {
		t.Errorf("expected expiry in the future, got %v", expiry)
	}

	// 2. Validate
	claims, err := signer.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	// 3. Verify Claims
	if claims.Sub != bidderID.String() {
		t.Errorf("got subject %s, want %s", claims.Sub, bidderID)
	}
	if claims.Iss != "test-issuer" {
		t.Errorf("got issuer %s, want test-issuer", claims.Iss)
	}
}

func TestSecurityScenarios(t *testing.T) {
	privPEM, pubPEM := generateTestKeys(t)
	signer, _ := NewSigner(privPEM, pubPEM, "test-issuer")

	validClaims := &Claims{
		Sub: uuid.New().String(),
		Iss: "test-issuer",
		Exp: time.Now().Add(time.Hour).Unix(),
		Iat: time.Now().Unix(),
	}

	t.Run("Rejects Expired Token", func(t *testing.T) {
		expiredClaims := &Claims{
			Sub: validClaims.Sub,
			Iss: validClaims.Iss,
			Exp: time.Now().Add(-1 * time.Hour).Unix(),
			Iat: time.Now().Add(-2 * time.Hour).Unix(),
		}

		token := jwt.NewWithClaims(jwt.SigningMethodRS256, expiredClaims)
		block, _ := pem.Decode(privPEM)
		pk, _ := x509.ParsePKCS1PrivateKey(block.Bytes)

		tokenString, _ := token.SignedString(pk)

		_, err := signer.ValidateToken(tokenString)
		if err == nil {
			t.Error("ValidateToken should have rejected expired token")
		}
	})

	t.Run("Rejects Wrong Key Signature", func(t *testing.T) {
		attackerPriv, _ := generateTestKeys(t)

		block, _ := pem.Decode(attackerPriv)
		attackerPK, _ := x509.ParsePKCS1PrivateKey(block.Bytes)

		token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims)
		tokenString, _ := token.SignedString(attackerPK)

		_, err := signer.ValidateToken(tokenString)
		if err == nil {
			t.Error("ValidateToken should have rejected token signed by wrong key")
		}
	})

	t.Run("Rejects HMAC Algorithm Confusion", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims)

		tokenString, _ := token.SignedString([]byte("some-secret"))

		_, err := signer.ValidateToken(tokenString)
		if err == nil {
			t.Error("ValidateToken should have rejected HS256 algorithm")
		}
		expectedError := "unexpected signing method: HS256"
		if !strings.Contains(err.Error(), expectedError) {
			t.Errorf("Expected error containing %q, got: %v", expectedError, err)
		}
	})

	t.Run("Rejects Malformed Token", func(t *testing.T) {
		_, err := signer.ValidateToken("this.is.garbage")
		if err == nil {
			t.Error("Should reject malformed string")
		}
	})
}

func TestNewSignerValidation(t *testing.T) {
	_, pubPEM := generateTestKeys(t)

	t.Run("Fails on invalid private key", func(t *testing.T) {
		_, err := NewSigner([]byte("not-a-pem"), pubPEM, "test-issuer")
		if err == nil {
			t.Error("Should fail on invalid private key")
		}
	})
}
