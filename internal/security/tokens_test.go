package security

import (
	"testing"
	"time"
)

func TestTokenProvider_IssueAndValidate(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	token, jti, exp, err := p.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" || jti == "" {
		t.Fatal("token or jti empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	uid, jti2, exp2, err := p.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if uid != "u1" {
		t.Errorf("userID = %q, want %q", uid, "u1")
	}
	if jti2 != jti {
		t.Errorf("jti = %q, want %q", jti2, jti)
	}
	if exp2.Unix() != exp.Unix() {
		t.Errorf("expiry = %v, want %v", exp2, exp)
	}
}

func TestTokenProvider_UniqueJTI(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	_, jti1, _, err := p.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, jti2, _, err := p.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if jti1 == jti2 {
		t.Error("consecutive tokens must have distinct jti")
	}
}

func TestTokenProvider_ValidateInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	_, _, _, err = p.Validate("invalid-token")
	if err != ErrInvalidToken {
		t.Errorf("Validate invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateExpired(t *testing.T) {
	p, err := NewTestTokenProviderTTL(-1 * time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenProviderTTL: %v", err)
	}
	token, _, _, err := p.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, _, _, err = p.Validate(token)
	if err != ErrTokenExpired {
		t.Errorf("Validate expired token: want ErrTokenExpired, got %v", err)
	}
}

func TestTokenProvider_ValidateWrongIssuer(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	other := NewTokenProvider(signer, pub, "other-issuer", "test-audience", 15*time.Minute)
	token, _, _, err := other.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	_, _, _, err = p.Validate(token)
	if err != ErrInvalidToken {
		t.Errorf("Validate wrong issuer: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateWrongAudience(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	other := NewTokenProvider(signer, pub, "test-issuer", "other-audience", 15*time.Minute)
	token, _, _, err := other.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	_, _, _, err = p.Validate(token)
	if err != ErrInvalidToken {
		t.Errorf("Validate wrong audience: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ES256(t *testing.T) {
	signer, pub, err := GenerateEphemeralKey()
	if err != nil {
		t.Fatalf("GenerateEphemeralKey: %v", err)
	}
	p := NewTokenProvider(signer, pub, "test-issuer", "test-audience", 15*time.Minute)

	token, _, _, err := p.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	uid, _, _, err := p.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if uid != "u1" {
		t.Errorf("userID = %q, want %q", uid, "u1")
	}
}

func TestTokenProvider_TamperedToken(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, _, err := p.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tampered := token[:len(token)-4] + "AAAA"
	if _, _, _, err := p.Validate(tampered); err != ErrInvalidToken {
		t.Errorf("Validate tampered token: want ErrInvalidToken, got %v", err)
	}
}
