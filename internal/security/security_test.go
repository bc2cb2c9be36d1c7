package security

import (
	"testing"
	"time"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !VerifyPassword(hash, "s3cret-pass") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("expected wrong password to fail")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestSignAndParseAdminToken(t *testing.T) {
	token, err := SignAdminToken("test-secret", 42, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	claims, errParse := ParseAdminToken("test-secret", token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.AdminID != 42 {
		t.Fatalf("expected admin_id=42, got %d", claims.AdminID)
	}
}

func TestParseAdminToken_WrongSecret(t *testing.T) {
	token, err := SignAdminToken("secret-a", 7, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, errParse := ParseAdminToken("secret-b", token); errParse == nil {
		t.Fatal("expected parse to fail with wrong secret")
	}
}

func TestParseAdminToken_Expired(t *testing.T) {
	token, err := SignAdminToken("test-secret", 7, -time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, errParse := ParseAdminToken("test-secret", token); errParse == nil {
		t.Fatal("expected parse to fail for expired token")
	}
}

func TestGenerateAndValidateTOTP(t *testing.T) {
	secret, url, err := GenerateTOTPSecret("admin@example.com")
	if err != nil {
		t.Fatalf("generate totp: %v", err)
	}
	if secret == "" || url == "" {
		t.Fatal("expected non-empty secret and url")
	}
	if ValidateTOTP(secret, "000000") {
		t.Fatal("expected arbitrary code to fail")
	}
	if ValidateTOTP("", "123456") || ValidateTOTP(secret, "") {
		t.Fatal("expected empty inputs to fail")
	}
}
