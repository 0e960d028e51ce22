package auth

import (
	"net/http/httptest"
	"testing"
)

func newEnabledAuth(t *testing.T) *Auth {
	t.Helper()
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return New("test-secret", "operator", hash, 60)
}

func TestLogin(t *testing.T) {
	a := newEnabledAuth(t)

	token, err := a.Login("operator", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Operator != "operator" {
		t.Errorf("operator = %q", claims.Operator)
	}

	if _, err := a.Login("operator", "wrong"); err == nil {
		t.Error("wrong password must be rejected")
	}
	if _, err := a.Login("somebody", "s3cret-pass"); err == nil {
		t.Error("unknown handle must be rejected")
	}
}

func TestDisabledMode(t *testing.T) {
	a := New("test-secret", "operator", "", 60)
	if a.Enabled() {
		t.Error("empty password hash should disable auth")
	}
	if _, err := a.Login("operator", "anything"); err == nil {
		t.Error("login must fail when disabled")
	}

	r := httptest.NewRequest("POST", "/api/posts", nil)
	if !a.Authorized(r) {
		t.Error("disabled auth leaves mutating routes open")
	}
}

func TestAuthorized(t *testing.T) {
	a := newEnabledAuth(t)

	r := httptest.NewRequest("POST", "/api/posts", nil)
	if a.Authorized(r) {
		t.Error("request without token must be rejected")
	}

	token, err := a.Login("operator", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	r.Header.Set("Authorization", "Bearer "+token)
	if !a.Authorized(r) {
		t.Error("request with valid token must pass")
	}

	r.Header.Set("Authorization", "Bearer not-a-token")
	if a.Authorized(r) {
		t.Error("garbage token must be rejected")
	}
}

func TestTokenFromOtherSecret(t *testing.T) {
	a := newEnabledAuth(t)
	other := New("different-secret", "operator", a.passwordHash, 60)

	token, err := other.Login("operator", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := a.ValidateToken(token); err == nil {
		t.Error("token signed with another secret must not validate")
	}
}
