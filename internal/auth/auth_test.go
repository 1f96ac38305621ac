package auth

import (
	"testing"

	"github.com/kickbot/kick/internal/store"
)

func newAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(store.NewInMemoryStore(), "secret")
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}
	return a
}

func TestNewAuthenticatorRequiresPassword(t *testing.T) {
	if _, err := NewAuthenticator(store.NewInMemoryStore(), ""); err == nil {
		t.Error("NewAuthenticator accepted empty password")
	}
}

func TestAuthenticate(t *testing.T) {
	a := newAuthenticator(t)

	if a.IsAuthenticated("u1") {
		t.Error("unknown user reported as authenticated")
	}

	ok, err := a.Authenticate("u1", "wrong")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}
	if a.IsAuthenticated("u1") {
		t.Error("user authenticated after wrong password")
	}

	ok, err = a.Authenticate("u1", "secret")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}
	if !a.IsAuthenticated("u1") {
		t.Error("user not authenticated after correct password")
	}
}

func TestAuthenticationIsPerUser(t *testing.T) {
	a := newAuthenticator(t)

	if _, err := a.Authenticate("u1", "secret"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if a.IsAuthenticated("u2") {
		t.Error("authentication leaked across users")
	}
}
