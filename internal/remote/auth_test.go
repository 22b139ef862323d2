package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func authServer(t *testing.T) (*httptest.Server, *string) {
	t.Helper()
	var lastEndpoint string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastEndpoint = r.URL.Path
		if r.URL.Query().Get("key") != "api-key" {
			http.Error(w, `{"error":{"message":"INVALID_API_KEY"}}`, http.StatusBadRequest)
			return
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["password"] == "wrong" {
			http.Error(w, `{"error":{"message":"INVALID_PASSWORD"}}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"localId":      "uid-1",
			"email":        req["email"],
			"idToken":      "id-token",
			"refreshToken": "refresh-token",
			"expiresIn":    "3600",
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &lastEndpoint
}

func TestSignIn(t *testing.T) {
	srv, endpoint := authServer(t)
	a := NewAuthClient(srv.URL, "api-key", nil)

	creds, err := a.SignIn(context.Background(), "me@example.test", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if creds.UID != "uid-1" || creds.IDToken != "id-token" {
		t.Errorf("creds = %+v", creds)
	}
	if creds.TTL != time.Hour {
		t.Errorf("TTL = %v, want 1h", creds.TTL)
	}
	if *endpoint != "/accounts:signInWithPassword" {
		t.Errorf("endpoint = %q", *endpoint)
	}
}

func TestSignUp(t *testing.T) {
	srv, endpoint := authServer(t)
	a := NewAuthClient(srv.URL, "api-key", nil)

	if _, err := a.SignUp(context.Background(), "new@example.test", "secret"); err != nil {
		t.Fatal(err)
	}
	if *endpoint != "/accounts:signUp" {
		t.Errorf("endpoint = %q", *endpoint)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	srv, _ := authServer(t)
	a := NewAuthClient(srv.URL, "api-key", nil)

	_, err := a.SignIn(context.Background(), "me@example.test", "wrong")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
	if authErr.Code != "INVALID_PASSWORD" {
		t.Errorf("code = %q, want INVALID_PASSWORD", authErr.Code)
	}
}

func TestSendPasswordReset(t *testing.T) {
	srv, endpoint := authServer(t)
	a := NewAuthClient(srv.URL, "api-key", nil)

	if err := a.SendPasswordReset(context.Background(), "me@example.test"); err != nil {
		t.Fatal(err)
	}
	if *endpoint != "/accounts:sendOobCode" {
		t.Errorf("endpoint = %q", *endpoint)
	}
}
