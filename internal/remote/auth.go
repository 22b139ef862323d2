package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultAuthURL = "https://identitytoolkit.googleapis.com/v1"

// AuthError carries the backend's error code (e.g. EMAIL_NOT_FOUND,
// INVALID_PASSWORD, EMAIL_EXISTS) so callers can render user-facing text.
type AuthError struct {
	Code string
}

func (e *AuthError) Error() string {
	return "auth: " + e.Code
}

// Credentials are issued by the auth endpoint on sign-up or sign-in.
type Credentials struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	TTL          time.Duration
}

// AuthClient speaks the hosted identity service's REST endpoints.
type AuthClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewAuthClient creates an auth client. baseURL may be empty for the
// hosted default; it is overridable for tests and emulators.
func NewAuthClient(baseURL, apiKey string, logger *zap.Logger) *AuthClient {
	if baseURL == "" {
		baseURL = defaultAuthURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type authResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// SignIn exchanges email/password for credentials.
func (a *AuthClient) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	return a.credentialCall(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

// SignUp registers a new account and returns its credentials.
func (a *AuthClient) SignUp(ctx context.Context, email, password string) (*Credentials, error) {
	return a.credentialCall(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

// Refresh exchanges a refresh token for a new id token.
func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	endpoint := a.baseURL + "/token?key=" + a.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("auth: token: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Code: authErrorCode(body)}
	}
	var tr struct {
		UserID       string `json:"user_id"`
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("auth: decode token response: %w", err)
	}
	ttl := time.Hour
	if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	return &Credentials{
		UID:          tr.UserID,
		IDToken:      tr.IDToken,
		RefreshToken: tr.RefreshToken,
		TTL:          ttl,
	}, nil
}

// SendPasswordReset asks the identity service to email a reset link.
func (a *AuthClient) SendPasswordReset(ctx context.Context, email string) error {
	_, err := a.post(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	})
	return err
}

func (a *AuthClient) credentialCall(ctx context.Context, endpoint string, payload map[string]any) (*Credentials, error) {
	body, err := a.post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("auth: decode response: %w", err)
	}
	ttl := time.Hour
	if secs, err := strconv.Atoi(resp.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	return &Credentials{
		UID:          resp.LocalID,
		Email:        resp.Email,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		TTL:          ttl,
	}, nil
}

func (a *AuthClient) post(ctx context.Context, endpoint string, payload map[string]any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("auth: encode request: %w", err)
	}
	url := a.baseURL + "/" + endpoint + "?key=" + a.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("auth: %s: read response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Code: authErrorCode(body)}
	}
	return body, nil
}

func authErrorCode(body []byte) string {
	var wrapper struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil || wrapper.Error.Message == "" {
		return "UNKNOWN"
	}
	return wrapper.Error.Message
}
