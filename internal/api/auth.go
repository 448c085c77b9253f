package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// AuthClient binds the authentication endpoints. Unlike Client it does not
// carry a TokenSource: login and refresh run before a usable token exists,
// and Me takes its access token explicitly so the session manager can
// validate a candidate token without going through the gateway.
type AuthClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAuthClient creates a client for the /auth endpoint group.
func NewAuthClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *AuthClient {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &AuthClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// loginResponse mirrors the backend's login/signup envelope.
type loginResponse struct {
	Success bool `json:"success"`
	User    struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Role     string `json:"role"`
		DriverID string `json:"driverId"`
	} `json:"user"`
	Data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"data"`
}

// Login exchanges email and password for a token pair and identity.
// A 400 or 401 response classifies as ErrInvalidCredentials — this is the
// only place that sentinel is produced.
func (a *AuthClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	var parsed loginResponse

	status, err := a.post(ctx, "/auth/login", body, "", &parsed)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized || status == http.StatusBadRequest {
		return nil, &APIError{StatusCode: status, Err: ErrInvalidCredentials}
	}

	if sentinel := classifyStatus(status); sentinel != nil {
		return nil, &APIError{StatusCode: status, Err: sentinel}
	}

	a.logger.Info("login succeeded",
		slog.String("user_id", parsed.User.ID),
		slog.String("role", parsed.User.Role),
	)

	return &LoginResult{
		User: User{
			ID:       parsed.User.ID,
			Name:     parsed.User.Name,
			Email:    parsed.User.Email,
			Role:     parsed.User.Role,
			DriverID: parsed.User.DriverID,
		},
		Credentials: Credentials{
			AccessToken:  parsed.Data.AccessToken,
			RefreshToken: parsed.Data.RefreshToken,
		},
	}, nil
}

// SignupRequest provisions a new account (admin console flow).
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"` // admin or driver
	TruckID  string `json:"truckId,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Signup registers a new user and returns the minted session, same envelope
// as Login.
func (a *AuthClient) Signup(ctx context.Context, req SignupRequest) (*LoginResult, error) {
	var parsed loginResponse

	status, err := a.post(ctx, "/auth/signup", req, "", &parsed)
	if err != nil {
		return nil, err
	}

	if sentinel := classifyStatus(status); sentinel != nil {
		return nil, &APIError{StatusCode: status, Err: sentinel}
	}

	return &LoginResult{
		User: User{
			ID:       parsed.User.ID,
			Name:     parsed.User.Name,
			Email:    parsed.User.Email,
			Role:     parsed.User.Role,
			DriverID: parsed.User.DriverID,
		},
		Credentials: Credentials{
			AccessToken:  parsed.Data.AccessToken,
			RefreshToken: parsed.Data.RefreshToken,
		},
	}, nil
}

// Refresh exchanges a refresh token for a new access token. Any rejection
// classifies as ErrUnauthorized: the refresh token is spent or revoked and
// the session cannot be recovered at this layer.
func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (string, error) {
	body := map[string]string{"refreshToken": refreshToken}

	var parsed struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}

	status, err := a.post(ctx, "/auth/refresh", body, "", &parsed)
	if err != nil {
		return "", err
	}

	if sentinel := classifyStatus(status); sentinel != nil {
		return "", &APIError{StatusCode: status, Err: ErrUnauthorized}
	}

	if parsed.Data.AccessToken == "" {
		return "", fmt.Errorf("api: refresh response missing access token: %w", ErrUnauthorized)
	}

	return parsed.Data.AccessToken, nil
}

// Logout asks the server to invalidate the refresh token. Callers treat
// failures as best-effort: the session manager always clears local state
// regardless of the outcome here.
func (a *AuthClient) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refreshToken": refreshToken}

	status, err := a.post(ctx, "/auth/logout", body, "", nil)
	if err != nil {
		return err
	}

	if sentinel := classifyStatus(status); sentinel != nil {
		return &APIError{StatusCode: status, Err: sentinel}
	}

	return nil
}

// Me fetches the current-user profile using an explicit access token.
// Used by the session manager to validate a stored token on startup and to
// recover identity after a cold-reload refresh.
func (a *AuthClient) Me(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("api: request canceled: %w", ctx.Err())
		}

		return nil, netError("GET /auth/me", err)
	}
	defer resp.Body.Close()

	if sentinel := classifyStatus(resp.StatusCode); sentinel != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Err: sentinel}
	}

	var parsed struct {
		Data struct {
			User struct {
				ID    string `json:"_id"`
				Name  string `json:"name"`
				Email string `json:"email"`
				Role  string `json:"role"`
			} `json:"user"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("api: decoding /auth/me response: %w", err)
	}

	return &User{
		ID:    parsed.Data.User.ID,
		Name:  parsed.Data.User.Name,
		Email: parsed.Data.User.Email,
		Role:  parsed.Data.User.Role,
	}, nil
}

// post sends a JSON body and decodes the response into out when the status
// is 2xx. It returns the status code so callers apply endpoint-specific
// classification (login treats 401 differently from refresh).
func (a *AuthClient) post(ctx context.Context, path string, body any, accessToken string, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("api: encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("api: creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("api: request canceled: %w", ctx.Err())
		}

		return 0, netError("POST "+path, err)
	}
	defer resp.Body.Close()

	if classifyStatus(resp.StatusCode) != nil || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("api: decoding %s response: %w", path, err)
	}

	return resp.StatusCode, nil
}
