package venue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Эндпоинты OAuth брокера
const (
	pathIssueToken  = "/oauth2/tokenP"
	pathRevokeToken = "/oauth2/revokeP"
	pathApprovalKey = "/oauth2/Approval"
)

// Session управляет токенами доступа брокерского API
//
// Брокер выдаёт два независимых ключа:
//   - access token для REST запросов (Bearer)
//   - approval key для подписки на realtime WebSocket
//
// Токен действует сутки, повторный выпуск чаще раза в минуту
// отклоняется брокером, поэтому токен кешируется на весь день
type Session struct {
	baseURL   string
	appKey    string
	appSecret string

	httpClient *HTTPClient

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
}

// NewSession создаёт сессию брокерского API
func NewSession(baseURL, appKey, appSecret string) *Session {
	return &Session{
		baseURL:    baseURL,
		appKey:     appKey,
		appSecret:  appSecret,
		httpClient: GetGlobalHTTPClient(),
	}
}

// AccessToken возвращает текущий access token
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// IssueToken выпускает access token и сохраняет его в сессии
func (s *Session) IssueToken(ctx context.Context) (string, error) {
	body := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     s.appKey,
		"appsecret":  s.appSecret,
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Msg         string `json:"msg1"`
	}
	if err := s.postJSON(ctx, pathIssueToken, body, &resp); err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", &VenueError{Endpoint: pathIssueToken, Code: "empty", Message: resp.Msg}
	}

	s.mu.Lock()
	s.accessToken = resp.AccessToken
	s.expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	s.mu.Unlock()

	return resp.AccessToken, nil
}

// RevokeToken отзывает access token
// Вызывается при graceful shutdown, чтобы не упереться в лимит
// выпуска токенов при следующем запуске
func (s *Session) RevokeToken(ctx context.Context) error {
	s.mu.RLock()
	token := s.accessToken
	s.mu.RUnlock()
	if token == "" {
		return nil
	}

	body := map[string]string{
		"appkey":    s.appKey,
		"appsecret": s.appSecret,
		"token":     token,
	}

	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := s.postJSON(ctx, pathRevokeToken, body, &resp); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	s.mu.Lock()
	s.accessToken = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	return nil
}

// IssueApprovalKey выпускает ключ подключения к realtime WebSocket
func (s *Session) IssueApprovalKey(ctx context.Context) (string, error) {
	// В отличие от tokenP, здесь поле называется secretkey
	body := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     s.appKey,
		"secretkey":  s.appSecret,
	}

	var resp struct {
		ApprovalKey string `json:"approval_key"`
	}
	if err := s.postJSON(ctx, pathApprovalKey, body, &resp); err != nil {
		return "", fmt.Errorf("issue approval key: %w", err)
	}
	if resp.ApprovalKey == "" {
		return "", &VenueError{Endpoint: pathApprovalKey, Code: "empty", Message: "no approval_key in response"}
	}

	return resp.ApprovalKey, nil
}

// postJSON выполняет POST запрос без авторизации (OAuth эндпоинты)
func (s *Session) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return &VenueError{
			Endpoint: path,
			Code:     strconv.Itoa(resp.StatusCode),
			Message:  string(raw),
		}
	}

	return json.Unmarshal(raw, out)
}
