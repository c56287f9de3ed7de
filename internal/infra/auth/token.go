package auth

/*
token.go: client credentials flow к provisioning API.

Токен кэшируется и обновляется за refreshBefore до истечения. Срок берется из
expires_in ответа, а если его нет, из claim exp самого токена (подпись не
проверяется, нам нужен только срок). Токен без срока живет до конца прогона.
Повторяются только сетевые ошибки; ответ не 200 окончательный.
*/

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/obt-migrator/internal/infra"
)

// ErrTokenRejected: сервер токенов ответил не 200 или без access_token.
var ErrTokenRejected = errors.New("token request rejected")

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type Options struct {
	Attempts      uint
	RetryDelay    time.Duration
	RefreshBefore time.Duration
}

type TokenSource struct {
	client *http.Client
	creds  Credentials
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time // нулевое: срок неизвестен
	now    func() time.Time
}

func NewTokenSource(client *http.Client, creds Credentials, opts Options, logger *zap.Logger) *TokenSource {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	return &TokenSource{
		client: client,
		creds:  creds,
		opts:   opts,
		logger: logger.Named("auth"),
		now:    time.Now,
	}
}

// Token возвращает актуальный токен, при необходимости запрашивая новый.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.expiry.IsZero() || s.now().Add(s.opts.RefreshBefore).Before(s.expiry)) {
		return s.token, nil
	}

	var resp tokenResponse
	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(s.opts.Attempts),
		retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
			return s.opts.RetryDelay * time.Duration(n+1)
		}),
	).Do(func() error {
		var callErr error
		resp, callErr = s.request(ctx)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("acquire token: %w", err)
	}

	s.token = resp.AccessToken
	s.expiry = s.expiryOf(resp)

	s.logger.Info("access token acquired", zap.Time("expires_at", s.expiry))
	return s.token, nil
}

func (s *TokenSource) request(ctx context.Context) (tokenResponse, error) {
	form := url.Values{"grant_type": {"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.creds.BaseURL+infra.TokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, retry.Unrecoverable(fmt.Errorf("build token request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.creds.ClientID, s.creds.ClientSecret)

	res, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("token request failed", zap.Error(err))
		return tokenResponse{}, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return tokenResponse{}, err
	}
	if res.StatusCode != http.StatusOK {
		return tokenResponse{}, retry.Unrecoverable(fmt.Errorf("%w: status %d: %s", ErrTokenRejected, res.StatusCode, body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return tokenResponse{}, retry.Unrecoverable(fmt.Errorf("decode token response: %w", err))
	}
	if tr.AccessToken == "" {
		return tokenResponse{}, retry.Unrecoverable(fmt.Errorf("%w: empty access_token", ErrTokenRejected))
	}
	return tr, nil
}

func (s *TokenSource) expiryOf(tr tokenResponse) time.Time {
	if tr.ExpiresIn > 0 {
		return s.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	// Непрозрачный токен: срок неизвестен
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Headers: заголовки авторизации для вызова API.
func (s *TokenSource) Headers(ctx context.Context) (http.Header, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return http.Header{"Authorization": []string{"Bearer " + token}}, nil
}
