package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// ErrNotAuthenticated — в хранилище нет токенов сессии.
var ErrNotAuthenticated = errors.New("not authenticated")

// session сериализует конкурентные попытки обновления пары токенов.
// Два параллельных refresh одним и тем же refresh-токеном ротировали бы
// друг друга: первый удаляет запись, второй получает 401 и каскадно
// разлогинивает клиента. Поэтому refresh выполняет ровно одна горутина,
// остальные ждут её результата через pending-канал.
type session struct {
	mu      sync.Mutex
	pending chan struct{} // non-nil, пока идёт refresh; закрывается по завершении
	lastErr error         // результат последнего завершившегося refresh
}

func newSession() *session {
	return &session{}
}

// refreshShared — single-flight обёртка над refresh.
func (c *Client) refreshShared(ctx context.Context) error {
	c.session.mu.Lock()

	if ch := c.session.pending; ch != nil {
		// Кто-то уже обновляет пару: ждём его результат.
		c.session.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}

		c.session.mu.Lock()
		err := c.session.lastErr
		c.session.mu.Unlock()
		return err
	}

	ch := make(chan struct{})
	c.session.pending = ch
	c.session.mu.Unlock()

	err := c.refresh(ctx)

	c.session.mu.Lock()
	c.session.lastErr = err
	c.session.pending = nil
	close(ch)
	c.session.mu.Unlock()

	return err
}

// refresh выполняет ротацию пары через /auth/refresh-tokens.
func (c *Client) refresh(ctx context.Context) error {
	tokens, err := c.store.Load()
	if err != nil {
		return err
	}

	if tokens.Refresh == "" {
		return ErrNotAuthenticated
	}

	in := map[string]string{"refreshToken": tokens.Refresh}

	resp, body, err := c.roundTrip(ctx, http.MethodPost, "/auth/refresh-tokens", in, false)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp.StatusCode, body)
	}

	var pair AuthTokens
	if err := json.Unmarshal(body, &pair); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}

	return c.store.Save(Tokens{Access: pair.Access.Token, Refresh: pair.Refresh.Token})
}

// Identity — субъект и роль текущей сессии.
type Identity struct {
	UserID string `json:"sub"`
	Role   string `json:"role"`
}

// Identity декодирует полезную нагрузку access-токена без проверки
// подписи — ровно так сессию читает браузерный клиент. Годится только
// для отображения; авторизацию выполняет сервер.
func (c *Client) Identity() (*Identity, error) {
	tokens, err := c.store.Load()
	if err != nil {
		return nil, err
	}

	if tokens.Access == "" {
		return nil, ErrNotAuthenticated
	}

	parts := strings.Split(tokens.Access, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed access token")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode token payload: %w", err)
	}

	var identity Identity
	if err := json.Unmarshal(payload, &identity); err != nil {
		return nil, fmt.Errorf("parse token payload: %w", err)
	}

	return &identity, nil
}
