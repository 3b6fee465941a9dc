// client — Go-клиент магазина с управлением сессией: хранит пару
// access+refresh токенов, прозрачно обновляет её при 401 и повторяет
// исходный запрос один раз.
package client

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
)

const authMessage = "Please authenticate."

// APIError — ошибка уровня API: статус и сообщение из тела ответа.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// User — пользователь в ответах API.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	IsBanned  bool      `json:"isBanned"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TokenInfo — подписанный токен с моментом истечения.
type TokenInfo struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires"`
}

// AuthTokens — пара access+refresh из ответов register/login/refresh.
type AuthTokens struct {
	Access  TokenInfo `json:"access"`
	Refresh TokenInfo `json:"refresh"`
}

type authResponse struct {
	User   *User       `json:"user"`
	Tokens *AuthTokens `json:"tokens"`
}

// Product — товар каталога.
type Product struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Price              float64   `json:"price"`
	DiscountPercentage float64   `json:"discountPercentage"`
	DiscountPrice      float64   `json:"discountPrice"`
	Rating             float64   `json:"rating"`
	Stock              int64     `json:"stock"`
	Brand              string    `json:"brand"`
	Category           string    `json:"category"`
	Images             []string  `json:"images"`
	Colors             []string  `json:"colors,omitempty"`
	IsActive           bool      `json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ProductPage — страница каталога.
type ProductPage struct {
	Data      []Product `json:"data"`
	TotalDocs int64     `json:"totalDocs"`
}

// ListProductsParams — фильтры публичного каталога.
type ListProductsParams struct {
	Page       int64
	Limit      int64
	Categories []string
	Brands     []string
	SortField  string
	SortOrder  string
}

// Option настраивает клиент при создании.
type Option func(*Client)

// WithHTTPClient заменяет транспорт (по умолчанию http.Client с таймаутом 30s).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenStore заменяет хранилище токенов (по умолчанию MemoryStore).
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.store = store }
}

// WithOnAuthFailure задаёт колбэк на окончательный провал аутентификации
// (refresh не помог): браузерный клиент в этот момент уводит на /login.
func WithOnAuthFailure(fn func()) Option {
	return func(c *Client) { c.onAuthFailure = fn }
}

// WithOnForbidden задаёт колбэк на 403.
func WithOnForbidden(fn func()) Option {
	return func(c *Client) { c.onForbidden = fn }
}

// Client — HTTP-клиент магазина с сессией.
type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore
	session *session

	onAuthFailure func()
	onForbidden   func()
}

// New создаёт клиент для API по базовому URL (например, http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		store:   NewMemoryStore(),
		session: newSession(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Register создаёт пользователя и сохраняет выданную пару токенов.
func (c *Client) Register(ctx context.Context, email, name, phone, password string) (*User, error) {
	body := map[string]string{"email": email, "password": password}
	if name != "" {
		body["name"] = name
	}
	if phone != "" {
		body["phone"] = phone
	}

	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &out, false); err != nil {
		return nil, err
	}

	if out.Tokens != nil {
		if err := c.store.Save(Tokens{Access: out.Tokens.Access.Token, Refresh: out.Tokens.Refresh.Token}); err != nil {
			return nil, err
		}
	}

	return out.User, nil
}

// Login аутентифицирует пользователя и сохраняет пару токенов.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var out authResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", in, &out, false); err != nil {
		return nil, err
	}

	if out.Tokens != nil {
		if err := c.store.Save(Tokens{Access: out.Tokens.Access.Token, Refresh: out.Tokens.Refresh.Token}); err != nil {
			return nil, err
		}
	}

	return out.User, nil
}

// Logout отзывает refresh-токен на сервере (best-effort) и всегда
// очищает локальное состояние.
func (c *Client) Logout(ctx context.Context) error {
	tokens, err := c.store.Load()
	if err != nil {
		return err
	}

	if tokens.Refresh != "" {
		in := map[string]string{"refreshToken": tokens.Refresh}
		// Ошибка отзыва не мешает локальному выходу.
		_ = c.do(ctx, http.MethodPost, "/auth/logout", in, nil, false)
	}

	return c.store.Clear()
}

// ForgotPassword запускает поток сброса пароля.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	in := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", in, nil, false)
}

// ResetPassword завершает поток сброса по токену из письма.
func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	path := "/auth/reset-password?token=" + url.QueryEscape(resetToken)
	in := map[string]string{"password": newPassword}
	return c.do(ctx, http.MethodPost, path, in, nil, false)
}

// ChangePassword меняет пароль текущего пользователя.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	identity, err := c.Identity()
	if err != nil {
		return err
	}

	in := map[string]string{"oldPassword": oldPassword, "newPassword": newPassword}
	return c.do(ctx, http.MethodPatch, "/auth/change-password/"+identity.UserID, in, nil, true)
}

// User возвращает пользователя по id (self-or-admin).
func (c *Client) User(ctx context.Context, id string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &out, true); err != nil {
		return nil, err
	}

	return &out, nil
}

// ListProducts возвращает страницу публичного каталога.
func (c *Client) ListProducts(ctx context.Context, params ListProductsParams) (*ProductPage, error) {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("_page", strconv.FormatInt(params.Page, 10))
	}
	if params.Limit > 0 {
		q.Set("_limit", strconv.FormatInt(params.Limit, 10))
	}
	for _, category := range params.Categories {
		q.Add("category", category)
	}
	for _, brand := range params.Brands {
		q.Add("brand", brand)
	}
	if params.SortField != "" {
		q.Set("_sort", params.SortField)
	}
	if params.SortOrder != "" {
		q.Set("_order", params.SortOrder)
	}

	path := "/products"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var out ProductPage
	if err := c.do(ctx, http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}

	return &out, nil
}

// Product возвращает товар по id.
func (c *Client) Product(ctx context.Context, id string) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &out, false); err != nil {
		return nil, err
	}

	return &out, nil
}

// CreateProduct создаёт товар (админ).
func (c *Client) CreateProduct(ctx context.Context, product Product) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodPost, "/products", productBody(product), &out, true); err != nil {
		return nil, err
	}

	return &out, nil
}

// UpdateProduct обновляет товар (админ).
func (c *Client) UpdateProduct(ctx context.Context, id string, product Product) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(id), productBody(product), &out, true); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteProduct удаляет товар (админ).
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil, true)
}

// productBody сериализует только изменяемые поля: сервер не принимает
// неизвестных полей (DisallowUnknownFields).
func productBody(p Product) map[string]any {
	return map[string]any{
		"title":              p.Title,
		"description":        p.Description,
		"price":              p.Price,
		"discountPercentage": p.DiscountPercentage,
		"rating":             p.Rating,
		"stock":              p.Stock,
		"brand":              p.Brand,
		"category":           p.Category,
		"images":             p.Images,
		"colors":             p.Colors,
	}
}

// do выполняет запрос. При authed=true добавляет Bearer-токен и на
// 401 "Please authenticate." запускает single-flight refresh с одним
// повтором исходного запроса.
func (c *Client) do(ctx context.Context, method, path string, in, out any, authed bool) error {
	resp, body, err := c.roundTrip(ctx, method, path, in, authed)
	if err != nil {
		return err
	}

	if authed && resp.StatusCode == http.StatusUnauthorized && isAuthRequired(body) {
		if rerr := c.refreshShared(ctx); rerr != nil {
			c.failSession()
			return rerr
		}

		resp, body, err = c.roundTrip(ctx, method, path, in, authed)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode == http.StatusForbidden {
		// Роль/бан: чистим сессию, браузерный аналог уводит на главную.
		_ = c.store.Clear()
		if c.onForbidden != nil {
			c.onForbidden()
		}
	}

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, body)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in any, authed bool) (*http.Response, []byte, error) {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, nil, err
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authed {
		tokens, err := c.store.Load()
		if err != nil {
			return nil, nil, err
		}

		if tokens.Access != "" {
			req.Header.Set("Authorization", "Bearer "+tokens.Access)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return resp, body, nil
}

// failSession очищает локальное состояние и дёргает колбэк.
func (c *Client) failSession() {
	_ = c.store.Clear()
	if c.onAuthFailure != nil {
		c.onAuthFailure()
	}
}

func isAuthRequired(body []byte) bool {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return false
	}

	return apiErr.Message == authMessage
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{Code: status, Message: http.StatusText(status)}
	if len(body) > 0 {
		var parsed APIError
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
			apiErr.Message = parsed.Message
			if parsed.Code != 0 {
				apiErr.Code = parsed.Code
			}
		}
	}

	return apiErr
}
