// Package rest talks to the expense API over HTTP. It is the default
// adapter in production; the session token travels as the access token
// cookie the API sets at login.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"expensebook/internal/backend"
	"expensebook/internal/core"
)

// AccessCookie is the cookie the API uses for its access token.
const AccessCookie = "access_token_cookie"

const defaultTimeout = 10 * time.Second

// Client implements backend.Backend against a remote expense API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the API at baseURL. httpClient may be nil,
// in which case a client with a sane timeout is used.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type wireExpense struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Amount    float64 `json:"amount"`
	Category  string  `json:"category"`
	Timestamp string  `json:"timestamp"`
}

type wireUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type wireProfile struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Description string  `json:"description"`
	Target      float64 `json:"target"`
}

func (c *Client) Register(ctx context.Context, reg backend.Registration) (backend.Session, error) {
	body := map[string]string{
		"username": reg.Username,
		"email":    reg.Email,
		"password": reg.Password,
	}
	return c.authenticate(ctx, "/api/auth/register", body)
}

func (c *Client) Login(ctx context.Context, creds backend.Credentials) (backend.Session, error) {
	body := map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	}
	return c.authenticate(ctx, "/api/auth/login", body)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (backend.Session, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return backend.Session{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Success bool     `json:"success"`
		User    wireUser `json:"user"`
	}
	if err := decode(resp, &payload); err != nil {
		return backend.Session{}, err
	}

	var token string
	for _, ck := range resp.Cookies() {
		if ck.Name == AccessCookie {
			token = ck.Value
		}
	}
	if token == "" {
		return backend.Session{}, fmt.Errorf("%w: no access token in response", backend.ErrRejected)
	}
	return backend.Session{
		Token: token,
		User:  core.User{ID: payload.User.ID, Username: payload.User.Username, Email: payload.User.Email},
	}, nil
}

func (c *Client) Check(ctx context.Context) (core.User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/auth/checkAuth", nil)
	if err != nil {
		return core.User{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Success bool     `json:"success"`
		User    wireUser `json:"user"`
	}
	if err := decode(resp, &payload); err != nil {
		return core.User{}, err
	}
	return core.User{ID: payload.User.ID, Username: payload.User.Username, Email: payload.User.Email}, nil
}

func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/auth/logout", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, nil)
}

func (c *Client) Profile(ctx context.Context) (core.Profile, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/auth/profile", nil)
	if err != nil {
		return core.Profile{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Profile wireProfile `json:"profile"`
	}
	if err := decode(resp, &payload); err != nil {
		return core.Profile{}, err
	}
	return profileFromWire(payload.Profile), nil
}

func (c *Client) UpdateProfile(ctx context.Context, profile core.Profile) (core.Profile, error) {
	body := wireProfile{
		Username:    profile.Username,
		Email:       profile.Email,
		Description: profile.Description,
		Target:      profile.Target.Float(),
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/updateProfile", body)
	if err != nil {
		return core.Profile{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Profile wireProfile `json:"profile"`
	}
	if err := decode(resp, &payload); err != nil {
		return core.Profile{}, err
	}
	return profileFromWire(payload.Profile), nil
}

func (c *Client) Create(ctx context.Context, rec core.ExpenseRecord) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/expense/create", expenseBody(rec))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, nil)
}

func (c *Client) Update(ctx context.Context, rec core.ExpenseRecord) error {
	body := expenseBody(rec)
	body["id"] = rec.ID
	resp, err := c.do(ctx, http.MethodPut, "/api/expense/update", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/expense/delete", map[string]string{"id": id})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, nil)
}

// Recent fetches the full list and keeps the tail, newest first. The
// API appends on create, so the tail holds the latest entries.
func (c *Client) Recent(ctx context.Context, limit int) ([]core.ExpenseRecord, error) {
	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	if limit > len(all) {
		limit = len(all)
	}
	out := make([]core.ExpenseRecord, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (c *Client) All(ctx context.Context) ([]core.ExpenseRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/expense/read", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Expenses []wireExpense `json:"expenses"`
	}
	if err := decode(resp, &payload); err != nil {
		return nil, err
	}

	out := make([]core.ExpenseRecord, 0, len(payload.Expenses))
	for _, w := range payload.Expenses {
		rec := core.ExpenseRecord{
			ID:       w.ID,
			Title:    w.Title,
			Amount:   core.MoneyFromFloat(w.Amount),
			Category: w.Category,
		}
		if ts, err := core.ParseTimestamp(w.Timestamp); err == nil {
			rec.Timestamp = ts
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) LatestMonthTotal(ctx context.Context) (core.Money, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/expense/latestMonthTotal", nil)
	if err != nil {
		return core.Money{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Total float64 `json:"total"`
	}
	if err := decode(resp, &payload); err != nil {
		return core.Money{}, err
	}
	return core.MoneyFromFloat(payload.Total), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess, ok := backend.SessionFromContext(ctx); ok && sess.Token != "" {
		req.AddCookie(&http.Cookie{Name: AccessCookie, Value: sess.Token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	return resp, nil
}

// decode maps the response status to the error taxonomy and, when out
// is non-nil, unmarshals the body into it.
func decode(resp *http.Response, out any) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return backend.ErrUnauthenticated
	}
	if resp.StatusCode == http.StatusNotFound {
		return backend.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Msg string `json:"msg"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&failure); err == nil && failure.Msg != "" {
			return fmt.Errorf("%w: %s", backend.ErrRejected, failure.Msg)
		}
		return fmt.Errorf("%w: status %d", backend.ErrRejected, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func expenseBody(rec core.ExpenseRecord) map[string]any {
	return map[string]any{
		"title":        rec.Title,
		"amount":       rec.Amount.Float(),
		"categoryName": rec.Category,
		"date":         rec.Timestamp.Wire(),
	}
}

func profileFromWire(w wireProfile) core.Profile {
	return core.Profile{
		Username:    w.Username,
		Email:       w.Email,
		Description: w.Description,
		Target:      core.MoneyFromFloat(w.Target),
	}
}
