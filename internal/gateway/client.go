package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
)

// Client - HTTP клиент к админскому API медиа-сервера.
type Client struct {
	apiURL     string
	apiToken   string
	serverName string
	httpClient *http.Client
}

// NewClient создает новый клиент медиа-сервера.
func NewClient(cfg config.MediaServer) *Client {
	return &Client{
		apiURL:     cfg.APIURL,
		apiToken:   cfg.APIToken,
		serverName: cfg.ServerName,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Token", c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

type shareRequest struct {
	Server string `json:"server"`
	Email  string `json:"email"`
}

type accessResponse struct {
	HasAccess bool `json:"has_access"`
}

// QueryAccess проверяет, есть ли у участника доступ к серверу.
func (c *Client) QueryAccess(ctx context.Context, email string) (bool, error) {
	const op = "gateway.QueryAccess"

	path := fmt.Sprintf("/shares/%s/%s", c.serverName, url.PathEscape(email))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return false, nil
	case http.StatusOK:
		var access accessResponse
		if err := json.NewDecoder(resp.Body).Decode(&access); err != nil {
			return false, fmt.Errorf("%s: decode response: %w", op, err)
		}
		return access.HasAccess, nil
	default:
		return false, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}
}

// GrantAccess расшаривает сервер участнику. Повторная выдача не считается ошибкой.
func (c *Client) GrantAccess(ctx context.Context, email string) (GrantResult, error) {
	const op = "gateway.GrantAccess"

	req, err := c.newRequest(ctx, http.MethodPost, "/shares", shareRequest{
		Server: c.serverName,
		Email:  email,
	})
	if err != nil {
		return GrantFailed, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return GrantFailed, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return GrantGranted, nil
	case http.StatusConflict:
		return GrantAlreadyGranted, nil
	default:
		return GrantFailed, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}
}

// RevokeAccess отзывает доступ участника. Отсутствие шары не считается ошибкой.
func (c *Client) RevokeAccess(ctx context.Context, email string) (RevokeResult, error) {
	const op = "gateway.RevokeAccess"

	path := fmt.Sprintf("/shares/%s/%s", c.serverName, url.PathEscape(email))
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return RevokeFailed, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RevokeFailed, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return RevokeRemoved, nil
	case http.StatusNotFound:
		return RevokeNotFound, nil
	default:
		return RevokeFailed, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}
}
