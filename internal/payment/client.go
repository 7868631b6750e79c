// Package payment предоставляет клиент платёжного провайдера.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Статусы платёжной сессии у провайдера.
const (
	StatusOpen     = "OPEN"
	StatusPaid     = "PAID"
	StatusCanceled = "CANCELED"
)

// Client инкапсулирует HTTP-взаимодействие с платёжным провайдером. Сетевые ошибки
// и ответы 5xx повторяются на уровне транспорта; 429 возвращается вызывающей стороне.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// Session описывает ответ провайдера по одной платёжной сессии.
type Session struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Credits   int64  `json:"credits"`
}

// NewClient создаёт HTTP-клиент для обращения к провайдеру по указанному адресу.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.RetryMax = 2
	rc.RetryWaitMin = 50 * time.Millisecond
	rc.RetryWaitMax = 500 * time.Millisecond
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{baseURL: base, httpClient: rc}
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// GetSession запрашивает состояние платёжной сессии. Возвращает ответ, HTTP-код и
// задержку из Retry-After при ответе 429.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, int, time.Duration, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, 0, fmt.Errorf("payment client not configured")
	}

	endpoint := fmt.Sprintf("%s/api/checkout/sessions/%s", c.baseURL, url.PathEscape(sessionID))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, resp.StatusCode, retryAfter, nil
	case http.StatusNoContent:
		return nil, resp.StatusCode, 0, nil
	case http.StatusOK:
	default:
		return nil, resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Session
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
	}

	return &result, resp.StatusCode, 0, nil
}
