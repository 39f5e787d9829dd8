package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bnema/kintales-cli/internal/domain"
)

const maxBodyBytes = 1 << 20

// call is one logical API request. The body is encoded once so the request
// can be replayed.
type call struct {
	method string
	path   string
	body   []byte
	header http.Header
}

func newCall(method, path string, payload any) (call, error) {
	c := call{method: method, path: path, header: http.Header{}}
	if payload == nil {
		return c, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return call{}, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	c.body = body
	return c, nil
}

type response struct {
	status int
	body   []byte
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type transport struct {
	baseURL string
	client  *http.Client
}

func (t transport) send(ctx context.Context, c call, accessToken string) (response, error) {
	var body io.Reader
	if c.body != nil {
		body = bytes.NewReader(c.body)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, t.baseURL+c.path, body)
	if err != nil {
		return response{}, fmt.Errorf("build %s %s: %w", c.method, c.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w: %w", c.method, c.path, domain.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("read %s %s: %w: %w", c.method, c.path, domain.ErrNetworkUnavailable, err)
	}

	return response{status: resp.StatusCode, body: payload}, nil
}

// decode unwraps the data envelope of a successful response into out, or
// turns a failed one into a *domain.APIError classified by kind.
func decode(resp response, out any, kind func(int) error) error {
	if resp.status < 200 || resp.status > 299 {
		return &domain.APIError{Kind: kind(resp.status), Status: resp.status, Message: errorMessage(resp.body)}
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return errors.New("response envelope has no data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}

	return nil
}

func errorMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}

	message := strings.TrimSpace(string(body))
	if len(message) > 200 {
		message = message[:200]
	}
	return message
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusConflict || status == http.StatusGone:
		return domain.ErrConflictOnWrite
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status >= 500:
		return domain.ErrServerError
	default:
		return domain.ErrRequestRejected
	}
}

func kindForCredentialStatus(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return domain.ErrInvalidCredentials
	default:
		return kindForStatus(status)
	}
}
