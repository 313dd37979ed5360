package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second

	maxBodySize = 1 << 20
)

var ErrInvalidBaseURL = errors.New("base url must start with http:// or https://")

// HTTPClient talks to the backend over JSON/HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient validates baseURL and returns a client whose requests time out
// after timeout (DefaultTimeout when zero).
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) BaseURL() string { return c.baseURL }

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	return c.tokens(ctx, pathLogin, loginRequest{Email: email, Password: password}, true, MsgLoginFailed)
}

func (c *HTTPClient) Register(ctx context.Context, username, email, password string) (*TokenResponse, error) {
	return c.tokens(ctx, pathRegister, registerRequest{Email: email, Username: username, Password: password}, true, MsgSignupFailed)
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.tokens(ctx, pathRefresh, refreshRequest{RefreshToken: refreshToken}, false, MsgRefreshExpired)
}

func (c *HTTPClient) SendResetCode(ctx context.Context, email string) (string, error) {
	var out messageResponse
	if err := c.do(ctx, http.MethodPost, pathSendCode, nil, sendCodeRequest{Email: email}, &out, withStatusText(MsgSendCodeFailed)); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *HTTPClient) VerifyResetCode(ctx context.Context, email, code string) (*VerifyResult, error) {
	var out VerifyResult
	if err := c.do(ctx, http.MethodPost, pathVerifyCode, nil, verifyCodeRequest{Email: email, Code: code}, &out, withStatusText(MsgVerifyFailed)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ResetPassword(ctx context.Context, email, code, newPassword string) (string, error) {
	var out messageResponse
	req := resetPasswordRequest{Email: email, Code: code, NewPassword: newPassword}
	if err := c.do(ctx, http.MethodPost, pathResetPass, nil, req, &out, withStatusText(MsgResetFailed)); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Me fetches the profile of the user the header authenticates.
func (c *HTTPClient) Me(ctx context.Context, header http.Header) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, pathMe, header, nil, &out, fallbackOnly(MsgProfileFailed)); err != nil {
		return nil, err
	}
	return &out, nil
}

// tokens posts to a token endpoint. Login and register must hand out a
// complete pair, so requireRefresh rejects a response without a usable
// refresh token. A refresh response may omit it.
func (c *HTTPClient) tokens(ctx context.Context, path string, in any, requireRefresh bool, fallback string) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.do(ctx, http.MethodPost, path, nil, in, &out, fallbackOnly(fallback)); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access_token", ErrMalformedResponse)
	}
	if requireRefresh {
		if out.RefreshToken == "" {
			return nil, fmt.Errorf("%w: missing refresh_token", ErrMalformedResponse)
		}
		if out.RefreshExpiresIn <= 0 {
			return nil, fmt.Errorf("%w: missing refresh_expires_in", ErrMalformedResponse)
		}
	}
	return &out, nil
}

// errorText says how a failed response without a JSON message is reported.
type errorText struct {
	fallback   string
	statusText bool
}

func fallbackOnly(msg string) errorText   { return errorText{fallback: msg} }
func withStatusText(msg string) errorText { return errorText{fallback: msg, statusText: true} }

func (c *HTTPClient) do(ctx context.Context, method, path string, header http.Header, in, out any, et errorText) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Message: et.fallback, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &TransportError{Message: et.fallback, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.StatusCode, data, et)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// readErrorMessage returns the backend's JSON message or detail. Bodies that
// are not JSON are never shown; the status text or the fallback is used.
func readErrorMessage(status int, body []byte, et errorText) string {
	var fields map[string]json.RawMessage
	if json.Unmarshal(bytes.TrimSpace(body), &fields) == nil {
		if msg := jsonString(fields["message"]); msg != "" {
			return msg
		}
		if raw, ok := fields["detail"]; ok && string(raw) != "null" {
			if msg := jsonString(raw); msg != "" {
				return msg
			}
			var buf bytes.Buffer
			if json.Compact(&buf, raw) == nil && buf.String() != `""` {
				return buf.String()
			}
		}
	}

	if et.statusText {
		if st := http.StatusText(status); st != "" {
			return st
		}
	}
	return et.fallback
}

func jsonString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}
