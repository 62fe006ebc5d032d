// Package judgeclient calls a judge server over the signed RPC envelope.
package judgeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/sign"
)

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	signer  *sign.Signer
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL sharing token with it.
func New(baseURL, token string, window time.Duration, opts ...Option) (*Client, error) {
	signer, err := sign.NewSigner(token, window)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		http:    &http.Client{Timeout: 10 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ping returns the server's host status.
func (c *Client) Ping(ctx context.Context) (*domain.HostStatus, error) {
	var out domain.HostStatus
	if err := c.call(ctx, "ping", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Judge submits one program. A judgement of any verdict is a nil error;
// server side failures are *domain.JudgeError values.
func (c *Client) Judge(ctx context.Context, req *domain.JudgeRequest) (*domain.JudgeResponse, error) {
	var out domain.JudgeResponse
	if err := c.call(ctx, "judge", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompileSPJ builds a special judge ahead of the judge calls that use it.
func (c *Client) CompileSPJ(ctx context.Context, req *domain.CompileSPJRequest) (*domain.CompileSPJResponse, error) {
	var out domain.CompileSPJResponse
	if err := c.call(ctx, "compile_spj", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method string, data, out any) error {
	env, err := c.signer.SealRequest(data)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(sign.TokenHeader, c.signer.TokenHash())

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}

	// 400 and 413 carry plain unsigned bodies.
	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("%s: server returned %d: %s", method, httpResp.StatusCode, bytes.TrimSpace(raw))
	}

	var resp sign.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("%s: decode envelope: %w", method, err)
	}
	payload, err := c.signer.OpenResponse(&resp)
	if err != nil {
		return fmt.Errorf("%s: verify response: %w", method, err)
	}

	if payload.Err != nil {
		var msg string
		if err := json.Unmarshal(payload.Data, &msg); err != nil {
			msg = string(payload.Data)
		}
		return &domain.JudgeError{Kind: *payload.Err, Message: msg}
	}
	if err := json.Unmarshal(payload.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", method, err)
	}
	return nil
}
