// Package mintora is a Go client for the Mintora marketplace API.
package mintora

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the marketplace API. The zero value is not usable; create
// one with New.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAPIKey sets the key used for authenticated endpoints.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mintora: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// do sends a request and decodes the response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Code = "unknown"
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// Register creates an account and returns its API key. The key is not
// stored on the client; pass it to WithAPIKey on a new client or call
// SetAPIKey.
func (c *Client) Register(ctx context.Context, address, name string) (*RegisterResult, error) {
	var result RegisterResult
	err := c.do(ctx, "POST", "/v1/accounts", map[string]string{
		"address": address,
		"name":    name,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SetAPIKey sets the key used for authenticated endpoints.
func (c *Client) SetAPIKey(key string) {
	c.apiKey = key
}

// ListNFTs returns available listings, optionally filtered by category.
func (c *Client) ListNFTs(ctx context.Context, categoryID string) ([]*NFT, error) {
	path := "/v1/nfts"
	if categoryID != "" {
		path += "?category=" + url.QueryEscape(categoryID)
	}
	var result struct {
		NFTs []*NFT `json:"nfts"`
	}
	if err := c.do(ctx, "GET", path, nil, &result); err != nil {
		return nil, err
	}
	return result.NFTs, nil
}

// GetNFT returns a single listing.
func (c *Client) GetNFT(ctx context.Context, id string) (*NFT, error) {
	var result struct {
		NFT *NFT `json:"nft"`
	}
	if err := c.do(ctx, "GET", "/v1/nfts/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return result.NFT, nil
}

// PlaceOrder buys a listing. For p2p orders the result includes the
// transfer to pay.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	var result PlaceOrderResult
	if err := c.do(ctx, "POST", "/v1/orders", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOrder returns an order by ID.
func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	var result struct {
		Order *Order `json:"order"`
	}
	if err := c.do(ctx, "GET", "/v1/orders/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return result.Order, nil
}

// GetTransfer returns a transfer by ID.
func (c *Client) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	var result struct {
		Transfer *Transfer `json:"transfer"`
	}
	if err := c.do(ctx, "GET", "/v1/transfers/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return result.Transfer, nil
}

// transferAction posts to a transfer sub-resource and returns the updated
// transfer.
func (c *Client) transferAction(ctx context.Context, id, action string, body interface{}) (*Transfer, error) {
	var result struct {
		Transfer *Transfer `json:"transfer"`
	}
	path := "/v1/transfers/" + url.PathEscape(id) + "/" + action
	if err := c.do(ctx, "POST", path, body, &result); err != nil {
		return nil, err
	}
	return result.Transfer, nil
}

// Pay marks the transfer as paid. Only the buyer may call it.
func (c *Client) Pay(ctx context.Context, transferID string) (*Transfer, error) {
	return c.transferAction(ctx, transferID, "pay", nil)
}

// Release releases the transfer to the seller. Only the seller may call it.
func (c *Client) Release(ctx context.Context, transferID string) (*Transfer, error) {
	return c.transferAction(ctx, transferID, "release", nil)
}

// Appeal disputes the transfer. Either party may call it; a reason is
// required.
func (c *Client) Appeal(ctx context.Context, transferID, reason string) (*Transfer, error) {
	return c.transferAction(ctx, transferID, "appeal", map[string]string{"reason": reason})
}

// Cancel cancels a pending transfer. Either party may call it.
func (c *Client) Cancel(ctx context.Context, transferID string) (*Transfer, error) {
	return c.transferAction(ctx, transferID, "cancel", nil)
}

// CreateWebhook subscribes url to the given event types for the account.
func (c *Client) CreateWebhook(ctx context.Context, accountAddr, hookURL string, events []string) (*CreateWebhookResult, error) {
	var result CreateWebhookResult
	path := "/v1/accounts/" + url.PathEscape(accountAddr) + "/webhooks"
	err := c.do(ctx, "POST", path, map[string]interface{}{
		"url":    hookURL,
		"events": events,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListWebhooks returns the account's webhook subscriptions.
func (c *Client) ListWebhooks(ctx context.Context, accountAddr string) ([]*Webhook, error) {
	var result struct {
		Webhooks []*Webhook `json:"webhooks"`
	}
	path := "/v1/accounts/" + url.PathEscape(accountAddr) + "/webhooks"
	if err := c.do(ctx, "GET", path, nil, &result); err != nil {
		return nil, err
	}
	return result.Webhooks, nil
}

// DeleteWebhook removes a webhook subscription.
func (c *Client) DeleteWebhook(ctx context.Context, accountAddr, webhookID string) error {
	path := "/v1/accounts/" + url.PathEscape(accountAddr) + "/webhooks/" + url.PathEscape(webhookID)
	return c.do(ctx, "DELETE", path, nil, nil)
}

// VerifyWebhookSignature checks the X-Mintora-Signature header of a
// received webhook against its payload and the subscription secret.
func VerifyWebhookSignature(payload []byte, secret, signature string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
