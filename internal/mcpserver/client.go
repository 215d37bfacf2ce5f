package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the Mintora marketplace.
type Config struct {
	APIURL         string // Base URL, e.g. "http://localhost:8080"
	APIKey         string // API key, e.g. "sk_..."
	AccountAddress string // Buyer's wallet address, e.g. "0x..."
}

// MintoraClient is a pure HTTP client for the Mintora marketplace API.
type MintoraClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewMintoraClient creates a new client for the Mintora marketplace.
func NewMintoraClient(cfg Config) *MintoraClient {
	return &MintoraClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doRequest calls the marketplace and returns the raw response body so
// tool handlers can pass API JSON straight through to the model.
func (c *MintoraClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	endpoint := c.cfg.APIURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, apiErrorFrom(resp.StatusCode, raw)
	}
	return json.RawMessage(raw), nil
}

// apiErrorFrom prefers the API's own message field over the raw body.
func apiErrorFrom(status int, raw []byte) error {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &parsed) == nil && parsed.Message != "" {
		return fmt.Errorf("API error (%d): %s", status, parsed.Message)
	}
	return fmt.Errorf("API error (%d): %s", status, raw)
}

// BrowseNFTs lists marketplace listings, optionally filtered.
func (c *MintoraClient) BrowseNFTs(ctx context.Context, category, status string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/nfts", q, nil)
}

// GetNFT returns a single listing.
func (c *MintoraClient) GetNFT(ctx context.Context, nftID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/nfts/"+nftID, nil, nil)
}

// ListCategories returns all listing categories.
func (c *MintoraClient) ListCategories(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/categories", nil, nil)
}

// PlaceOrder creates an order for an NFT.
func (c *MintoraClient) PlaceOrder(ctx context.Context, nftID, paymentMethod, notes string) (json.RawMessage, error) {
	body := map[string]string{
		"nftId":         nftID,
		"paymentMethod": paymentMethod,
	}
	if notes != "" {
		body["notes"] = notes
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/orders", nil, body)
}

// GetOrder returns a single order.
func (c *MintoraClient) GetOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, nil)
}

// GetTransfer returns a single payment transfer.
func (c *MintoraClient) GetTransfer(ctx context.Context, transferID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/transfers/"+transferID, nil, nil)
}

// GetTransferRemaining returns the seconds left on the transfer's active timer.
func (c *MintoraClient) GetTransferRemaining(ctx context.Context, transferID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/transfers/"+transferID+"/remaining", nil, nil)
}

// ListTransfers lists the configured account's transfers.
func (c *MintoraClient) ListTransfers(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/accounts/" + c.cfg.AccountAddress + "/transfers"
	return c.doRequest(ctx, http.MethodGet, path, q, nil)
}

// MarkTransferPaid declares that the off-platform payment was sent.
func (c *MintoraClient) MarkTransferPaid(ctx context.Context, transferID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/transfers/"+transferID+"/pay", nil, nil)
}

// ReleaseTransfer confirms receipt of payment and releases the NFT.
func (c *MintoraClient) ReleaseTransfer(ctx context.Context, transferID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/transfers/"+transferID+"/release", nil, nil)
}

// AppealTransfer opens a dispute on a transfer.
func (c *MintoraClient) AppealTransfer(ctx context.Context, transferID, reason string) (json.RawMessage, error) {
	body := map[string]string{
		"reason": reason,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/transfers/"+transferID+"/appeal", nil, body)
}

// CancelTransfer cancels a pending transfer before payment is declared.
func (c *MintoraClient) CancelTransfer(ctx context.Context, transferID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/transfers/"+transferID+"/cancel", nil, nil)
}

// OpenTicket opens a support ticket, optionally linked to an order.
func (c *MintoraClient) OpenTicket(ctx context.Context, orderID, subject, body string) (json.RawMessage, error) {
	payload := map[string]string{
		"subject": subject,
		"body":    body,
	}
	if orderID != "" {
		payload["orderId"] = orderID
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/tickets", nil, payload)
}
