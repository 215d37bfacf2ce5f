package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *MintoraClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *MintoraClient) *Handlers {
	return &Handlers{client: client}
}

// HandleBrowseNFTs searches the marketplace listings.
func (h *Handlers) HandleBrowseNFTs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := req.GetString("category", "")
	status := req.GetString("status", "")
	limit := req.GetInt("limit", 20)

	raw, err := h.client.BrowseNFTs(ctx, category, status, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to browse listings: %v", err)), nil
	}

	text, err := formatNFTList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse listings: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetNFT returns a single listing.
func (h *Handlers) HandleGetNFT(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nftID := req.GetString("nft_id", "")
	if nftID == "" {
		return mcp.NewToolResultError("nft_id is required"), nil
	}

	raw, err := h.client.GetNFT(ctx, nftID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get listing: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleBuyNFT places an order and reports what to do next.
func (h *Handlers) HandleBuyNFT(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nftID := req.GetString("nft_id", "")
	if nftID == "" {
		return mcp.NewToolResultError("nft_id is required"), nil
	}
	paymentMethod := req.GetString("payment_method", "p2p")
	notes := req.GetString("notes", "")

	raw, err := h.client.PlaceOrder(ctx, nftID, paymentMethod, notes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Order failed: %v", err)), nil
	}

	order, transfer, err := parsePlaceResult(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse order: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Order placed: %s (%s)\n", getString(order, "id"), getString(order, "orderNumber"))
	fmt.Fprintf(&sb, "Total: %s\n", getString(order, "totalPrice"))
	fmt.Fprintf(&sb, "Status: %s\n", getString(order, "status"))

	if transfer != nil {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Payment transfer: %s\n", getString(transfer, "id"))
		fmt.Fprintf(&sb, "Send %s to the seller at %s", getString(transfer, "amount"), getString(transfer, "partnerAddress"))
		if network := getString(transfer, "network"); network != "" {
			fmt.Fprintf(&sb, " on %s", network)
		}
		sb.WriteString(".\n")
		if code := getString(transfer, "transferCode"); code != "" {
			fmt.Fprintf(&sb, "Transfer code: %s\n", code)
		}
		fmt.Fprintf(&sb, "\nAfter sending, call mark_transfer_paid with transfer_id %s. ", getString(transfer, "id"))
		sb.WriteString("If you do not, the transfer is cancelled at the payment deadline and the NFT returns to the market.")
	} else {
		sb.WriteString("\nCard payment captured. The NFT is yours.")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetOrder returns the current state of an order.
func (h *Handlers) HandleGetOrder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orderID := req.GetString("order_id", "")
	if orderID == "" {
		return mcp.NewToolResultError("order_id is required"), nil
	}

	raw, err := h.client.GetOrder(ctx, orderID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get order: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleCheckTransfer returns a transfer's status plus its timer countdown.
func (h *Handlers) HandleCheckTransfer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transferID := req.GetString("transfer_id", "")
	if transferID == "" {
		return mcp.NewToolResultError("transfer_id is required"), nil
	}

	raw, err := h.client.GetTransfer(ctx, transferID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get transfer: %v", err)), nil
	}

	transfer, err := extractObject(raw, "transfer")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse transfer: %v", err)), nil
	}

	text := formatTransfer(transfer)

	// Countdown is best-effort; the transfer itself is the answer.
	if remRaw, err := h.client.GetTransferRemaining(ctx, transferID); err == nil {
		var rem struct {
			RemainingSeconds *float64 `json:"remainingSeconds"`
		}
		if json.Unmarshal(remRaw, &rem) == nil && rem.RemainingSeconds != nil {
			text += fmt.Sprintf("\nTime remaining: %s", formatDuration(*rem.RemainingSeconds))
		}
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListMyTransfers lists the configured account's transfers.
func (h *Handlers) HandleListMyTransfers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListTransfers(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list transfers: %v", err)), nil
	}

	text, err := formatTransferList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse transfers: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleMarkTransferPaid declares the off-platform payment as sent.
func (h *Handlers) HandleMarkTransferPaid(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transferID := req.GetString("transfer_id", "")
	if transferID == "" {
		return mcp.NewToolResultError("transfer_id is required"), nil
	}

	raw, err := h.client.MarkTransferPaid(ctx, transferID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to mark transfer paid: %v", err)), nil
	}

	transfer, err := extractObject(raw, "transfer")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse transfer: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Payment declared for transfer %s.\n"+
			"The seller now confirms receipt and releases the NFT. "+
			"If the seller does not respond, the transfer auto-releases in your favor.\n\n%s",
		transferID, formatTransfer(transfer))), nil
}

// HandleReleaseTransfer confirms payment receipt and releases the NFT.
func (h *Handlers) HandleReleaseTransfer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transferID := req.GetString("transfer_id", "")
	if transferID == "" {
		return mcp.NewToolResultError("transfer_id is required"), nil
	}

	raw, err := h.client.ReleaseTransfer(ctx, transferID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to release transfer: %v", err)), nil
	}

	transfer, err := extractObject(raw, "transfer")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse transfer: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Transfer %s released. The NFT now belongs to the buyer.\n\n%s",
		transferID, formatTransfer(transfer))), nil
}

// HandleAppealTransfer opens a dispute on a transfer.
func (h *Handlers) HandleAppealTransfer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transferID := req.GetString("transfer_id", "")
	if transferID == "" {
		return mcp.NewToolResultError("transfer_id is required"), nil
	}
	reason := req.GetString("reason", "")
	if reason == "" {
		return mcp.NewToolResultError("reason is required"), nil
	}

	_, err := h.client.AppealTransfer(ctx, transferID, reason)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Appeal failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Transfer %s appealed.\n"+
			"Reason: %s\n"+
			"Status: Frozen pending admin review. Auto-release is suspended "+
			"until an admin approves or rejects the appeal.",
		transferID, reason)), nil
}

// HandleCancelTransfer cancels a pending transfer.
func (h *Handlers) HandleCancelTransfer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transferID := req.GetString("transfer_id", "")
	if transferID == "" {
		return mcp.NewToolResultError("transfer_id is required"), nil
	}

	_, err := h.client.CancelTransfer(ctx, transferID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Cancel failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Transfer %s cancelled. The NFT has returned to the market.",
		transferID)), nil
}

// HandleOpenTicket opens a support ticket.
func (h *Handlers) HandleOpenTicket(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subject := req.GetString("subject", "")
	if subject == "" {
		return mcp.NewToolResultError("subject is required"), nil
	}
	body := req.GetString("body", "")
	if body == "" {
		return mcp.NewToolResultError("body is required"), nil
	}
	orderID := req.GetString("order_id", "")

	raw, err := h.client.OpenTicket(ctx, orderID, subject, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to open ticket: %v", err)), nil
	}

	ticket, err := extractObject(raw, "ticket")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse ticket: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Ticket opened: %s\n"+
			"Subject: %s\n"+
			"The support team will reply on the ticket.",
		getString(ticket, "id"), getString(ticket, "subject"))), nil
}

// --- Formatting helpers ---

func formatNFTList(raw json.RawMessage) (string, error) {
	var resp struct {
		NFTs []map[string]any `json:"nfts"`
	}
	// Try as {"nfts": [...]}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.NFTs == nil {
		// Try as direct array
		if err := json.Unmarshal(raw, &resp.NFTs); err != nil {
			return "", fmt.Errorf("unexpected listings response format")
		}
	}

	if len(resp.NFTs) == 0 {
		return "No listings found matching your criteria.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d listing(s):\n\n", len(resp.NFTs)))
	for i, n := range resp.NFTs {
		sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, getString(n, "name"), getString(n, "id")))
		sb.WriteString(fmt.Sprintf("   Price: %s | Status: %s\n", getString(n, "price"), getString(n, "status")))
		if network := getString(n, "network"); network != "" {
			sb.WriteString(fmt.Sprintf("   Network: %s\n", network))
		}
		sb.WriteString(fmt.Sprintf("   Owner: %s\n", getString(n, "ownerAddress")))
		if i < len(resp.NFTs)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func formatTransferList(raw json.RawMessage) (string, error) {
	var resp struct {
		Transfers []map[string]any `json:"transfers"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Transfers == nil {
		if err := json.Unmarshal(raw, &resp.Transfers); err != nil {
			return "", fmt.Errorf("unexpected transfers response format")
		}
	}

	if len(resp.Transfers) == 0 {
		return "No transfers found.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d transfer(s):\n\n", len(resp.Transfers)))
	for i, t := range resp.Transfers {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, getString(t, "id")))
		sb.WriteString(fmt.Sprintf("   Amount: %s | Status: %s\n", getString(t, "amount"), getString(t, "status")))
		if hint := statusHint(getString(t, "status")); hint != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", hint))
		}
	}
	return sb.String(), nil
}

func formatTransfer(t map[string]any) string {
	var sb strings.Builder
	sb.WriteString("Transfer:\n")
	sb.WriteString(fmt.Sprintf("  ID: %s\n", getString(t, "id")))
	sb.WriteString(fmt.Sprintf("  Order: %s\n", getString(t, "orderId")))
	sb.WriteString(fmt.Sprintf("  Amount: %s\n", getString(t, "amount")))
	sb.WriteString(fmt.Sprintf("  Buyer: %s\n", getString(t, "senderAddress")))
	sb.WriteString(fmt.Sprintf("  Seller: %s\n", getString(t, "partnerAddress")))
	sb.WriteString(fmt.Sprintf("  Status: %s", getString(t, "status")))
	if hint := statusHint(getString(t, "status")); hint != "" {
		sb.WriteString(fmt.Sprintf("\n  %s", hint))
	}
	if reason := getString(t, "appealReason"); reason != "" {
		sb.WriteString(fmt.Sprintf("\n  Appeal reason: %s", reason))
	}
	return sb.String()
}

// statusHint explains what a transfer status means for the caller.
func statusHint(status string) string {
	switch status {
	case "pending":
		return "Waiting for the buyer to send payment and mark the transfer paid."
	case "payment_completed":
		return "Buyer declared payment. Waiting for the seller to release, or for auto-release."
	case "released":
		return "Done. The NFT belongs to the buyer."
	case "appealed":
		return "Frozen under dispute. An admin will approve or reject the appeal."
	case "appeal_approved":
		return "Appeal approved. The order was unwound."
	case "appeal_rejected":
		return "Appeal rejected. The transfer completed in the buyer's favor."
	case "cancelled":
		return "Cancelled. The NFT returned to the market."
	default:
		return ""
	}
}

// parsePlaceResult splits a {"order": ..., "transfer": ...} response.
// The transfer is absent for card orders.
func parsePlaceResult(raw json.RawMessage) (order, transfer map[string]any, err error) {
	var resp struct {
		Order    map[string]any `json:"order"`
		Transfer map[string]any `json:"transfer"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, err
	}
	if resp.Order == nil {
		return nil, nil, fmt.Errorf("no order in response: %s", string(raw))
	}
	return resp.Order, resp.Transfer, nil
}

// extractObject pulls a named nested object out of a response, falling back
// to the top level when the wrapper key is absent.
func extractObject(raw json.RawMessage, key string) (map[string]any, error) {
	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	if obj, ok := resp[key].(map[string]any); ok {
		return obj, nil
	}
	return resp, nil
}

func formatDuration(seconds float64) string {
	s := int64(seconds)
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	if s < 3600 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%dh %dm", s/3600, (s%3600)/60)
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}
