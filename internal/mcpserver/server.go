package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Mintora tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("mintora", "1.0.0")
	client := NewMintoraClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolBrowseNFTs, h.HandleBrowseNFTs)
	s.AddTool(ToolGetNFT, h.HandleGetNFT)
	s.AddTool(ToolBuyNFT, h.HandleBuyNFT)
	s.AddTool(ToolGetOrder, h.HandleGetOrder)
	s.AddTool(ToolCheckTransfer, h.HandleCheckTransfer)
	s.AddTool(ToolListMyTransfers, h.HandleListMyTransfers)
	s.AddTool(ToolMarkTransferPaid, h.HandleMarkTransferPaid)
	s.AddTool(ToolReleaseTransfer, h.HandleReleaseTransfer)
	s.AddTool(ToolAppealTransfer, h.HandleAppealTransfer)
	s.AddTool(ToolCancelTransfer, h.HandleCancelTransfer)
	s.AddTool(ToolOpenTicket, h.HandleOpenTicket)

	return s
}
