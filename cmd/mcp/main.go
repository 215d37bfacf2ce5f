// Command mcp serves Mintora marketplace actions as MCP tools over stdio,
// letting an LLM agent browse listings, place orders, and settle transfers
// through its configured account.
package main

import (
	"cmp"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mintora/mintora/internal/mcpserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mcp:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := mcpserver.Config{
		APIURL:         cmp.Or(os.Getenv("MINTORA_API_URL"), "http://localhost:8080"),
		APIKey:         os.Getenv("MINTORA_API_KEY"),
		AccountAddress: os.Getenv("MINTORA_ACCOUNT_ADDRESS"),
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("MINTORA_API_KEY is required")
	}
	if cfg.AccountAddress == "" {
		return fmt.Errorf("MINTORA_ACCOUNT_ADDRESS is required")
	}

	return server.ServeStdio(mcpserver.NewMCPServer(cfg))
}
