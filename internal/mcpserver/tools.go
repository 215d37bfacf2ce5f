package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Mintora MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolBrowseNFTs = mcp.NewTool("browse_nfts",
	mcp.WithDescription(
		"Browse NFT listings on the Mintora marketplace. "+
			"Returns available listings with pricing, network, and owner. "+
			"Use this to find NFTs before buying them."),
	mcp.WithString("category",
		mcp.Description("Filter by category ID (e.g. 'cat_a1b2c3d4'). Use list results to discover category IDs.")),
	mcp.WithString("status",
		mcp.Description("Filter by listing status"),
		mcp.Enum("available", "reserved", "sold")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of listings to return (default 20)")),
)

var ToolGetNFT = mcp.NewTool("get_nft",
	mcp.WithDescription(
		"Get full details of a single NFT listing, including its current status, "+
			"price, network, and owner address."),
	mcp.WithString("nft_id",
		mcp.Required(),
		mcp.Description("The NFT listing ID (e.g. 'nft_a1b2c3d4')")),
)

var ToolBuyNFT = mcp.NewTool("buy_nft",
	mcp.WithDescription(
		"Buy an NFT from the Mintora marketplace. Places an order and, for "+
			"peer-to-peer payment, opens a payment transfer with the seller. "+
			"P2P orders return a transfer with a payment deadline: send the crypto "+
			"to the seller off-platform, then use mark_transfer_paid before the "+
			"deadline or the transfer is cancelled automatically."),
	mcp.WithString("nft_id",
		mcp.Required(),
		mcp.Description("The NFT listing ID to buy")),
	mcp.WithString("payment_method",
		mcp.Description("How to pay: 'p2p' (direct crypto transfer to the seller, default) or 'card'"),
		mcp.Enum("p2p", "card")),
	mcp.WithString("notes",
		mcp.Description("Optional note for the seller")),
)

var ToolGetOrder = mcp.NewTool("get_order",
	mcp.WithDescription(
		"Get the current state of an order, including its payment status and "+
			"linked transfer (for p2p orders)."),
	mcp.WithString("order_id",
		mcp.Required(),
		mcp.Description("The order ID from a previous buy_nft result")),
)

var ToolCheckTransfer = mcp.NewTool("check_transfer",
	mcp.WithDescription(
		"Check a payment transfer's status and how long is left on its active "+
			"timer. Pending transfers are cancelled when the payment deadline "+
			"passes; completed payments auto-release to the buyer when the "+
			"seller does not respond in time."),
	mcp.WithString("transfer_id",
		mcp.Required(),
		mcp.Description("The transfer ID (e.g. 'p2p_a1b2c3d4')")),
)

var ToolListMyTransfers = mcp.NewTool("list_my_transfers",
	mcp.WithDescription(
		"List your account's payment transfers, most recent first. "+
			"Shows each transfer's status so you can see which still need action."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of transfers to return (default 20)")),
)

var ToolMarkTransferPaid = mcp.NewTool("mark_transfer_paid",
	mcp.WithDescription(
		"Declare that you sent the crypto payment for a pending transfer. "+
			"Only the buyer can do this, and only before the payment deadline. "+
			"After this the seller confirms receipt and releases the NFT."),
	mcp.WithString("transfer_id",
		mcp.Required(),
		mcp.Description("The transfer ID to mark as paid")),
)

var ToolReleaseTransfer = mcp.NewTool("release_transfer",
	mcp.WithDescription(
		"Confirm that you received the payment and release the NFT to the buyer. "+
			"Only the seller can do this, after the buyer marked the transfer paid."),
	mcp.WithString("transfer_id",
		mcp.Required(),
		mcp.Description("The transfer ID to release")),
)

var ToolAppealTransfer = mcp.NewTool("appeal_transfer",
	mcp.WithDescription(
		"Dispute a transfer after payment was declared. Use this when the "+
			"payment never arrived or something else went wrong. An admin "+
			"reviews the appeal and either approves or rejects it."),
	mcp.WithString("transfer_id",
		mcp.Required(),
		mcp.Description("The transfer ID to appeal")),
	mcp.WithString("reason",
		mcp.Required(),
		mcp.Description("Explanation of what went wrong")),
)

var ToolCancelTransfer = mcp.NewTool("cancel_transfer",
	mcp.WithDescription(
		"Cancel a pending transfer before any payment was declared. "+
			"The NFT returns to the market and the order is voided."),
	mcp.WithString("transfer_id",
		mcp.Required(),
		mcp.Description("The transfer ID to cancel")),
)

var ToolOpenTicket = mcp.NewTool("open_ticket",
	mcp.WithDescription(
		"Open a support ticket with the Mintora team, optionally linked to an "+
			"order. Use this for problems a transfer appeal cannot solve."),
	mcp.WithString("subject",
		mcp.Required(),
		mcp.Description("Short summary of the problem")),
	mcp.WithString("body",
		mcp.Required(),
		mcp.Description("Full description of the problem")),
	mcp.WithString("order_id",
		mcp.Description("Order ID this ticket is about, if any")),
)
