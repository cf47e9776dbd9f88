// Package mcp exposes the ledger as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/peterkuimelis/cardvault/internal/ledger"
	cardvaultnet "github.com/peterkuimelis/cardvault/internal/net"
)

// activeLedger is the singleton ledger (one per stdio process), set by main.
var activeLedger *ledger.Ledger

// SetLedger binds the ledger the tools operate on.
func SetLedger(l *ledger.Ledger) {
	activeLedger = l
}

func respondJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return `{"error": "failed to encode response"}`
	}
	return string(data)
}

// RegisterTools adds all ledger tools to the MCP server.
func RegisterTools(s *server.MCPServer) {
	s.AddTool(mintCardTool(), handleMintCard)
	s.AddTool(transferCardTool(), handleTransferCard)
	s.AddTool(approveOperatorTool(), handleApproveOperator)
	s.AddTool(setIssuerTool(), handleSetIssuer)
	s.AddTool(getCardTool(), handleGetCard)
	s.AddTool(listCardsTool(), handleListCards)
	s.AddTool(fuseCardsTool(), handleFuseCards)
	s.AddTool(canFuseCardsTool(), handleCanFuseCards)
	s.AddTool(createTradeTool(), handleCreateTrade)
	s.AddTool(acceptTradeTool(), handleAcceptTrade)
	s.AddTool(cancelTradeTool(), handleCancelTrade)
	s.AddTool(listTradesTool(), handleListTrades)
	s.AddTool(createDirectTradeTool(), handleCreateDirectTrade)
	s.AddTool(acceptDirectTradeTool(), handleAcceptDirectTrade)
	s.AddTool(cancelDirectTradeTool(), handleCancelDirectTrade)
	s.AddTool(listDirectTradesTool(), handleListDirectTrades)
	s.AddTool(listEventsTool(), handleListEvents)
}

// --- Tool definitions ---

func mintCardTool() mcp.Tool {
	return mcp.NewTool("mint_card",
		mcp.WithDescription("Mint a new card. The caller must be an authorized issuer; the registry owner "+
			"may instead self-mint by omitting 'owner' (the smaller direct-mint quota then applies)."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Acting account")),
		mcp.WithString("owner", mcp.Description("Receiving account (omit to self-mint as the registry owner)")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Card name")),
		mcp.WithString("rarity", mcp.Required(), mcp.Description("Card rarity tier")),
		mcp.WithNumber("level", mcp.Required(), mcp.Description("Card level, 1-5")),
		mcp.WithNumber("lock_seconds", mcp.Description("Optional transfer lock on the new card, in seconds")),
	)
}

func transferCardTool() mcp.Tool {
	return mcp.NewTool("transfer_card",
		mcp.WithDescription("Transfer a card you own to another account. Fails while the card is locked."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Current owner")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Receiving account")),
		mcp.WithNumber("token", mcp.Required(), mcp.Description("Card id")),
	)
}

func approveOperatorTool() mcp.Tool {
	return mcp.NewTool("approve_operator",
		mcp.WithDescription("Grant transfer authority. With 'token', approves the operator for that one card; "+
			"without it, grants (or revokes, enabled=false) blanket authority over all your cards. "+
			"Approve the marketplace operator before listing cards for trade."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Card owner")),
		mcp.WithString("operator", mcp.Required(), mcp.Description("Account receiving transfer authority")),
		mcp.WithNumber("token", mcp.Description("Card id for a single-card approval")),
		mcp.WithBoolean("enabled", mcp.Description("For blanket grants: true to grant, false to revoke (default true)")),
	)
}

func setIssuerTool() mcp.Tool {
	return mcp.NewTool("set_issuer",
		mcp.WithDescription("Grant or revoke an account's mint capability. Registry-owner only."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Registry owner account")),
		mcp.WithString("issuer", mcp.Required(), mcp.Description("Account whose capability changes")),
		mcp.WithBoolean("enabled", mcp.Description("true to grant, false to revoke (default true)")),
	)
}

func getCardTool() mcp.Tool {
	return mcp.NewTool("get_card",
		mcp.WithDescription("Get one card: identity, owner, attack, lock state and full ownership history. Read-only."),
		mcp.WithNumber("token", mcp.Required(), mcp.Description("Card id")),
	)
}

func listCardsTool() mcp.Tool {
	return mcp.NewTool("list_cards",
		mcp.WithDescription("List all cards, or one account's cards when 'account' is given. Read-only."),
		mcp.WithString("account", mcp.Description("Filter to this owner")),
	)
}

func fuseCardsTool() mcp.Tool {
	return mcp.NewTool("fuse_cards",
		mcp.WithDescription("Fuse two identical cards (same name, rarity and level) you own into one card a "+
			"level higher. Both inputs are burned; the result carries a fresh transfer lock and the "+
			"caller enters a fusion cooldown."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Owner of both cards")),
		mcp.WithNumber("token1", mcp.Required(), mcp.Description("First card id")),
		mcp.WithNumber("token2", mcp.Required(), mcp.Description("Second card id")),
	)
}

func canFuseCardsTool() mcp.Tool {
	return mcp.NewTool("can_fuse_cards",
		mcp.WithDescription("Check whether a fusion would succeed, without performing it. Returns the exact "+
			"failure reason when it would not. Read-only."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Owner of both cards")),
		mcp.WithNumber("token1", mcp.Required(), mcp.Description("First card id")),
		mcp.WithNumber("token2", mcp.Required(), mcp.Description("Second card id")),
	)
}

func createTradeTool() mcp.Tool {
	return mcp.NewTool("create_trade",
		mcp.WithDescription("List a card on the open marketplace against a requested name, level and rarity. "+
			"Any holder of a matching card may fulfill it. The marketplace operator must hold transfer "+
			"authority over the offered card."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Owner of the offered card")),
		mcp.WithNumber("offered", mcp.Required(), mcp.Description("Offered card id")),
		mcp.WithString("requested_name", mcp.Required(), mcp.Description("Requested card name (must differ from the offered card's)")),
		mcp.WithNumber("requested_level", mcp.Required(), mcp.Description("Requested card level")),
		mcp.WithString("requested_rarity", mcp.Required(), mcp.Description("Requested rarity (must equal the offered card's rarity)")),
	)
}

func acceptTradeTool() mcp.Tool {
	return mcp.NewTool("accept_trade",
		mcp.WithDescription("Fulfill an open marketplace listing with one of your cards. The two cards swap owners atomically."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Accepting account")),
		mcp.WithNumber("trade", mcp.Required(), mcp.Description("Trade id")),
		mcp.WithNumber("counter", mcp.Required(), mcp.Description("Your card id matching the request")),
	)
}

func cancelTradeTool() mcp.Tool {
	return mcp.NewTool("cancel_trade",
		mcp.WithDescription("Cancel one of your open marketplace listings."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Trade creator")),
		mcp.WithNumber("trade", mcp.Required(), mcp.Description("Trade id")),
	)
}

func listTradesTool() mcp.Tool {
	return mcp.NewTool("list_trades",
		mcp.WithDescription("List active marketplace listings, or all listings by one account when 'account' is given. Read-only."),
		mcp.WithString("account", mcp.Description("Filter to this creator (includes inactive listings)")),
	)
}

func createDirectTradeTool() mcp.Tool {
	return mcp.NewTool("create_direct_trade",
		mcp.WithDescription("Offer a specific account a 1:1 swap: your offered card for their requested card. "+
			"Both cards must share a rarity."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Offering account")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Account the offer is aimed at")),
		mcp.WithNumber("offered", mcp.Required(), mcp.Description("Your card id")),
		mcp.WithNumber("requested", mcp.Required(), mcp.Description("The target's card id you want")),
	)
}

func acceptDirectTradeTool() mcp.Tool {
	return mcp.NewTool("accept_direct_trade",
		mcp.WithDescription("Accept a direct trade aimed at you. Both cards swap owners atomically."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("The trade's target account")),
		mcp.WithNumber("trade", mcp.Required(), mcp.Description("Direct trade id")),
	)
}

func cancelDirectTradeTool() mcp.Tool {
	return mcp.NewTool("cancel_direct_trade",
		mcp.WithDescription("Cancel a direct trade. Either the creator or the target may cancel."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Creator or target of the trade")),
		mcp.WithNumber("trade", mcp.Required(), mcp.Description("Direct trade id")),
	)
}

func listDirectTradesTool() mcp.Tool {
	return mcp.NewTool("list_direct_trades",
		mcp.WithDescription("List direct trades an account has received and sent. Read-only."),
		mcp.WithString("account", mcp.Required(), mcp.Description("Account to list trades for")),
	)
}

func listEventsTool() mcp.Tool {
	return mcp.NewTool("list_events",
		mcp.WithDescription("List the ledger event log: every mint, transfer, fusion and trade in order. Read-only."),
	)
}

// --- Tool handlers ---

func handleMintCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	caller := ledger.AccountID(request.GetString("caller", ""))
	owner := request.GetString("owner", "")
	name := request.GetString("name", "")
	rarity := ledger.Rarity(request.GetString("rarity", ""))
	level := request.GetInt("level", 0)
	lock := time.Duration(request.GetInt("lock_seconds", 0)) * time.Second

	var id ledger.TokenID
	var err error
	if owner == "" {
		id, err = activeLedger.DirectMint(caller, name, rarity, level, lock)
	} else {
		id, err = activeLedger.Mint(caller, ledger.AccountID(owner), name, rarity, level, lock)
	}
	if err != nil {
		return mcp.NewToolResultErrorf("Mint failed: %v", err), nil
	}

	card, err := activeLedger.CardDetails(id)
	if err != nil {
		return mcp.NewToolResultErrorf("Mint succeeded but read back failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(cardvaultnet.BuildCardView(card))), nil
}

func handleTransferCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	caller := ledger.AccountID(request.GetString("caller", ""))
	to := ledger.AccountID(request.GetString("to", ""))
	token := ledger.TokenID(request.GetInt("token", 0))

	if err := activeLedger.Transfer(caller, to, token); err != nil {
		return mcp.NewToolResultErrorf("Transfer failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(map[string]any{"transferred": token, "to": to})), nil
}

func handleApproveOperator(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	caller := ledger.AccountID(request.GetString("caller", ""))
	operator := ledger.AccountID(request.GetString("operator", ""))
	token := request.GetInt("token", 0)
	enabled := request.GetBool("enabled", true)

	var err error
	if token > 0 {
		err = activeLedger.Approve(caller, operator, ledger.TokenID(token))
	} else {
		err = activeLedger.SetApprovalForAll(caller, operator, enabled)
	}
	if err != nil {
		return mcp.NewToolResultErrorf("Approval failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(map[string]any{"operator": operator, "enabled": enabled})), nil
}

func handleSetIssuer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	caller := ledger.AccountID(request.GetString("caller", ""))
	issuer := ledger.AccountID(request.GetString("issuer", ""))
	enabled := request.GetBool("enabled", true)

	if err := activeLedger.SetAuthorizedIssuer(caller, issuer, enabled); err != nil {
		return mcp.NewToolResultErrorf("Issuer change failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(map[string]any{"issuer": issuer, "enabled": enabled})), nil
}

func handleGetCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	token := ledger.TokenID(request.GetInt("token", 0))
	card, err := activeLedger.CardDetails(token)
	if err != nil {
		return mcp.NewToolResultErrorf("Lookup failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(cardvaultnet.BuildCardView(card))), nil
}

func handleListCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	account := request.GetString("account", "")
	var cards []ledger.Card
	if account == "" {
		cards = activeLedger.Cards()
	} else {
		cards = activeLedger.CardsOf(ledger.AccountID(account))
	}

	views := []cardvaultnet.CardView{}
	for _, card := range cards {
		views = append(views, cardvaultnet.BuildCardView(card))
	}
	return mcp.NewToolResultText(respondJSON(views)), nil
}

func handleFuseCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	caller := ledger.AccountID(request.GetString("caller", ""))
	token1 := ledger.TokenID(request.GetInt("token1", 0))
	token2 := ledger.TokenID(request.GetInt("token2", 0))

	id, err := activeLedger.Fuse(caller, token1, token2)
	if err != nil {
		return mcp.NewToolResultErrorf("Fusion failed: %v", err), nil
	}

	card, err := activeLedger.CardDetails(id)
	if err != nil {
		return mcp.NewToolResultErrorf("Fusion succeeded but read back failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(cardvaultnet.BuildCardView(card))), nil
}

func handleCanFuseCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	caller := ledger.AccountID(request.GetString("caller", ""))
	token1 := ledger.TokenID(request.GetInt("token1", 0))
	token2 := ledger.TokenID(request.GetInt("token2", 0))

	ok, reason := activeLedger.CanFuse(caller, token1, token2)
	return mcp.NewToolResultText(respondJSON(map[string]any{"fusable": ok, "reason": reason})), nil
}

func handleCreateTrade(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	caller := ledger.AccountID(request.GetString("caller", ""))
	offered := ledger.TokenID(request.GetInt("offered", 0))
	reqName := request.GetString("requested_name", "")
	reqLevel := request.GetInt("requested_level", 0)
	reqRarity := ledger.Rarity(request.GetString("requested_rarity", ""))

	id, err := activeLedger.CreateTrade(caller, offered, reqName, reqLevel, reqRarity)
	if err != nil {
		return mcp.NewToolResultErrorf("Trade creation failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(map[string]any{"trade": id})), nil
}

func handleAcceptTrade(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	caller := ledger.AccountID(request.GetString("caller", ""))
	trade := ledger.TradeID(request.GetInt("trade", 0))
	counter := ledger.TokenID(request.GetInt("counter", 0))

	if err := activeLedger.AcceptTrade(caller, trade, counter); err != nil {
		return mcp.NewToolResultErrorf("Trade acceptance failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(map[string]any{"accepted": trade})), nil
}

func handleCancelTrade(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	caller := ledger.AccountID(request.GetString("caller", ""))
	trade := ledger.TradeID(request.GetInt("trade", 0))

	if err := activeLedger.CancelTrade(caller, trade); err != nil {
		return mcp.NewToolResultErrorf("Trade cancellation failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(map[string]any{"cancelled": trade})), nil
}

func handleListTrades(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	account := request.GetString("account", "")
	var trades []ledger.CriteriaTrade
	if account == "" {
		trades = activeLedger.ActiveTrades()
	} else {
		trades = activeLedger.TradesFor(ledger.AccountID(account))
	}

	views := []cardvaultnet.TradeView{}
	for _, trade := range trades {
		views = append(views, cardvaultnet.BuildTradeView(trade))
	}
	return mcp.NewToolResultText(respondJSON(views)), nil
}

func handleCreateDirectTrade(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	caller := ledger.AccountID(request.GetString("caller", ""))
	target := ledger.AccountID(request.GetString("target", ""))
	offered := ledger.TokenID(request.GetInt("offered", 0))
	requested := ledger.TokenID(request.GetInt("requested", 0))

	id, err := activeLedger.CreateDirectTrade(caller, target, offered, requested)
	if err != nil {
		return mcp.NewToolResultErrorf("Direct trade creation failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(map[string]any{"trade": id})), nil
}

func handleAcceptDirectTrade(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	caller := ledger.AccountID(request.GetString("caller", ""))
	trade := ledger.TradeID(request.GetInt("trade", 0))

	if err := activeLedger.AcceptDirectTrade(caller, trade); err != nil {
		return mcp.NewToolResultErrorf("Direct trade acceptance failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(map[string]any{"accepted": trade})), nil
}

func handleCancelDirectTrade(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	caller := ledger.AccountID(request.GetString("caller", ""))
	trade := ledger.TradeID(request.GetInt("trade", 0))

	if err := activeLedger.CancelDirectTrade(caller, trade); err != nil {
		return mcp.NewToolResultErrorf("Direct trade cancellation failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(map[string]any{"cancelled": trade})), nil
}

func handleListDirectTrades(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	account := ledger.AccountID(request.GetString("account", ""))
	payload := struct {
		Received []cardvaultnet.DirectTradeView `json:"received"`
		Sent     []cardvaultnet.DirectTradeView `json:"sent"`
	}{
		Received: []cardvaultnet.DirectTradeView{},
		Sent:     []cardvaultnet.DirectTradeView{},
	}
	for _, trade := range activeLedger.ReceivedDirectTrades(account) {
		payload.Received = append(payload.Received, cardvaultnet.BuildDirectTradeView(trade))
	}
	for _, trade := range activeLedger.SentDirectTrades(account) {
		payload.Sent = append(payload.Sent, cardvaultnet.BuildDirectTradeView(trade))
	}
	return mcp.NewToolResultText(respondJSON(payload)), nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if activeLedger == nil {
		return mcp.NewToolResultError("No ledger is configured."), nil
	}

	type eventView struct {
		Seq     int      `json:"seq"`
		Time    string   `json:"time"`
		Type    string   `json:"type"`
		Account string   `json:"account"`
		Tokens  []uint64 `json:"tokens,omitempty"`
		Trade   uint64   `json:"trade,omitempty"`
		Details string   `json:"details"`
	}

	views := []eventView{}
	for _, e := range activeLedger.Logger().Events() {
		views = append(views, eventView{
			Seq:     e.Seq,
			Time:    e.Time.UTC().Format(time.RFC3339),
			Type:    e.Type.String(),
			Account: e.Account,
			Tokens:  e.Tokens,
			Trade:   e.Trade,
			Details: e.Details,
		})
	}
	return mcp.NewToolResultText(respondJSON(views)), nil
}
