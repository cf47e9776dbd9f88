package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/peterkuimelis/cardvault/internal/ledger"
)

// Server exposes a ledger over newline-delimited JSON on TCP.
type Server struct {
	Addr   string
	Ledger *ledger.Ledger
}

// Run listens and serves until the context is cancelled. Each connection is
// handled on its own goroutine; the ledger serializes the actual mutations.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer ln.Close()

	fmt.Printf("Listening on %s\n", ln.Addr())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	session := uuid.NewString()
	fmt.Printf("Session %s connected from %s\n", session, conn.RemoteAddr())

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Printf("Session %s read error: %v\n", session, err)
			}
			fmt.Printf("Session %s closed\n", session)
			return
		}
		if err := enc.Encode(s.Handle(req)); err != nil {
			fmt.Printf("Session %s write error: %v\n", session, err)
			return
		}
	}
}

func fail(err error) Response {
	return Response{Error: err.Error()}
}

// Handle dispatches one request against the ledger.
func (s *Server) Handle(req Request) Response {
	l := s.Ledger
	caller := ledger.AccountID(req.Caller)

	switch req.Op {

	case "mint":
		id, err := l.Mint(caller, ledger.AccountID(req.Owner), req.Name, ledger.Rarity(req.Rarity), req.Level, time.Duration(req.LockMS)*time.Millisecond)
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, Token: uint64(id)}

	case "direct_mint":
		id, err := l.DirectMint(caller, req.Name, ledger.Rarity(req.Rarity), req.Level, time.Duration(req.LockMS)*time.Millisecond)
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, Token: uint64(id)}

	case "transfer":
		if err := l.Transfer(caller, ledger.AccountID(req.To), ledger.TokenID(req.Token)); err != nil {
			return fail(err)
		}
		return Response{OK: true}

	case "transfer_from":
		if err := l.TransferFrom(caller, ledger.AccountID(req.Owner), ledger.AccountID(req.To), ledger.TokenID(req.Token)); err != nil {
			return fail(err)
		}
		return Response{OK: true}

	case "approve":
		if err := l.Approve(caller, ledger.AccountID(req.Operator), ledger.TokenID(req.Token)); err != nil {
			return fail(err)
		}
		return Response{OK: true}

	case "approve_all":
		if err := l.SetApprovalForAll(caller, ledger.AccountID(req.Operator), req.Enabled); err != nil {
			return fail(err)
		}
		return Response{OK: true}

	case "set_issuer":
		if err := l.SetAuthorizedIssuer(caller, ledger.AccountID(req.Issuer), req.Enabled); err != nil {
			return fail(err)
		}
		return Response{OK: true}

	case "is_issuer":
		return Response{OK: true, IsIssuer: l.IsAuthorizedIssuer(ledger.AccountID(req.Account))}

	case "owner_of":
		owner, err := l.OwnerOf(ledger.TokenID(req.Token))
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, Owner: string(owner)}

	case "card":
		card, err := l.CardDetails(ledger.TokenID(req.Token))
		if err != nil {
			return fail(err)
		}
		view := BuildCardView(card)
		return Response{OK: true, Card: &view}

	case "cards":
		var views []CardView
		for _, card := range l.Cards() {
			views = append(views, BuildCardView(card))
		}
		return Response{OK: true, Cards: views}

	case "cards_of":
		var views []CardView
		for _, card := range l.CardsOf(ledger.AccountID(req.Account)) {
			views = append(views, BuildCardView(card))
		}
		return Response{OK: true, Cards: views}

	case "previous_owners":
		owners, err := l.PreviousOwnersOf(ledger.TokenID(req.Token))
		if err != nil {
			return fail(err)
		}
		resp := Response{OK: true}
		for _, owner := range owners {
			resp.Owners = append(resp.Owners, string(owner))
		}
		return resp

	case "balance_of":
		return Response{OK: true, Balance: l.BalanceOf(ledger.AccountID(req.Account))}

	case "time_until_unlock":
		wait, err := l.TimeUntilUnlock(ledger.TokenID(req.Token))
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, LockedMS: wait.Milliseconds()}

	case "time_until_next_mint":
		return Response{OK: true, WaitMS: l.TimeUntilNextMint(ledger.AccountID(req.Account)).Milliseconds()}

	case "fuse":
		id, err := l.Fuse(caller, ledger.TokenID(req.Token), ledger.TokenID(req.Token2))
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, Token: uint64(id)}

	case "can_fuse":
		ok, reason := l.CanFuse(caller, ledger.TokenID(req.Token), ledger.TokenID(req.Token2))
		return Response{OK: true, Fusable: ok, Reason: reason}

	case "time_until_next_fusion":
		return Response{OK: true, WaitMS: l.TimeUntilNextFusion(ledger.AccountID(req.Account)).Milliseconds()}

	case "create_trade":
		id, err := l.CreateTrade(caller, ledger.TokenID(req.Token), req.RequestedName, req.RequestedLevel, ledger.Rarity(req.RequestedRarity))
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, Trade: uint64(id)}

	case "accept_trade":
		if err := l.AcceptTrade(caller, ledger.TradeID(req.Trade), ledger.TokenID(req.CounterToken)); err != nil {
			return fail(err)
		}
		return Response{OK: true}

	case "cancel_trade":
		if err := l.CancelTrade(caller, ledger.TradeID(req.Trade)); err != nil {
			return fail(err)
		}
		return Response{OK: true}

	case "active_trades":
		var views []TradeView
		for _, trade := range l.ActiveTrades() {
			views = append(views, BuildTradeView(trade))
		}
		return Response{OK: true, Trades: views}

	case "user_trades":
		var views []TradeView
		for _, trade := range l.TradesFor(ledger.AccountID(req.Account)) {
			views = append(views, BuildTradeView(trade))
		}
		return Response{OK: true, Trades: views}

	case "is_card_in_trade":
		return Response{OK: true, InTrade: l.IsCardInTrade(ledger.TokenID(req.Token))}

	case "create_direct_trade":
		id, err := l.CreateDirectTrade(caller, ledger.AccountID(req.Target), ledger.TokenID(req.Token), ledger.TokenID(req.RequestedToken))
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, Trade: uint64(id)}

	case "accept_direct_trade":
		if err := l.AcceptDirectTrade(caller, ledger.TradeID(req.Trade)); err != nil {
			return fail(err)
		}
		return Response{OK: true}

	case "cancel_direct_trade":
		if err := l.CancelDirectTrade(caller, ledger.TradeID(req.Trade)); err != nil {
			return fail(err)
		}
		return Response{OK: true}

	case "received_direct_trades":
		var views []DirectTradeView
		for _, trade := range l.ReceivedDirectTrades(ledger.AccountID(req.Account)) {
			views = append(views, BuildDirectTradeView(trade))
		}
		return Response{OK: true, DirectTrades: views}

	case "sent_direct_trades":
		var views []DirectTradeView
		for _, trade := range l.SentDirectTrades(ledger.AccountID(req.Account)) {
			views = append(views, BuildDirectTradeView(trade))
		}
		return Response{OK: true, DirectTrades: views}

	default:
		return Response{Error: fmt.Sprintf("unknown op %q", req.Op)}
	}
}
