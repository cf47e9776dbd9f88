// Package web serves a read-only HTTP view of the ledger plus a live
// websocket event feed.
package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"github.com/peterkuimelis/cardvault/internal/ledger"
	ledgerlog "github.com/peterkuimelis/cardvault/internal/log"
	"github.com/peterkuimelis/cardvault/internal/net"
)

// TemplateInfo is the JSON representation of a catalog entry.
type TemplateInfo struct {
	Name       string `json:"name"`
	Rarity     string `json:"rarity"`
	BaseAttack int    `json:"base_attack"`
}

// EventInfo is the JSON representation of a ledger event.
type EventInfo struct {
	Seq     int      `json:"seq"`
	Time    string   `json:"time"`
	Type    string   `json:"type"`
	Account string   `json:"account"`
	Tokens  []uint64 `json:"tokens,omitempty"`
	Trade   uint64   `json:"trade,omitempty"`
	Details string   `json:"details"`
}

// Server is the cardvault web server.
type Server struct {
	ledger *ledger.Ledger
	feed   *ledgerlog.Broadcaster // nil when the logger has no broadcast wrapper
	mux    *http.ServeMux
}

// NewServer creates a web server over the ledger. The feed may be nil; the
// /ws endpoint then reports that live events are unavailable.
func NewServer(l *ledger.Ledger, feed *ledgerlog.Broadcaster) *Server {
	s := &Server{
		ledger: l,
		feed:   feed,
		mux:    http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	s.mux.HandleFunc("GET /api/cards", s.handleCards)
	s.mux.HandleFunc("GET /api/cards/{id}", s.handleCard)
	s.mux.HandleFunc("GET /api/accounts/{account}/cards", s.handleAccountCards)
	s.mux.HandleFunc("GET /api/trades", s.handleTrades)
	s.mux.HandleFunc("GET /api/accounts/{account}/trades", s.handleAccountTrades)
	s.mux.HandleFunc("GET /api/accounts/{account}/direct-trades", s.handleDirectTrades)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// ServeHTTP makes the server usable as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	var templates []TemplateInfo
	for _, t := range s.ledger.Catalog().Templates() {
		templates = append(templates, TemplateInfo{
			Name:       t.Name,
			Rarity:     string(t.Rarity),
			BaseAttack: t.BaseAttack,
		})
	}
	writeJSON(w, templates)
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	var views []net.CardView
	for _, card := range s.ledger.Cards() {
		views = append(views, net.BuildCardView(card))
	}
	writeJSON(w, views)
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad card id", http.StatusBadRequest)
		return
	}
	card, err := s.ledger.CardDetails(ledger.TokenID(id))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, net.BuildCardView(card))
}

func (s *Server) handleAccountCards(w http.ResponseWriter, r *http.Request) {
	account := ledger.AccountID(r.PathValue("account"))
	var views []net.CardView
	for _, card := range s.ledger.CardsOf(account) {
		views = append(views, net.BuildCardView(card))
	}
	writeJSON(w, views)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	var views []net.TradeView
	for _, trade := range s.ledger.ActiveTrades() {
		views = append(views, net.BuildTradeView(trade))
	}
	writeJSON(w, views)
}

func (s *Server) handleAccountTrades(w http.ResponseWriter, r *http.Request) {
	account := ledger.AccountID(r.PathValue("account"))
	var views []net.TradeView
	for _, trade := range s.ledger.TradesFor(account) {
		views = append(views, net.BuildTradeView(trade))
	}
	writeJSON(w, views)
}

func (s *Server) handleDirectTrades(w http.ResponseWriter, r *http.Request) {
	account := ledger.AccountID(r.PathValue("account"))
	payload := struct {
		Received []net.DirectTradeView `json:"received"`
		Sent     []net.DirectTradeView `json:"sent"`
	}{}
	for _, trade := range s.ledger.ReceivedDirectTrades(account) {
		payload.Received = append(payload.Received, net.BuildDirectTradeView(trade))
	}
	for _, trade := range s.ledger.SentDirectTrades(account) {
		payload.Sent = append(payload.Sent, net.BuildDirectTradeView(trade))
	}
	writeJSON(w, payload)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var infos []EventInfo
	for _, e := range s.ledger.Logger().Events() {
		infos = append(infos, buildEventInfo(e))
	}
	writeJSON(w, infos)
}

func buildEventInfo(e ledgerlog.Event) EventInfo {
	return EventInfo{
		Seq:     e.Seq,
		Time:    e.Time.UTC().Format(time.RFC3339),
		Type:    e.Type.String(),
		Account: e.Account,
		Tokens:  e.Tokens,
		Trade:   e.Trade,
		Details: e.Details,
	}
}

// handleWebSocket streams ledger events to a browser as JSON messages.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		http.Error(w, "live events unavailable", http.StatusServiceUnavailable)
		return
	}

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow connections from any origin
	})
	if err != nil {
		log.Printf("WebSocket accept error: %v", err)
		return
	}
	defer wsConn.CloseNow()

	ctx := r.Context()
	events, cancel := s.feed.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				wsConn.Close(websocket.StatusNormalClosure, "feed closed")
				return
			}
			data, err := json.Marshal(buildEventInfo(e))
			if err != nil {
				log.Printf("WebSocket encode event: %v", err)
				continue
			}
			if err := wsConn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}
