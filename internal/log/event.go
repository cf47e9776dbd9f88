package log

import "time"

// EventType enumerates all observable ledger events.
type EventType int

const (
	EventMint EventType = iota
	EventTransfer
	EventFusion
	EventTradeCreated
	EventTradeAccepted
	EventTradeCancelled
	EventDirectTradeCreated
	EventDirectTradeAccepted
	EventDirectTradeCancelled
	EventIssuerChanged
	EventApproval
	EventApprovalForAll
)

func (e EventType) String() string {
	switch e {
	case EventMint:
		return "Mint"
	case EventTransfer:
		return "Transfer"
	case EventFusion:
		return "Fusion"
	case EventTradeCreated:
		return "TradeCreated"
	case EventTradeAccepted:
		return "TradeAccepted"
	case EventTradeCancelled:
		return "TradeCancelled"
	case EventDirectTradeCreated:
		return "DirectTradeCreated"
	case EventDirectTradeAccepted:
		return "DirectTradeAccepted"
	case EventDirectTradeCancelled:
		return "DirectTradeCancelled"
	case EventIssuerChanged:
		return "IssuerChanged"
	case EventApproval:
		return "Approval"
	case EventApprovalForAll:
		return "ApprovalForAll"
	default:
		return "Unknown"
	}
}

// Event represents a single observable mutation of the ledger.
// Every successful mutating operation emits exactly one Event.
type Event struct {
	Seq     int       `json:"seq"`              // monotonic sequence number
	Time    time.Time `json:"time"`             // when the mutation committed
	Type    EventType `json:"-"`                // event type
	Account string    `json:"account"`          // acting account
	Tokens  []uint64  `json:"tokens,omitempty"` // involved token ids
	Trade   uint64    `json:"trade,omitempty"`  // trade id (if applicable)
	Details string    `json:"details"`          // human-readable detail string
}
