package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// EventLogger is the interface for recording ledger events.
type EventLogger interface {
	Log(event Event)
	Events() []Event
}

// --- MemoryLogger: stores events in memory for test assertions ---

type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
	seq    int
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (l *MemoryLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	event.Seq = l.seq
	l.events = append(l.events, event)
}

func (l *MemoryLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// EventsOfType returns all events matching the given type.
func (l *MemoryLogger) EventsOfType(t EventType) []Event {
	var result []Event
	for _, e := range l.Events() {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// LastEvent returns the most recent event, or a zero event if none.
func (l *MemoryLogger) LastEvent() Event {
	events := l.Events()
	if len(events) == 0 {
		return Event{}
	}
	return events[len(events)-1]
}

// --- TextLogger: writes human-readable lines to an io.Writer ---

type TextLogger struct {
	MemoryLogger
	mu sync.Mutex
	w  io.Writer
}

func NewTextLogger(w io.Writer) *TextLogger {
	return &TextLogger{w: w}
}

func (l *TextLogger) Log(event Event) {
	l.MemoryLogger.Log(event)
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, FormatEvent(event))
}

// --- Broadcaster: fans events out to subscribers (websocket feed) ---

// Broadcaster wraps an inner logger and delivers every event to all
// subscribers. Slow subscribers drop events rather than block the ledger.
type Broadcaster struct {
	inner EventLogger
	mu    sync.Mutex
	subs  map[chan Event]struct{}
}

func NewBroadcaster(inner EventLogger) *Broadcaster {
	if inner == nil {
		inner = NewMemoryLogger()
	}
	return &Broadcaster{inner: inner, subs: make(map[chan Event]struct{})}
}

func (b *Broadcaster) Log(event Event) {
	b.inner.Log(event)
	events := b.inner.Events()
	if len(events) > 0 {
		event = events[len(events)-1] // pick up the assigned Seq
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *Broadcaster) Events() []Event {
	return b.inner.Events()
}

// Subscribe registers a new event channel. The returned cancel function
// unregisters it and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// --- Formatting ---

// FormatEvent formats a single event as a human-readable line.
func FormatEvent(e Event) string {
	kind := e.Type.String()
	for len(kind) < 22 {
		kind += " "
	}
	return fmt.Sprintf("%s %s| %s", e.Time.UTC().Format(time.RFC3339), kind, e.Details)
}

// FormatAll formats all events as a multi-line string.
func FormatAll(events []Event) string {
	var sb strings.Builder
	for _, e := range events {
		sb.WriteString(FormatEvent(e))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// --- Helper constructors for common events ---

func NewMintEvent(at time.Time, issuer, owner string, token uint64, name string, rarity string, level, attack int) Event {
	return Event{
		Time:    at,
		Type:    EventMint,
		Account: issuer,
		Tokens:  []uint64{token},
		Details: fmt.Sprintf("%s mints #%d %q (%s, level %d, attack %d) for %s", issuer, token, name, rarity, level, attack, owner),
	}
}

func NewTransferEvent(at time.Time, from, to string, token uint64, name string) Event {
	return Event{
		Time:    at,
		Type:    EventTransfer,
		Account: from,
		Tokens:  []uint64{token},
		Details: fmt.Sprintf("%s transfers #%d %q to %s", from, token, name, to),
	}
}

func NewFusionEvent(at time.Time, account string, burned1, burned2, minted uint64, name string, newLevel, attack int) Event {
	return Event{
		Time:    at,
		Type:    EventFusion,
		Account: account,
		Tokens:  []uint64{burned1, burned2, minted},
		Details: fmt.Sprintf("%s fuses #%d + #%d into #%d %q (level %d, attack %d)", account, burned1, burned2, minted, name, newLevel, attack),
	}
}

func NewTradeCreatedEvent(at time.Time, creator string, trade uint64, offered uint64, reqName string, reqLevel int, reqRarity string) Event {
	return Event{
		Time:    at,
		Type:    EventTradeCreated,
		Account: creator,
		Tokens:  []uint64{offered},
		Trade:   trade,
		Details: fmt.Sprintf("%s opens trade %d: offers #%d for %q level %d (%s)", creator, trade, offered, reqName, reqLevel, reqRarity),
	}
}

func NewTradeAcceptedEvent(at time.Time, acceptor, creator string, trade uint64, offered, counter uint64) Event {
	return Event{
		Time:    at,
		Type:    EventTradeAccepted,
		Account: acceptor,
		Tokens:  []uint64{offered, counter},
		Trade:   trade,
		Details: fmt.Sprintf("%s accepts trade %d: #%d ↔ #%d with %s", acceptor, trade, offered, counter, creator),
	}
}

func NewTradeCancelledEvent(at time.Time, account string, trade uint64, offered uint64) Event {
	return Event{
		Time:    at,
		Type:    EventTradeCancelled,
		Account: account,
		Tokens:  []uint64{offered},
		Trade:   trade,
		Details: fmt.Sprintf("%s cancels trade %d (releases #%d)", account, trade, offered),
	}
}

func NewDirectTradeCreatedEvent(at time.Time, creator, target string, trade uint64, offered, requested uint64) Event {
	return Event{
		Time:    at,
		Type:    EventDirectTradeCreated,
		Account: creator,
		Tokens:  []uint64{offered, requested},
		Trade:   trade,
		Details: fmt.Sprintf("%s opens direct trade %d with %s: #%d ↔ #%d", creator, trade, target, offered, requested),
	}
}

func NewDirectTradeAcceptedEvent(at time.Time, target, creator string, trade uint64, offered, requested uint64) Event {
	return Event{
		Time:    at,
		Type:    EventDirectTradeAccepted,
		Account: target,
		Tokens:  []uint64{offered, requested},
		Trade:   trade,
		Details: fmt.Sprintf("%s accepts direct trade %d: #%d ↔ #%d with %s", target, trade, offered, requested, creator),
	}
}

func NewDirectTradeCancelledEvent(at time.Time, account string, trade uint64) Event {
	return Event{
		Time:    at,
		Type:    EventDirectTradeCancelled,
		Account: account,
		Trade:   trade,
		Details: fmt.Sprintf("%s cancels direct trade %d", account, trade),
	}
}

func NewIssuerChangedEvent(at time.Time, owner, issuer string, enabled bool) Event {
	verb := "revokes"
	if enabled {
		verb = "grants"
	}
	return Event{
		Time:    at,
		Type:    EventIssuerChanged,
		Account: owner,
		Details: fmt.Sprintf("%s %s mint capability for %s", owner, verb, issuer),
	}
}

func NewApprovalEvent(at time.Time, owner, operator string, token uint64) Event {
	return Event{
		Time:    at,
		Type:    EventApproval,
		Account: owner,
		Tokens:  []uint64{token},
		Details: fmt.Sprintf("%s approves %s for #%d", owner, operator, token),
	}
}

func NewApprovalForAllEvent(at time.Time, owner, operator string, enabled bool) Event {
	verb := "revokes"
	if enabled {
		verb = "grants"
	}
	return Event{
		Time:    at,
		Type:    EventApprovalForAll,
		Account: owner,
		Details: fmt.Sprintf("%s %s blanket transfer authority for %s", owner, verb, operator),
	}
}
