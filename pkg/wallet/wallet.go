package wallet

import (
	"context"
	"errors"
	"sync"

	"tokenflight/pkg/types"
)

// ErrUserRejected is returned (possibly wrapped) when the wallet owner
// declines a request.
var ErrUserRejected = errors.New("user rejected the request")

// EventType names a wallet lifecycle event
type EventType string

const (
	EventConnect         EventType = "connect"
	EventDisconnect      EventType = "disconnect"
	EventChainChanged    EventType = "chainChanged"
	EventAccountsChanged EventType = "accountsChanged"
)

// Event is delivered to handlers registered with On
type Event struct {
	Type    EventType
	Address string
	ChainID int64
}

// Handler receives wallet events
type Handler func(Event)

// Wallet signs and broadcasts the actions a deposit needs
type Wallet interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	Address() string
	ExecuteWalletAction(ctx context.Context, action types.WalletAction) (*types.WalletActionResult, error)
	On(event EventType, handler Handler) (unsubscribe func())
}

// MessageSigner is implemented by wallets that can sign arbitrary messages
type MessageSigner interface {
	SignMessage(ctx context.Context, message []byte) (string, error)
}

// Emitter dispatches wallet events to subscribers. The zero value is ready
// to use.
type Emitter struct {
	mu       sync.Mutex
	handlers map[EventType]map[int]Handler
	nextID   int
}

// On registers handler for event
func (e *Emitter) On(event EventType, handler Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[EventType]map[int]Handler)
	}
	if e.handlers[event] == nil {
		e.handlers[event] = make(map[int]Handler)
	}
	id := e.nextID
	e.nextID++
	e.handlers[event][id] = handler

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.handlers[event], id)
	}
}

// Emit calls every handler of ev.Type outside the lock
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	handlers := make([]Handler, 0, len(e.handlers[ev.Type]))
	for _, h := range e.handlers[ev.Type] {
		handlers = append(handlers, h)
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
