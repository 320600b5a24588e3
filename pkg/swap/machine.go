package swap

import (
	"fmt"
	"log/slog"
	"sync"

	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/token"
	"tokenflight/pkg/types"
)

// Phase is the step a swap session is in
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseQuoting        Phase = "quoting"
	PhaseQuoted         Phase = "quoted"
	PhaseBuilding       Phase = "building"
	PhaseAwaitingWallet Phase = "awaiting-wallet"
	PhaseSubmitting     Phase = "submitting"
	PhaseTracking       Phase = "tracking"
	PhaseSuccess        Phase = "success"
	PhaseError          Phase = "error"
)

// transitions lists the phases reachable from each phase
var transitions = map[Phase][]Phase{
	PhaseIdle:           {PhaseQuoting},
	PhaseQuoting:        {PhaseQuoted, PhaseError, PhaseIdle},
	PhaseQuoted:         {PhaseBuilding, PhaseQuoting, PhaseIdle},
	PhaseBuilding:       {PhaseAwaitingWallet, PhaseError, PhaseQuoted},
	PhaseAwaitingWallet: {PhaseSubmitting, PhaseError, PhaseQuoted},
	PhaseSubmitting:     {PhaseTracking, PhaseError, PhaseQuoted},
	PhaseTracking:       {PhaseSuccess, PhaseError},
	PhaseSuccess:        {PhaseIdle},
	PhaseError:          {PhaseIdle, PhaseQuoting, PhaseQuoted},
}

// CanTransition reports whether the table allows from -> to
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// State is a snapshot of a swap session. For exact-output sessions
// ToToken and TargetAmount describe the fixed side.
type State struct {
	Phase        Phase
	TradeType    types.TradeType
	FromToken    *token.ResolvedToken
	ToToken      *token.ResolvedToken
	InputAmount  string
	TargetAmount string

	Routes          []types.Route
	QuoteID         string
	SelectedRouteID string

	Order         *types.Order
	WalletAddress string
	IsStreaming   bool

	Error     string
	ErrorCode swaperr.Code
}

// SelectedRoute returns the selected route, or nil
func (s State) SelectedRoute() *types.Route {
	for i := range s.Routes {
		if s.Routes[i].RouteID == s.SelectedRouteID {
			return &s.Routes[i]
		}
	}
	return nil
}

func (s State) clone() State {
	c := s
	c.FromToken = copyToken(s.FromToken)
	c.ToToken = copyToken(s.ToToken)
	if s.Routes != nil {
		c.Routes = make([]types.Route, len(s.Routes))
		for i, r := range s.Routes {
			if r.Tags != nil {
				r.Tags = append([]string(nil), r.Tags...)
			}
			c.Routes[i] = r
		}
	}
	c.Order = copyOrder(s.Order)
	return c
}

// Observer is notified with a snapshot after every completed mutation
type Observer func(State)

// Machine owns the state of one swap session. Mutators are atomic and
// observers run after the lock is released.
type Machine struct {
	mu        sync.Mutex
	state     State
	observers map[int]Observer
	nextID    int
	logger    *slog.Logger
}

// NewMachine creates a machine in the idle phase
func NewMachine(logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		state:     State{Phase: PhaseIdle, TradeType: types.ExactInput},
		observers: make(map[int]Observer),
		logger:    logger,
	}
}

// Subscribe registers an observer and returns a function removing it
func (m *Machine) Subscribe(fn Observer) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// Snapshot returns a deep copy of the current state
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Phase returns the current phase
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Phase
}

// update applies fn under the lock and notifies observers when fn reports
// a change.
func (m *Machine) update(fn func(s *State) bool) {
	m.mu.Lock()
	if !fn(&m.state) {
		m.mu.Unlock()
		return
	}
	snapshot := m.state.clone()
	observers := make([]Observer, 0, len(m.observers))
	for _, o := range m.observers {
		observers = append(observers, o)
	}
	m.mu.Unlock()

	for _, o := range observers {
		o(snapshot)
	}
}

// Transition moves to next when the table allows it. A disallowed move is
// logged and leaves the phase unchanged.
func (m *Machine) Transition(next Phase) bool {
	ok := false
	m.update(func(s *State) bool {
		if !CanTransition(s.Phase, next) {
			m.logger.Warn("invalid swap transition", "from", s.Phase, "to", next)
			return false
		}
		if s.Phase == PhaseError {
			s.Error = ""
			s.ErrorCode = ""
		}
		s.Phase = next
		ok = true
		return true
	})
	return ok
}

// SetFromToken sets the token sent
func (m *Machine) SetFromToken(t *token.ResolvedToken) {
	m.update(func(s *State) bool {
		s.FromToken = copyToken(t)
		return true
	})
}

// SetToToken sets the token received
func (m *Machine) SetToToken(t *token.ResolvedToken) {
	m.update(func(s *State) bool {
		s.ToToken = copyToken(t)
		return true
	})
}

// SetTargetToken sets the token received in an exact-output session
func (m *Machine) SetTargetToken(t *token.ResolvedToken) {
	m.SetToToken(t)
}

// SetInputAmount sets the display amount sent in an exact-input session
func (m *Machine) SetInputAmount(amount string) {
	m.update(func(s *State) bool {
		s.InputAmount = amount
		return true
	})
}

// SetTargetAmount sets the amount received in an exact-output session
func (m *Machine) SetTargetAmount(amount string) {
	m.update(func(s *State) bool {
		s.TargetAmount = amount
		return true
	})
}

// SetTradeType sets which side of the trade is fixed
func (m *Machine) SetTradeType(tt types.TradeType) {
	m.update(func(s *State) bool {
		s.TradeType = tt
		return true
	})
}

// SetQuoteData replaces the routes of the session in one step. An empty
// route set or quote id clears the quote; a selection not among routes is
// dropped.
func (m *Machine) SetQuoteData(quoteID string, routes []types.Route, selectedRouteID string) {
	m.update(func(s *State) bool {
		if len(routes) == 0 || quoteID == "" {
			s.QuoteID, s.Routes, s.SelectedRouteID = "", nil, ""
			return true
		}
		s.QuoteID = quoteID
		s.Routes = State{Routes: routes}.clone().Routes
		s.SelectedRouteID = ""
		if containsRoute(s.Routes, selectedRouteID) {
			s.SelectedRouteID = selectedRouteID
		}
		return true
	})
}

// AddStreamingRoute merges one streamed route. The first route fixes the
// session's quote id; a route for another quote id is rejected. A route
// with a known id replaces the earlier one.
func (m *Machine) AddStreamingRoute(quoteID string, route types.Route) error {
	if quoteID == "" || route.RouteID == "" {
		return swaperr.New(swaperr.ApiInvalidResponse, "streamed route without quote or route id")
	}

	var err error
	m.update(func(s *State) bool {
		if s.QuoteID != "" && s.QuoteID != quoteID {
			err = swaperr.New(swaperr.ApiInvalidResponse,
				fmt.Sprintf("route %s belongs to quote %s, session has %s", route.RouteID, quoteID, s.QuoteID))
			return false
		}
		s.QuoteID = quoteID
		r := State{Routes: []types.Route{route}}.clone().Routes[0]
		for i := range s.Routes {
			if s.Routes[i].RouteID == r.RouteID {
				s.Routes[i] = r
				return true
			}
		}
		s.Routes = append(s.Routes, r)
		return true
	})
	return err
}

// SelectRoute selects a route of the current quote
func (m *Machine) SelectRoute(routeID string) bool {
	ok := false
	m.update(func(s *State) bool {
		if !containsRoute(s.Routes, routeID) {
			return false
		}
		s.SelectedRouteID = routeID
		ok = true
		return true
	})
	return ok
}

// ClearRoutes forgets the current quote
func (m *Machine) ClearRoutes() {
	m.update(func(s *State) bool {
		s.QuoteID, s.Routes, s.SelectedRouteID = "", nil, ""
		return true
	})
}

// SetStreaming marks whether routes are still arriving
func (m *Machine) SetStreaming(streaming bool) {
	m.update(func(s *State) bool {
		s.IsStreaming = streaming
		return true
	})
}

// SetOrder replaces the tracked order with the latest server snapshot
func (m *Machine) SetOrder(order *types.Order) {
	m.update(func(s *State) bool {
		s.Order = copyOrder(order)
		return true
	})
}

// SetWalletAddress records the connected wallet, or "" when disconnected
func (m *Machine) SetWalletAddress(address string) {
	m.update(func(s *State) bool {
		s.WalletAddress = address
		return true
	})
}

// SetError records a failure and moves to the error phase from any phase
func (m *Machine) SetError(message string, code swaperr.Code) {
	m.update(func(s *State) bool {
		s.Phase = PhaseError
		s.Error = message
		s.ErrorCode = code
		s.IsStreaming = false
		return true
	})
}

// Reset returns to idle and clears the session. Tokens, trade type and the
// wallet address survive.
func (m *Machine) Reset() {
	m.update(func(s *State) bool {
		*s = State{
			Phase:         PhaseIdle,
			TradeType:     s.TradeType,
			FromToken:     s.FromToken,
			ToToken:       s.ToToken,
			WalletAddress: s.WalletAddress,
		}
		return true
	})
}

func containsRoute(routes []types.Route, routeID string) bool {
	if routeID == "" {
		return false
	}
	for _, r := range routes {
		if r.RouteID == routeID {
			return true
		}
	}
	return false
}

func copyToken(t *token.ResolvedToken) *token.ResolvedToken {
	if t == nil {
		return nil
	}
	c := *t
	c.Decimals = copyPtr(t.Decimals)
	c.PriceUSD = copyPtr(t.PriceUSD)
	return &c
}

func copyOrder(o *types.Order) *types.Order {
	if o == nil {
		return nil
	}
	c := *o
	c.CreatedAt = copyPtr(o.CreatedAt)
	c.UpdatedAt = copyPtr(o.UpdatedAt)
	c.FilledAt = copyPtr(o.FilledAt)
	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
