package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tokenflight/pkg/amount"
	"tokenflight/pkg/client"
	"tokenflight/pkg/poller"
	"tokenflight/pkg/ranking"
	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/token"
	"tokenflight/pkg/types"
	"tokenflight/pkg/wallet"
)

// ErrQuoteSuperseded is returned by RequestQuote when a newer request
// started before this one finished. Its results were discarded.
var ErrQuoteSuperseded = errors.New("quote request superseded by a newer one")

// API is the part of the backend client the engine drives.
// *client.Client implements it.
type API interface {
	GetQuotes(ctx context.Context, req *types.QuoteRequest, opts ...client.CallOption) (*types.QuoteResponse, error)
	GetQuotesStream(ctx context.Context, req *types.QuoteRequest, onRoute client.RouteHandler, opts ...client.CallOption) (string, error)
	BuildDeposit(ctx context.Context, req *types.DepositBuildRequest, opts ...client.CallOption) (*types.DepositBuildResponse, error)
	SubmitDeposit(ctx context.Context, req *types.DepositSubmitRequest, opts ...client.CallOption) (*types.DepositSubmitResponse, error)
	GetOrderByID(ctx context.Context, address, orderID string, opts ...client.CallOption) (*types.Order, error)
}

// QuoteParams describes the trade to quote. Amount is a display amount of
// the fixed side: From for exact-input trades, To for exact-output.
type QuoteParams struct {
	From        token.ResolvedToken
	To          token.ResolvedToken
	Amount      string
	TradeType   types.TradeType
	Recipient   string
	FromAddress string
}

// Engine drives a swap session from quote to a settled order, recording
// every step in its Machine.
type Engine struct {
	api         API
	machine     *Machine
	logger      *slog.Logger
	now         func() time.Time
	wait        func(ctx context.Context, d time.Duration) error
	streaming   bool
	slippageBps int

	mu          sync.Mutex
	wallet      wallet.Wallet
	unsubscribe []func()
	cancelQuote context.CancelFunc
	lastParams  *QuoteParams

	// quoteMu orders nonce changes against writes of quote results
	quoteMu sync.Mutex
	nonce   uint64
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithStreaming selects streaming quotes (the default) or one-shot quotes
func WithStreaming(enabled bool) EngineOption {
	return func(e *Engine) { e.streaming = enabled }
}

// WithSlippageBps sets the slippage tolerance sent with quote requests
func WithSlippageBps(bps int) EngineOption {
	return func(e *Engine) { e.slippageBps = bps }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source used for quote expiry and polling
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithWait overrides how order tracking sleeps between polls
func WithWait(wait func(ctx context.Context, d time.Duration) error) EngineOption {
	return func(e *Engine) { e.wait = wait }
}

// NewEngine creates an engine with a fresh idle Machine
func NewEngine(api API, opts ...EngineOption) *Engine {
	e := &Engine{
		api:       api,
		logger:    slog.Default(),
		now:       time.Now,
		wait:      poller.Sleep,
		streaming: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.machine = NewMachine(e.logger)
	return e
}

// Machine returns the session state machine
func (e *Engine) Machine() *Machine {
	return e.machine
}

// Wallet returns the connected wallet, or nil
func (e *Engine) Wallet() wallet.Wallet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wallet
}

// ConnectWallet connects w and makes it the session's wallet. Account
// changes and disconnects reported by the wallet are mirrored into state.
func (e *Engine) ConnectWallet(ctx context.Context, w wallet.Wallet) error {
	if err := w.Connect(ctx); err != nil {
		if _, ok := swaperr.CodeOf(err); ok {
			return err
		}
		return swaperr.Wrap(swaperr.WalletConnectionFailed, err, "failed to connect wallet")
	}

	e.mu.Lock()
	for _, unsubscribe := range e.unsubscribe {
		unsubscribe()
	}
	e.wallet = w
	e.unsubscribe = []func(){
		w.On(wallet.EventAccountsChanged, func(ev wallet.Event) {
			e.machine.SetWalletAddress(ev.Address)
		}),
		w.On(wallet.EventDisconnect, func(wallet.Event) {
			e.machine.SetWalletAddress("")
		}),
	}
	e.mu.Unlock()

	e.machine.SetWalletAddress(w.Address())
	return nil
}

// DisconnectWallet disconnects and forgets the session's wallet
func (e *Engine) DisconnectWallet(ctx context.Context) error {
	e.mu.Lock()
	w := e.wallet
	for _, unsubscribe := range e.unsubscribe {
		unsubscribe()
	}
	e.wallet, e.unsubscribe = nil, nil
	e.mu.Unlock()

	e.machine.SetWalletAddress("")
	if w == nil {
		return nil
	}
	return w.Disconnect(ctx)
}

// Close aborts any in-flight quote and detaches from the wallet
func (e *Engine) Close() {
	e.mu.Lock()
	if e.cancelQuote != nil {
		e.cancelQuote()
	}
	for _, unsubscribe := range e.unsubscribe {
		unsubscribe()
	}
	e.unsubscribe = nil
	e.mu.Unlock()
}

func (e *Engine) quoteRequest(p QuoteParams) (*types.QuoteRequest, error) {
	tradeType := p.TradeType
	if tradeType == "" {
		tradeType = types.ExactInput
	}

	fixed := p.From
	if tradeType == types.ExactOutput {
		fixed = p.To
	}
	if !fixed.Resolved() {
		return nil, swaperr.Newf(swaperr.InvalidAmount, "decimals of %s are unknown", fixed.Label())
	}

	base, err := amount.ToBaseUnits(p.Amount, int(*fixed.Decimals))
	if err != nil {
		return nil, err
	}
	if base == "0" || strings.HasPrefix(base, "-") {
		return nil, swaperr.Newf(swaperr.InvalidAmount, "amount must be positive, got %q", p.Amount)
	}

	fromAddress := p.FromAddress
	if fromAddress == "" {
		if w := e.Wallet(); w != nil && w.IsConnected() {
			fromAddress = w.Address()
		}
	}

	return &types.QuoteRequest{
		FromToken:   types.TokenRef{ChainID: p.From.ChainID, Address: p.From.Address},
		ToToken:     types.TokenRef{ChainID: p.To.ChainID, Address: p.To.Address},
		Amount:      base,
		TradeType:   tradeType,
		FromAddress: fromAddress,
		Recipient:   p.Recipient,
		SlippageBps: e.slippageBps,
	}, nil
}

// begin aborts the previous quote request and opens a new one. It returns
// the context and nonce of the new request.
func (e *Engine) begin(ctx context.Context, p QuoteParams, req *types.QuoteRequest) (context.Context, context.CancelFunc, uint64, error) {
	qctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	if e.cancelQuote != nil {
		e.cancelQuote()
	}
	e.cancelQuote = cancel
	params := p
	e.lastParams = &params
	e.mu.Unlock()

	e.quoteMu.Lock()
	defer e.quoteMu.Unlock()

	m := e.machine
	switch m.Phase() {
	case PhaseSuccess:
		m.Reset()
	case PhaseBuilding, PhaseAwaitingWallet, PhaseSubmitting, PhaseTracking:
		cancel()
		return nil, nil, 0, swaperr.New(swaperr.QuoteFailed, "cannot quote while a swap is executing")
	}
	if m.Phase() != PhaseQuoting && !m.Transition(PhaseQuoting) {
		cancel()
		return nil, nil, 0, swaperr.Newf(swaperr.QuoteFailed, "cannot quote from phase %s", m.Phase())
	}

	e.nonce++
	from, to := p.From, p.To
	m.SetTradeType(req.TradeType)
	m.SetFromToken(&from)
	m.SetToToken(&to)
	if req.TradeType == types.ExactOutput {
		m.SetTargetAmount(p.Amount)
	} else {
		m.SetInputAmount(p.Amount)
	}
	m.ClearRoutes()
	m.SetStreaming(e.streaming)
	return qctx, cancel, e.nonce, nil
}

// apply runs fn only while nonce is still the newest request
func (e *Engine) apply(nonce uint64, fn func()) bool {
	e.quoteMu.Lock()
	defer e.quoteMu.Unlock()
	if e.nonce != nonce {
		return false
	}
	fn()
	return true
}

// RequestQuote fetches routes for p, ranks them and selects the best. Any
// request still in flight is aborted first and its results are discarded.
// Validation errors are returned without touching the session; API failures
// also move the session to the error phase.
func (e *Engine) RequestQuote(ctx context.Context, p QuoteParams) error {
	req, err := e.quoteRequest(p)
	if err != nil {
		return err
	}

	qctx, cancel, nonce, err := e.begin(ctx, p, req)
	if err != nil {
		return err
	}
	defer cancel()

	requestID := uuid.NewString()
	logger := e.logger.With("request_id", requestID, "trade_type", req.TradeType)
	logger.Info("requesting quote",
		"from", p.From.Target.String(),
		"to", p.To.Target.String(),
		"amount", req.Amount,
		"streaming", e.streaming)

	m := e.machine
	var quoteErr error
	if e.streaming {
		_, quoteErr = e.api.GetQuotesStream(qctx, req, func(quoteID string, route types.Route) {
			e.apply(nonce, func() {
				if err := m.AddStreamingRoute(quoteID, route); err != nil {
					logger.Warn("dropping streamed route", "route_id", route.RouteID, "error", err)
					return
				}
				if best := ranking.BestRoute(m.Snapshot().Routes, req.TradeType); best != nil {
					m.SelectRoute(best.RouteID)
				}
			})
		})
	} else {
		var resp *types.QuoteResponse
		resp, quoteErr = e.api.GetQuotes(qctx, req)
		if quoteErr == nil {
			e.apply(nonce, func() {
				selected := ""
				if best := ranking.BestRoute(resp.Routes, req.TradeType); best != nil {
					selected = best.RouteID
				}
				m.SetQuoteData(resp.QuoteID, resp.Routes, selected)
			})
		}
	}

	var result error
	current := e.apply(nonce, func() {
		m.SetStreaming(false)
		s := m.Snapshot()
		switch {
		case quoteErr != nil && ctx.Err() == nil:
			code, ok := swaperr.CodeOf(quoteErr)
			if !ok {
				code = swaperr.QuoteFailed
			}
			m.SetError(quoteErr.Error(), code)
			result = quoteErr
		case s.SelectedRoute() != nil:
			m.Transition(PhaseQuoted)
		case ctx.Err() != nil:
			m.ClearRoutes()
			m.Transition(PhaseIdle)
			result = ctx.Err()
		default:
			result = swaperr.New(swaperr.QuoteFailed, "no routes available for this trade")
			m.SetError(result.Error(), swaperr.QuoteFailed)
		}
	})
	if !current {
		logger.Debug("discarding superseded quote")
		return ErrQuoteSuperseded
	}
	if result != nil {
		logger.Warn("quote failed", "error", result)
		return result
	}

	s := m.Snapshot()
	logger.Info("quote ready", "quote_id", s.QuoteID, "routes", len(s.Routes), "selected", s.SelectedRouteID)
	return nil
}

// Requote repeats the last quote request
func (e *Engine) Requote(ctx context.Context) error {
	e.mu.Lock()
	p := e.lastParams
	e.mu.Unlock()
	if p == nil {
		return swaperr.New(swaperr.MissingRequiredField, "no previous quote request")
	}
	return e.RequestQuote(ctx, *p)
}

// requote fetches a fresh quote after stale expired and selects the new
// route of the same type
func (e *Engine) requote(ctx context.Context, stale types.Route) (*types.Route, error) {
	e.logger.Info("quote expired, requesting a fresh one", "route_id", stale.RouteID, "type", stale.Type)
	if err := e.Requote(ctx); err != nil {
		return nil, err
	}

	s := e.machine.Snapshot()
	var replacement *types.Route
	for i := range s.Routes {
		r := s.Routes[i]
		if r.Type != stale.Type || r.Quote.Expired(e.now()) {
			continue
		}
		if replacement == nil || r.RouteID == s.SelectedRouteID {
			replacement = &r
		}
	}
	if replacement == nil {
		return nil, swaperr.Newf(swaperr.QuoteExpired, "no fresh %s route after re-quote", stale.Type)
	}
	e.machine.SelectRoute(replacement.RouteID)
	return replacement, nil
}

// fail records err in the session under code and returns it. A timeout
// keeps its own code.
func (e *Engine) fail(code swaperr.Code, err error, message string) error {
	if swaperr.HasCode(err, swaperr.ApiTimeout) {
		code = swaperr.ApiTimeout
	}
	var out *swaperr.Error
	switch {
	case err == nil:
		out = swaperr.New(code, message)
	case swaperr.HasCode(err, code):
		errors.As(err, &out)
	default:
		out = swaperr.Wrap(code, err, message)
	}
	e.machine.SetError(out.Error(), code)
	e.logger.Error("swap failed", "code", code, "error", out)
	return out
}

// walletFailure keeps a wallet's own error code
func (e *Engine) walletFailure(err error) error {
	if errors.Is(err, wallet.ErrUserRejected) {
		return e.fail(swaperr.WalletActionRejected, err, "wallet action rejected")
	}
	if code, ok := swaperr.CodeOf(err); ok {
		return e.fail(code, err, "wallet action failed")
	}
	return e.fail(swaperr.WalletActionFailed, err, "wallet action failed")
}

// Execute runs the selected route of a quoted session: it builds the
// deposit, has the wallet execute each action, submits the deposit and
// tracks the order until it settles. It returns the final order.
func (e *Engine) Execute(ctx context.Context) (*types.Order, error) {
	m := e.machine
	s := m.Snapshot()
	if s.Phase != PhaseQuoted {
		return nil, swaperr.Newf(swaperr.MissingRequiredField, "no quote to execute (phase %s)", s.Phase)
	}
	route := s.SelectedRoute()
	if route == nil {
		return nil, swaperr.New(swaperr.MissingRequiredField, "no route selected")
	}
	w := e.Wallet()
	if w == nil || !w.IsConnected() {
		return nil, swaperr.New(swaperr.WalletNotConnected, "connect a wallet before executing a swap")
	}

	logger := e.logger.With("route_id", route.RouteID, "wallet", w.Address())

	var (
		build    *types.DepositBuildResponse
		quoteID  string
		requoted bool
	)
	for {
		if route.Quote.Expired(e.now()) {
			if requoted {
				return nil, e.fail(swaperr.QuoteExpired, nil, "quote expired again after re-quote")
			}
			fresh, err := e.requote(ctx, *route)
			if err != nil {
				err = swaperr.Wrap(swaperr.QuoteExpired, err, "quote expired and re-quote failed")
				return nil, e.fail(swaperr.QuoteExpired, err, "")
			}
			route, requoted = fresh, true
		}
		quoteID = m.Snapshot().QuoteID

		m.Transition(PhaseBuilding)
		var err error
		build, err = e.api.BuildDeposit(ctx, &types.DepositBuildRequest{
			QuoteID:     quoteID,
			RouteID:     route.RouteID,
			FromAddress: w.Address(),
		})
		if err != nil {
			return nil, e.fail(swaperr.DepositBuildFailed, err, "failed to build deposit")
		}
		if len(build.Actions) == 0 {
			return nil, e.fail(swaperr.DepositBuildFailed, nil, "deposit has no wallet actions")
		}

		// The build may have outlived the quote
		if !route.Quote.Expired(e.now()) {
			break
		}
		if requoted {
			return nil, e.fail(swaperr.QuoteExpired, nil, "quote expired again after re-quote")
		}
		m.Transition(PhaseQuoted)
	}

	m.Transition(PhaseAwaitingWallet)
	var submit types.DepositSubmitRequest
	for i, action := range build.Actions {
		logger.Info("executing wallet action", "step", i+1, "of", len(build.Actions), "type", action.Type, "description", action.Description)
		res, err := w.ExecuteWalletAction(ctx, action)
		if err != nil {
			return nil, e.walletFailure(err)
		}
		if !res.Success {
			return nil, e.fail(swaperr.WalletActionFailed, errors.New(res.Error), fmt.Sprintf("wallet action %d failed", i+1))
		}
		switch {
		case action.Type == types.ActionSolanaSign && res.Data != "":
			submit = types.DepositSubmitRequest{SignedTransaction: res.Data}
		case res.TxHash != "":
			submit = types.DepositSubmitRequest{TxHash: res.TxHash}
		}
	}
	if submit.TxHash == "" && submit.SignedTransaction == "" {
		return nil, e.fail(swaperr.WalletActionFailed, nil, "wallet returned neither a transaction hash nor a signed transaction")
	}

	m.Transition(PhaseSubmitting)
	submit.QuoteID = quoteID
	submit.RouteID = route.RouteID
	submitted, err := e.api.SubmitDeposit(ctx, &submit)
	if err != nil {
		return nil, e.fail(swaperr.DepositSubmitFailed, err, "failed to submit deposit")
	}

	m.Transition(PhaseTracking)
	m.SetOrder(&types.Order{
		ID:            submitted.OrderID,
		QuoteID:       quoteID,
		RouteID:       route.RouteID,
		Status:        types.OrderCreated,
		DepositTxHash: submitted.TxHash,
	})
	logger.Info("deposit submitted", "order_id", submitted.OrderID, "tx_hash", submitted.TxHash)

	address := w.Address()
	order, err := poller.Watch(ctx,
		func(ctx context.Context) (*types.Order, error) {
			return e.api.GetOrderByID(ctx, address, submitted.OrderID)
		},
		m.SetOrder,
		poller.WithClock(e.now),
		poller.WithWait(e.wait),
		poller.WithLogger(logger),
	)
	if err != nil {
		code := swaperr.TransactionFailed
		if errors.Is(err, context.DeadlineExceeded) {
			code = swaperr.ApiTimeout
		}
		return order, e.fail(code, err, fmt.Sprintf("stopped tracking order %s", submitted.OrderID))
	}

	if order.Status != types.OrderFilled {
		ferr := swaperr.Newf(swaperr.OrderFailed, "order %s ended %s", order.ID, order.Status).
			WithDetail("orderId", order.ID).
			WithDetail("status", order.Status)
		if order.RefundTxHash != "" {
			ferr.WithDetail("refundTxHash", order.RefundTxHash)
		}
		return order, e.fail(swaperr.OrderFailed, ferr, "order did not fill")
	}

	m.Transition(PhaseSuccess)
	logger.Info("swap complete", "order_id", order.ID, "fill_tx", order.FillTxHash)
	return order, nil
}
