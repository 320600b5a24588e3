package types

import "time"

// TokenRef identifies a token on a chain in API payloads
type TokenRef struct {
	ChainID int64  `json:"chainId"`
	Address string `json:"address"`
}

// QuoteRequest is the body of POST /v1/quotes
type QuoteRequest struct {
	FromToken   TokenRef  `json:"fromToken"`
	ToToken     TokenRef  `json:"toToken"`
	Amount      string    `json:"amount"`
	TradeType   TradeType `json:"tradeType"`
	FromAddress string    `json:"fromAddress,omitempty"`
	Recipient   string    `json:"recipient,omitempty"`
	SlippageBps int       `json:"slippageBps,omitempty"`
}

// Quote is one pricing snapshot for a route
type Quote struct {
	AmountIn                string `json:"amountIn"`
	AmountOut               string `json:"amountOut"`
	ExpectedDurationSeconds int64  `json:"expectedDurationSeconds"`
	ValidBefore             int64  `json:"validBefore"`
	EstimatedGas            string `json:"estimatedGas,omitempty"`
}

// Expired reports whether the quote is no longer valid at now
func (q Quote) Expired(now time.Time) bool {
	return q.ValidBefore <= now.Unix()
}

// Exact-output fulfilment methods
const (
	ExactOutNative   = "native"
	ExactOutAdaptive = "adaptive"
)

// Route tags
const (
	TagOneClick      = "1-click"
	TagNeedsApproval = "needs-approval"
)

// Route is one candidate execution path for a quote
type Route struct {
	RouteID        string   `json:"routeId"`
	Type           string   `json:"type"`
	ExactOutMethod string   `json:"exactOutMethod,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Quote          Quote    `json:"quote"`
}

// HasTag reports whether the route carries tag
func (r Route) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// QuoteResponse is the body returned by a one-shot quote request
type QuoteResponse struct {
	QuoteID string  `json:"quoteId"`
	Routes  []Route `json:"routes"`
}

// QuoteStreamEvent is one line of a streamed quote response
type QuoteStreamEvent struct {
	QuoteID string `json:"quoteId"`
	Route   *Route `json:"route,omitempty"`
}
