package types

import "time"

// Order statuses reported by the backend
const (
	OrderCreated   = "created"
	OrderDeposited = "deposited"
	OrderPending   = "pending"
	OrderFilled    = "filled"
	OrderRefunded  = "refunded"
	OrderFailed    = "failed"
)

// IsTerminalOrderStatus reports whether no further transition can follow
func IsTerminalOrderStatus(status string) bool {
	switch status {
	case OrderFilled, OrderRefunded, OrderFailed:
		return true
	default:
		return false
	}
}

// Order is the server-authoritative record of a swap
type Order struct {
	ID            string     `json:"id"`
	QuoteID       string     `json:"quoteId,omitempty"`
	RouteID       string     `json:"routeId,omitempty"`
	Status        string     `json:"status"`
	FromToken     TokenRef   `json:"fromToken"`
	ToToken       TokenRef   `json:"toToken"`
	SrcAmount     string     `json:"srcAmount"`
	DestAmount    string     `json:"destAmount"`
	Sender        string     `json:"sender,omitempty"`
	Recipient     string     `json:"recipient,omitempty"`
	DepositTxHash string     `json:"depositTxHash,omitempty"`
	FillTxHash    string     `json:"fillTxHash,omitempty"`
	RefundTxHash  string     `json:"refundTxHash,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
	FilledAt      *time.Time `json:"filledAt,omitempty"`
}

// OrdersQuery filters GET /v1/orders/{address}
type OrdersQuery struct {
	OrderIDs []string
	Limit    int
	Cursor   string
}

// OrdersResponse is a page of orders
type OrdersResponse struct {
	Data       []Order `json:"data"`
	NextCursor string  `json:"nextCursor,omitempty"`
}
