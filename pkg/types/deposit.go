package types

// DepositBuildRequest is the body of POST /v1/deposit/build
type DepositBuildRequest struct {
	QuoteID     string `json:"quoteId"`
	RouteID     string `json:"routeId"`
	FromAddress string `json:"fromAddress"`
}

// DepositBuildResponse describes the wallet actions needed for a deposit,
// in execution order (approvals first).
type DepositBuildResponse struct {
	QuoteID string         `json:"quoteId"`
	RouteID string         `json:"routeId"`
	Actions []WalletAction `json:"actions"`
}

// DepositSubmitRequest is the body of PUT /v1/deposit/submit. Exactly one
// of TxHash and SignedTransaction is set.
type DepositSubmitRequest struct {
	QuoteID           string `json:"quoteId"`
	RouteID           string `json:"routeId"`
	TxHash            string `json:"txHash,omitempty"`
	SignedTransaction string `json:"signedTransaction,omitempty"`
}

// DepositSubmitResponse identifies the order created for a deposit
type DepositSubmitResponse struct {
	OrderID string `json:"orderId"`
	TxHash  string `json:"txHash"`
}
