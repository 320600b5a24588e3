package types

// TradeType selects which side of a swap is fixed
type TradeType string

const (
	// ExactInput fixes the input amount and maximizes the output
	ExactInput TradeType = "EXACT_INPUT"
	// ExactOutput fixes the output amount and minimizes the input
	ExactOutput TradeType = "EXACT_OUTPUT"
)

// SwapRequest represents a user's swap command before token resolution
type SwapRequest struct {
	Amount      string
	SourceToken string
	DestToken   string
	TradeType   TradeType
	Recipient   string
	FromAddress string
}
