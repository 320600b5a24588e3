package types

import "encoding/json"

// WalletActionType names the kind of request a wallet must fulfil
type WalletActionType string

const (
	// ActionEIP1193Request is an EIP-1193 provider request (eth_sendTransaction etc.)
	ActionEIP1193Request WalletActionType = "eip1193_request"
	// ActionSolanaSignAndSend signs and broadcasts a serialized Solana transaction
	ActionSolanaSignAndSend WalletActionType = "solana_signAndSendTransaction"
	// ActionSolanaSign signs a serialized Solana transaction without sending it
	ActionSolanaSign WalletActionType = "solana_signTransaction"
)

// WalletAction is a single step the wallet executes for a deposit
type WalletAction struct {
	Type        WalletActionType `json:"type"`
	ChainID     int64            `json:"chainId"`
	Description string           `json:"description,omitempty"`

	// EIP-1193 request fields
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Base64 serialized Solana transaction
	Transaction string `json:"transaction,omitempty"`
}

// WalletActionResult is what a wallet reports after executing an action.
// Data carries a signed transaction for sign-only actions.
type WalletActionResult struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
}
