package types

// TokenInfo is token metadata as returned by the token endpoints
type TokenInfo struct {
	ChainID  int64    `json:"chainId"`
	Address  string   `json:"address"`
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Decimals *uint8   `json:"decimals,omitempty"`
	LogoURI  string   `json:"logoURI,omitempty"`
	PriceUSD *float64 `json:"priceUsd,omitempty"`
}

// TokenBalance is a token holding of an address
type TokenBalance struct {
	TokenInfo
	Balance    string   `json:"balance"`
	BalanceUSD *float64 `json:"balanceUsd,omitempty"`
}

// TokenListResponse wraps token search and top-token results
type TokenListResponse struct {
	Data []TokenInfo `json:"data"`
}

// TokenBalancesResponse wraps balance results
type TokenBalancesResponse struct {
	Data []TokenBalance `json:"data"`
}
