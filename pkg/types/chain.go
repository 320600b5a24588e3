package types

// ChainInfo describes a chain supported by the backend
type ChainInfo struct {
	ChainID     int64  `json:"chainId"`
	Name        string `json:"name"`
	Namespace   string `json:"namespace"`
	NativeToken string `json:"nativeToken,omitempty"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
	LogoURI     string `json:"logoURI,omitempty"`
}

// ChainsResponse wraps GET /v1/chains
type ChainsResponse struct {
	Data []ChainInfo `json:"data"`
}
