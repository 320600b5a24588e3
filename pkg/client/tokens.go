package client

import (
	"context"
	"net/http"
	"net/url"

	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/types"
)

func chainFilter(chainIDs []int64) url.Values {
	query := url.Values{}
	if len(chainIDs) > 0 {
		query.Set("chainIds", joinChainIDs(chainIDs))
	}
	return query
}

// SearchTokens finds tokens by symbol, name or address. It satisfies
// token.Searcher.
func (c *Client) SearchTokens(ctx context.Context, q string, chainIDs []int64) ([]types.TokenInfo, error) {
	if q == "" {
		return nil, swaperr.New(swaperr.MissingRequiredField, "search query is required")
	}
	query := chainFilter(chainIDs)
	query.Set("q", q)

	var resp types.TokenListResponse
	err := c.do(ctx, request{
		operation: "search_tokens",
		method:    http.MethodGet,
		path:      "/v1/tokens/search",
		query:     query,
	}, &resp, nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetTopTokens lists the most traded tokens
func (c *Client) GetTopTokens(ctx context.Context, chainIDs []int64, opts ...CallOption) ([]types.TokenInfo, error) {
	var resp types.TokenListResponse
	err := c.do(ctx, request{
		operation: "top_tokens",
		method:    http.MethodGet,
		path:      "/v1/tokens/top",
		query:     chainFilter(chainIDs),
	}, &resp, opts)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetTokenBalances lists token holdings of address
func (c *Client) GetTokenBalances(ctx context.Context, address string, chainIDs []int64, opts ...CallOption) ([]types.TokenBalance, error) {
	if address == "" {
		return nil, swaperr.New(swaperr.MissingRequiredField, "address is required")
	}

	var resp types.TokenBalancesResponse
	err := c.do(ctx, request{
		operation: "token_balances",
		method:    http.MethodGet,
		path:      "/v1/tokens/balances/" + url.PathEscape(address),
		query:     chainFilter(chainIDs),
	}, &resp, opts)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetChains lists the chains the backend supports
func (c *Client) GetChains(ctx context.Context, opts ...CallOption) ([]types.ChainInfo, error) {
	var resp types.ChainsResponse
	err := c.do(ctx, request{
		operation: "get_chains",
		method:    http.MethodGet,
		path:      "/v1/chains",
	}, &resp, opts)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
