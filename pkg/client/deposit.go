package client

import (
	"context"
	"net/http"

	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/types"
)

// BuildDeposit asks the backend for the wallet actions that fund a route
func (c *Client) BuildDeposit(ctx context.Context, req *types.DepositBuildRequest, opts ...CallOption) (*types.DepositBuildResponse, error) {
	switch {
	case req == nil || req.QuoteID == "":
		return nil, swaperr.New(swaperr.MissingRequiredField, "quoteId is required")
	case req.RouteID == "":
		return nil, swaperr.New(swaperr.MissingRequiredField, "routeId is required")
	case req.FromAddress == "":
		return nil, swaperr.New(swaperr.MissingRequiredField, "fromAddress is required")
	}

	var resp types.DepositBuildResponse
	err := c.do(ctx, request{
		operation: "build_deposit",
		method:    http.MethodPost,
		path:      "/v1/deposit/build",
		body:      req,
	}, &resp, opts)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitDeposit reports a broadcast deposit (TxHash) or hands over a
// pre-signed transaction for the backend to broadcast (SignedTransaction).
func (c *Client) SubmitDeposit(ctx context.Context, req *types.DepositSubmitRequest, opts ...CallOption) (*types.DepositSubmitResponse, error) {
	switch {
	case req == nil || req.QuoteID == "":
		return nil, swaperr.New(swaperr.MissingRequiredField, "quoteId is required")
	case req.RouteID == "":
		return nil, swaperr.New(swaperr.MissingRequiredField, "routeId is required")
	case req.TxHash == "" && req.SignedTransaction == "":
		return nil, swaperr.New(swaperr.MissingRequiredField, "txHash or signedTransaction is required")
	case req.TxHash != "" && req.SignedTransaction != "":
		return nil, swaperr.New(swaperr.InvalidConfig, "txHash and signedTransaction are mutually exclusive")
	}

	var resp types.DepositSubmitResponse
	err := c.do(ctx, request{
		operation: "submit_deposit",
		method:    http.MethodPut,
		path:      "/v1/deposit/submit",
		body:      req,
	}, &resp, opts)
	if err != nil {
		return nil, err
	}
	if resp.OrderID == "" {
		return nil, swaperr.New(swaperr.ApiInvalidResponse, "submit response has no orderId")
	}
	return &resp, nil
}
