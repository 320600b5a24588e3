package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/types"
)

// RouteHandler receives each route of a streaming quote as it arrives
type RouteHandler func(quoteID string, route types.Route)

func validateQuoteRequest(req *types.QuoteRequest) error {
	switch {
	case req == nil:
		return swaperr.New(swaperr.MissingRequiredField, "quote request is required")
	case req.FromToken.ChainID < 1 || req.FromToken.Address == "":
		return swaperr.New(swaperr.MissingRequiredField, "fromToken is required")
	case req.ToToken.ChainID < 1 || req.ToToken.Address == "":
		return swaperr.New(swaperr.MissingRequiredField, "toToken is required")
	case req.Amount == "":
		return swaperr.New(swaperr.MissingRequiredField, "amount is required")
	}
	return nil
}

// GetQuotes requests every route for a trade in one response
func (c *Client) GetQuotes(ctx context.Context, req *types.QuoteRequest, opts ...CallOption) (*types.QuoteResponse, error) {
	if err := validateQuoteRequest(req); err != nil {
		return nil, err
	}

	var resp types.QuoteResponse
	err := c.do(ctx, request{
		operation: "get_quotes",
		method:    http.MethodPost,
		path:      "/v1/quotes",
		body:      req,
	}, &resp, opts)
	if err != nil {
		return nil, err
	}
	if resp.QuoteID == "" && len(resp.Routes) > 0 {
		return nil, swaperr.New(swaperr.ApiInvalidResponse, "quote response has routes but no quoteId")
	}
	return &resp, nil
}

// GetQuotesStream requests routes as newline-delimited JSON and calls
// onRoute for each one in arrival order. It returns the quote id seen on the
// stream. Cancelling ctx ends the stream without an error; a trailing line
// that is cut off or malformed is dropped.
func (c *Client) GetQuotesStream(ctx context.Context, req *types.QuoteRequest, onRoute RouteHandler, opts ...CallOption) (quoteID string, err error) {
	if err := validateQuoteRequest(req); err != nil {
		return "", err
	}

	cc := applyCallOptions(c.streamTimeout, opts)
	start := time.Now()
	defer func() { c.metrics.observe("get_quotes_stream", start, err) }()

	streamCtx, cancel := context.WithTimeout(ctx, cc.timeout)
	defer cancel()

	resp, err := c.send(streamCtx, request{
		operation: "get_quotes_stream",
		method:    http.MethodPost,
		path:      "/v1/quotes",
		query:     url.Values{"mode": {"stream"}},
		body:      req,
		accept:    "application/x-ndjson",
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", nil
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", statusError("get_quotes_stream", resp.StatusCode, body)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, readErr := reader.ReadBytes('\n')
		complete := readErr == nil

		if len(bytes.TrimSpace(line)) > 0 {
			var event types.QuoteStreamEvent
			if err := json.Unmarshal(line, &event); err != nil {
				if complete {
					c.logger.Debug("skipping malformed quote stream line", "error", err)
				}
			} else {
				if quoteID == "" {
					quoteID = event.QuoteID
				}
				if event.Route != nil && ctx.Err() == nil {
					c.metrics.routeStreamed()
					if onRoute != nil {
						onRoute(quoteID, *event.Route)
					}
				}
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) || ctx.Err() != nil {
			return quoteID, nil
		}
		return quoteID, translateTransport(streamCtx, readErr)
	}
}
