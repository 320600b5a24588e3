package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/types"
)

// GetOrdersByAddress lists orders created by address, newest first
func (c *Client) GetOrdersByAddress(ctx context.Context, address string, q types.OrdersQuery, opts ...CallOption) (*types.OrdersResponse, error) {
	if address == "" {
		return nil, swaperr.New(swaperr.MissingRequiredField, "address is required")
	}

	query := url.Values{}
	if len(q.OrderIDs) > 0 {
		query.Set("ids", strings.Join(q.OrderIDs, ","))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		query.Set("cursor", q.Cursor)
	}

	var resp types.OrdersResponse
	err := c.do(ctx, request{
		operation: "get_orders",
		method:    http.MethodGet,
		path:      "/v1/orders/" + url.PathEscape(address),
		query:     query,
	}, &resp, opts)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetOrderByID fetches a single order of address
func (c *Client) GetOrderByID(ctx context.Context, address, orderID string, opts ...CallOption) (*types.Order, error) {
	if orderID == "" {
		return nil, swaperr.New(swaperr.MissingRequiredField, "order id is required")
	}
	resp, err := c.GetOrdersByAddress(ctx, address, types.OrdersQuery{OrderIDs: []string{orderID}}, opts...)
	if err != nil {
		return nil, err
	}
	for i := range resp.Data {
		if resp.Data[i].ID == orderID {
			return &resp.Data[i], nil
		}
	}
	return nil, swaperr.Newf(swaperr.ApiInvalidResponse, "order %s not found", orderID).WithDetail("orderId", orderID)
}
