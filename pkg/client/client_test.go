package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/types"
)

func quoteRequest() *types.QuoteRequest {
	return &types.QuoteRequest{
		FromToken: types.TokenRef{ChainID: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
		ToToken:   types.TokenRef{ChainID: 8453, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"},
		Amount:    "1000000",
		TradeType: types.ExactInput,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNewValidatesEndpoint(t *testing.T) {
	_, err := New("")
	require.True(t, swaperr.HasCode(err, swaperr.MissingRequiredField))

	_, err = New("not a url")
	require.True(t, swaperr.HasCode(err, swaperr.InvalidConfig))
}

func TestGetQuotes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/quotes", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-API-Key"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req types.QuoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "1000000", req.Amount)

		fmt.Fprint(w, `{"quoteId":"q1","routes":[{"routeId":"r1","type":"bridge","quote":{"amountIn":"1000000","amountOut":"999000","expectedDurationSeconds":20,"validBefore":1900000000}}]}`)
	}, WithAPIKey("secret"))

	resp, err := c.GetQuotes(context.Background(), quoteRequest())
	require.NoError(t, err)
	require.Equal(t, "q1", resp.QuoteID)
	require.Len(t, resp.Routes, 1)
	require.Equal(t, "999000", resp.Routes[0].Quote.AmountOut)
}

func TestGetQuotesValidatesRequest(t *testing.T) {
	c, err := New("http://127.0.0.1:1")
	require.NoError(t, err)

	req := quoteRequest()
	req.Amount = ""
	_, err = c.GetQuotes(context.Background(), req)
	require.True(t, swaperr.HasCode(err, swaperr.MissingRequiredField))
}

func TestNon2xxCarriesStatusAndBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"amount too small"}`)
	})

	_, err := c.GetQuotes(context.Background(), quoteRequest())
	require.Error(t, err)

	var se *swaperr.Error
	require.ErrorAs(t, err, &se)
	require.Equal(t, swaperr.ApiRequestFailed, se.Code)
	require.Equal(t, http.StatusBadRequest, se.Status)
	require.JSONEq(t, `{"message":"amount too small"}`, se.Body)
	require.Contains(t, se.Message, "amount too small")
}

func TestUndecodableBodyIsInvalidResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>gateway</html>`)
	})

	_, err := c.GetChains(context.Background())
	require.True(t, swaperr.HasCode(err, swaperr.ApiInvalidResponse), "%v", err)
}

func TestTimeoutIsApiTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	_, err := c.GetChains(context.Background(), WithTimeout(50*time.Millisecond))
	require.True(t, swaperr.HasCode(err, swaperr.ApiTimeout), "%v", err)
}

func TestTransportFailureIsRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.GetChains(context.Background())
	require.True(t, swaperr.HasCode(err, swaperr.ApiRequestFailed), "%v", err)
}

func TestSubmitDepositRequiresProof(t *testing.T) {
	c, err := New("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.SubmitDeposit(context.Background(), &types.DepositSubmitRequest{QuoteID: "q", RouteID: "r"})
	require.True(t, swaperr.HasCode(err, swaperr.MissingRequiredField))
}

func TestDepositRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/deposit/build":
			fmt.Fprint(w, `{"quoteId":"q1","routeId":"r1","actions":[{"type":"eip1193_request","chainId":1,"method":"eth_sendTransaction","params":[{"to":"0xabc"}]}]}`)
		case r.Method == http.MethodPut && r.URL.Path == "/v1/deposit/submit":
			var req types.DepositSubmitRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			fmt.Fprintf(w, `{"orderId":"o1","txHash":%q}`, req.TxHash)
		default:
			http.NotFound(w, r)
		}
	})

	built, err := c.BuildDeposit(context.Background(), &types.DepositBuildRequest{QuoteID: "q1", RouteID: "r1", FromAddress: "0xme"})
	require.NoError(t, err)
	require.Len(t, built.Actions, 1)
	require.Equal(t, types.ActionEIP1193Request, built.Actions[0].Type)

	sub, err := c.SubmitDeposit(context.Background(), &types.DepositSubmitRequest{QuoteID: "q1", RouteID: "r1", TxHash: "0xhash"})
	require.NoError(t, err)
	require.Equal(t, "o1", sub.OrderID)
	require.Equal(t, "0xhash", sub.TxHash)
}

func TestOrdersQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/orders/0xme", r.URL.Path)
		q := r.URL.Query()
		if q.Get("ids") == "o2" {
			fmt.Fprint(w, `{"data":[{"id":"o2","status":"pending"}]}`)
			return
		}
		require.Equal(t, "10", q.Get("limit"))
		require.Equal(t, "next", q.Get("cursor"))
		fmt.Fprint(w, `{"data":[{"id":"o1","status":"filled"}],"nextCursor":"after"}`)
	})

	page, err := c.GetOrdersByAddress(context.Background(), "0xme", types.OrdersQuery{Limit: 10, Cursor: "next"})
	require.NoError(t, err)
	require.Equal(t, "after", page.NextCursor)
	require.Equal(t, types.OrderFilled, page.Data[0].Status)

	order, err := c.GetOrderByID(context.Background(), "0xme", "o2")
	require.NoError(t, err)
	require.Equal(t, types.OrderPending, order.Status)
}

func TestTokenEndpointsSendChainFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1,8453", r.URL.Query().Get("chainIds"))
		switch r.URL.Path {
		case "/v1/tokens/search":
			require.Equal(t, "usdc", r.URL.Query().Get("q"))
			fmt.Fprint(w, `{"data":[{"chainId":1,"address":"0xa","symbol":"USDC","name":"USD Coin","decimals":6}]}`)
		case "/v1/tokens/top":
			fmt.Fprint(w, `{"data":[]}`)
		case "/v1/tokens/balances/0xme":
			fmt.Fprint(w, `{"data":[{"chainId":1,"address":"0xa","symbol":"USDC","name":"USD Coin","decimals":6,"balance":"42"}]}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()
	chains := []int64{1, 8453}

	found, err := c.SearchTokens(ctx, "usdc", chains)
	require.NoError(t, err)
	require.Equal(t, uint8(6), *found[0].Decimals)

	top, err := c.GetTopTokens(ctx, chains)
	require.NoError(t, err)
	require.Empty(t, top)

	balances, err := c.GetTokenBalances(ctx, "0xme", chains)
	require.NoError(t, err)
	require.Equal(t, "42", balances[0].Balance)
	require.Equal(t, "USDC", balances[0].Symbol)
}

func TestMetricsRecordOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/chains" {
			fmt.Fprint(w, `{"data":[{"chainId":1,"name":"Ethereum","namespace":"eip155"}]}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}, WithMetrics(m))

	_, err := c.GetChains(context.Background())
	require.NoError(t, err)
	_, err = c.GetTopTokens(context.Background(), nil)
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("get_chains", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("top_tokens", "api_request_failed")))
}
