package swap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/token"
	"tokenflight/pkg/types"
)

func testToken(chainID int64, address, symbol string, decimals uint8) *token.ResolvedToken {
	return &token.ResolvedToken{
		Target:   token.Target{ChainID: chainID, Address: address},
		Symbol:   symbol,
		Decimals: &decimals,
	}
}

func testRoute(id, amountOut string) types.Route {
	return types.Route{
		RouteID: id,
		Type:    "bridge",
		Tags:    []string{types.TagOneClick},
		Quote:   types.Quote{AmountIn: "1000000", AmountOut: amountOut, ValidBefore: 4102444800},
	}
}

func TestIdleOnlyReachesQuoting(t *testing.T) {
	m := NewMachine(nil)

	require.False(t, m.Transition(PhaseQuoted))
	require.False(t, m.Transition(PhaseSuccess))
	require.Equal(t, PhaseIdle, m.Phase())

	require.True(t, m.Transition(PhaseQuoting))
	require.Equal(t, PhaseQuoting, m.Phase())
}

func TestHappyPathTransitions(t *testing.T) {
	m := NewMachine(nil)
	for _, next := range []Phase{
		PhaseQuoting,
		PhaseQuoted,
		PhaseBuilding,
		PhaseAwaitingWallet,
		PhaseSubmitting,
		PhaseTracking,
		PhaseSuccess,
	} {
		require.True(t, m.Transition(next), "transition to %s", next)
	}
	require.False(t, m.Transition(PhaseTracking))
	require.True(t, m.Transition(PhaseIdle))
}

func TestTransitionTableIsClosed(t *testing.T) {
	all := []Phase{PhaseIdle, PhaseQuoting, PhaseQuoted, PhaseBuilding, PhaseAwaitingWallet, PhaseSubmitting, PhaseTracking, PhaseSuccess, PhaseError}
	for _, from := range all {
		for _, to := range transitions[from] {
			require.Contains(t, all, to)
		}
	}
	require.False(t, CanTransition(PhaseTracking, PhaseQuoted))
	require.False(t, CanTransition(PhaseSuccess, PhaseError))
	require.True(t, CanTransition(PhaseError, PhaseQuoting))
}

func TestSetErrorFromAnyPhase(t *testing.T) {
	for _, path := range [][]Phase{
		nil,
		{PhaseQuoting},
		{PhaseQuoting, PhaseQuoted, PhaseBuilding, PhaseAwaitingWallet, PhaseSubmitting, PhaseTracking},
	} {
		m := NewMachine(nil)
		for _, p := range path {
			require.True(t, m.Transition(p))
		}
		m.SetStreaming(true)
		m.SetError("boom", swaperr.ApiTimeout)

		s := m.Snapshot()
		require.Equal(t, PhaseError, s.Phase)
		require.Equal(t, "boom", s.Error)
		require.Equal(t, swaperr.ApiTimeout, s.ErrorCode)
		require.False(t, s.IsStreaming)
	}
}

func TestLeavingErrorClearsIt(t *testing.T) {
	m := NewMachine(nil)
	m.SetError("boom", swaperr.QuoteFailed)
	require.True(t, m.Transition(PhaseQuoting))

	s := m.Snapshot()
	require.Empty(t, s.Error)
	require.Empty(t, s.ErrorCode)
}

func TestResetPreservesTokensAndWallet(t *testing.T) {
	m := NewMachine(nil)
	from := testToken(1, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "USDC", 6)
	to := testToken(token.SolanaChainID, "So11111111111111111111111111111111111111112", "SOL", 9)

	m.SetFromToken(from)
	m.SetToToken(to)
	m.SetWalletAddress("0xabc")
	m.SetTradeType(types.ExactOutput)
	m.SetInputAmount("1.5")
	require.True(t, m.Transition(PhaseQuoting))
	m.SetQuoteData("q1", []types.Route{testRoute("r1", "10")}, "r1")
	m.SetError("boom", swaperr.QuoteFailed)

	m.Reset()
	s := m.Snapshot()
	require.Equal(t, PhaseIdle, s.Phase)
	require.Equal(t, from, s.FromToken)
	require.Equal(t, to, s.ToToken)
	require.Equal(t, "0xabc", s.WalletAddress)
	require.Equal(t, types.ExactOutput, s.TradeType)
	require.Empty(t, s.InputAmount)
	require.Empty(t, s.Routes)
	require.Empty(t, s.QuoteID)
	require.Empty(t, s.Error)
}

func TestSetQuoteData(t *testing.T) {
	m := NewMachine(nil)
	routes := []types.Route{testRoute("r1", "10"), testRoute("r2", "20")}

	m.SetQuoteData("q1", routes, "r2")
	s := m.Snapshot()
	require.Equal(t, "q1", s.QuoteID)
	require.Len(t, s.Routes, 2)
	require.Equal(t, "r2", s.SelectedRoute().RouteID)

	m.SetQuoteData("q2", routes, "missing")
	s = m.Snapshot()
	require.Equal(t, "q2", s.QuoteID)
	require.Empty(t, s.SelectedRouteID)
	require.Nil(t, s.SelectedRoute())

	m.SetQuoteData("", routes, "r1")
	s = m.Snapshot()
	require.Empty(t, s.QuoteID)
	require.Empty(t, s.Routes)
	require.Empty(t, s.SelectedRouteID)

	m.SetQuoteData("q3", nil, "r1")
	s = m.Snapshot()
	require.Empty(t, s.QuoteID)
	require.Empty(t, s.Routes)
	require.Empty(t, s.SelectedRouteID)
}

func TestAddStreamingRoute(t *testing.T) {
	m := NewMachine(nil)

	require.NoError(t, m.AddStreamingRoute("q1", testRoute("r1", "10")))
	require.NoError(t, m.AddStreamingRoute("q1", testRoute("r2", "20")))
	require.NoError(t, m.AddStreamingRoute("q1", testRoute("r1", "15")))

	s := m.Snapshot()
	require.Equal(t, "q1", s.QuoteID)
	require.Len(t, s.Routes, 2)
	require.Equal(t, "15", s.Routes[0].Quote.AmountOut)

	err := m.AddStreamingRoute("q2", testRoute("r3", "30"))
	require.True(t, swaperr.HasCode(err, swaperr.ApiInvalidResponse))
	require.Len(t, m.Snapshot().Routes, 2)

	err = m.AddStreamingRoute("q1", types.Route{})
	require.True(t, swaperr.HasCode(err, swaperr.ApiInvalidResponse))

	m.ClearRoutes()
	require.NoError(t, m.AddStreamingRoute("q2", testRoute("r3", "30")))
	require.Equal(t, "q2", m.Snapshot().QuoteID)
}

func TestSelectRoute(t *testing.T) {
	m := NewMachine(nil)
	require.False(t, m.SelectRoute("r1"))

	m.SetQuoteData("q1", []types.Route{testRoute("r1", "10")}, "")
	require.True(t, m.SelectRoute("r1"))
	require.False(t, m.SelectRoute("r9"))
	require.Equal(t, "r1", m.Snapshot().SelectedRouteID)
}

func TestObserversReceiveIsolatedSnapshots(t *testing.T) {
	m := NewMachine(nil)
	var seen []State
	unsubscribe := m.Subscribe(func(s State) {
		seen = append(seen, s)
	})

	m.SetQuoteData("q1", []types.Route{testRoute("r1", "10")}, "r1")
	require.Len(t, seen, 1)

	seen[0].Routes[0].Quote.AmountOut = "999"
	seen[0].Routes[0].Tags[0] = "mutated"
	s := m.Snapshot()
	require.Equal(t, "10", s.Routes[0].Quote.AmountOut)
	require.Equal(t, types.TagOneClick, s.Routes[0].Tags[0])

	m.SetOrder(&types.Order{ID: "o1", Status: types.OrderPending})
	require.Len(t, seen, 2)
	seen[1].Order.Status = types.OrderFilled
	require.Equal(t, types.OrderPending, m.Snapshot().Order.Status)

	// rejected transitions do not notify
	require.False(t, m.Transition(PhaseSuccess))
	require.Len(t, seen, 2)

	unsubscribe()
	m.SetInputAmount("1")
	require.Len(t, seen, 2)
}

func TestObserverMayReadMachine(t *testing.T) {
	m := NewMachine(nil)
	var phases []Phase
	m.Subscribe(func(State) {
		phases = append(phases, m.Phase())
	})

	require.True(t, m.Transition(PhaseQuoting))
	require.Equal(t, []Phase{PhaseQuoting}, phases)
}

func TestSnapshotsDoNotShareTokenOrOrderFields(t *testing.T) {
	m := NewMachine(nil)
	price := 1.0
	from := testToken(1, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "USDC", 6)
	from.PriceUSD = &price
	m.SetFromToken(from)

	*from.Decimals = 18
	*from.PriceUSD = 2
	s := m.Snapshot()
	require.Equal(t, uint8(6), *s.FromToken.Decimals)
	require.Equal(t, 1.0, *s.FromToken.PriceUSD)

	*s.FromToken.Decimals = 9
	require.Equal(t, uint8(6), *m.Snapshot().FromToken.Decimals)

	created := time.Unix(1_700_000_000, 0)
	m.SetOrder(&types.Order{ID: "o1", Status: types.OrderPending, CreatedAt: &created})
	created = created.Add(time.Hour)
	snap := m.Snapshot()
	require.Equal(t, int64(1_700_000_000), snap.Order.CreatedAt.Unix())

	*snap.Order.CreatedAt = time.Time{}
	require.Equal(t, int64(1_700_000_000), m.Snapshot().Order.CreatedAt.Unix())
}
