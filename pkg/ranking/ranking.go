package ranking

import (
	"math/big"
	"sort"

	"cosmossdk.io/math"

	"tokenflight/pkg/types"
)

// Ranking policy. Offers within CompetitiveBandBps of the best amount are
// treated as equivalent on price and ordered by the tie-breaks below
// (guaranteed output, then one-click, then ETA). Tunable.
const (
	CompetitiveBandBps = 10
	bpsDenominator     = 10_000
)

// Offer is the projection of a route used for ranking. Amount is the output
// amount for exact-input trades and the input amount for exact-output trades.
type Offer struct {
	RouteID            string
	Amount             math.Int
	ETASeconds         int64
	IsGuaranteedOutput bool
	IsOneClick         bool
}

// RankMaxOutput orders offers for an exact-input trade, best first
func RankMaxOutput(offers []Offer) []string {
	if len(offers) == 0 {
		return []string{}
	}

	best := offers[0].Amount
	for _, o := range offers[1:] {
		if o.Amount.GT(best) {
			best = o.Amount
		}
	}
	threshold := bandThreshold(best, bpsDenominator-CompetitiveBandBps)

	competitive, rest := partition(offers, func(o Offer) bool {
		return o.Amount.BigInt().Cmp(threshold) >= 0
	})
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Amount.GT(rest[j].Amount)
	})
	return routeIDs(competitive, rest)
}

// RankMinInput orders offers for an exact-output trade, best first
func RankMinInput(offers []Offer) []string {
	if len(offers) == 0 {
		return []string{}
	}

	best := offers[0].Amount
	for _, o := range offers[1:] {
		if o.Amount.LT(best) {
			best = o.Amount
		}
	}
	threshold := bandThreshold(best, bpsDenominator+CompetitiveBandBps)

	competitive, rest := partition(offers, func(o Offer) bool {
		return o.Amount.BigInt().Cmp(threshold) <= 0
	})
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Amount.LT(rest[j].Amount)
	})
	return routeIDs(competitive, rest)
}

// bandThreshold is floor(best*bps/bpsDenominator). The product can exceed
// the 256-bit range of math.Int, so it is computed on big.Int.
func bandThreshold(best math.Int, bps int64) *big.Int {
	t := new(big.Int).Mul(best.BigInt(), big.NewInt(bps))
	return t.Quo(t, big.NewInt(bpsDenominator))
}

// partition splits offers preserving their relative order and sorts the
// competitive set by the tie-break policy.
func partition(offers []Offer, isCompetitive func(Offer) bool) (competitive, rest []Offer) {
	for _, o := range offers {
		if isCompetitive(o) {
			competitive = append(competitive, o)
		} else {
			rest = append(rest, o)
		}
	}
	sort.SliceStable(competitive, func(i, j int) bool {
		a, b := competitive[i], competitive[j]
		if a.IsGuaranteedOutput != b.IsGuaranteedOutput {
			return a.IsGuaranteedOutput
		}
		if a.IsOneClick != b.IsOneClick {
			return a.IsOneClick
		}
		return a.ETASeconds < b.ETASeconds
	})
	return competitive, rest
}

func routeIDs(groups ...[]Offer) []string {
	ids := []string{}
	for _, g := range groups {
		for _, o := range g {
			ids = append(ids, o.RouteID)
		}
	}
	return ids
}

// BuildOffers projects routes into offers for the given trade type. Routes
// whose amount does not parse as a non-negative integer are left out.
func BuildOffers(routes []types.Route, tradeType types.TradeType) []Offer {
	exactOutput := tradeType == types.ExactOutput

	offers := make([]Offer, 0, len(routes))
	for _, r := range routes {
		raw := r.Quote.AmountOut
		if exactOutput {
			raw = r.Quote.AmountIn
		}
		amount, ok := math.NewIntFromString(raw)
		if !ok || amount.IsNegative() {
			continue
		}
		offers = append(offers, Offer{
			RouteID:            r.RouteID,
			Amount:             amount,
			ETASeconds:         r.Quote.ExpectedDurationSeconds,
			IsGuaranteedOutput: exactOutput && r.ExactOutMethod == types.ExactOutNative,
			IsOneClick:         r.HasTag(types.TagOneClick),
		})
	}
	return offers
}

// RankRoutes returns route ids ordered best first for the trade type
func RankRoutes(routes []types.Route, tradeType types.TradeType) []string {
	offers := BuildOffers(routes, tradeType)
	if tradeType == types.ExactOutput {
		return RankMinInput(offers)
	}
	return RankMaxOutput(offers)
}

// BestRoute returns the top ranked route, or nil when there is none
func BestRoute(routes []types.Route, tradeType types.TradeType) *types.Route {
	ranked := RankRoutes(routes, tradeType)
	if len(ranked) == 0 {
		return nil
	}
	for i := range routes {
		if routes[i].RouteID == ranked[0] {
			r := routes[i]
			return &r
		}
	}
	return nil
}
