package poller

import (
	"time"

	"tokenflight/pkg/types"
)

// Tier is one step of the polling schedule: while less than Below has
// elapsed since the last successful fetch, poll every Interval.
type Tier struct {
	Below    time.Duration
	Interval time.Duration
}

// Schedule tiers, ascending. Orders older than the last tier poll at
// DefaultInterval.
var Schedule = []Tier{
	{Below: 10 * time.Second, Interval: 1 * time.Second},
	{Below: 30 * time.Second, Interval: 2 * time.Second},
	{Below: 60 * time.Second, Interval: 3 * time.Second},
	{Below: 120 * time.Second, Interval: 5 * time.Second},
}

const (
	// FastestInterval is used before the first successful fetch
	FastestInterval = 1 * time.Second
	DefaultInterval = 10 * time.Second
)

// Params describes the order being tracked
type Params struct {
	OrderStatus string
	// DataUpdatedAt is the time of the last successful fetch; zero if none
	DataUpdatedAt time.Time
	Now           time.Time
}

// NextInterval returns the delay before the next status fetch, or false
// when the order reached a terminal status and polling should stop.
func NextInterval(p Params) (time.Duration, bool) {
	if types.IsTerminalOrderStatus(p.OrderStatus) {
		return 0, false
	}
	if p.DataUpdatedAt.IsZero() {
		return FastestInterval, true
	}

	elapsed := p.Now.Sub(p.DataUpdatedAt)
	for _, tier := range Schedule {
		if elapsed < tier.Below {
			return tier.Interval, true
		}
	}
	return DefaultInterval, true
}
