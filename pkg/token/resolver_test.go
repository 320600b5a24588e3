package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tokenflight/pkg/types"
)

type fakeSearcher struct {
	calls   atomic.Int32
	results []types.TokenInfo
	err     error
	release chan struct{}
}

func (f *fakeSearcher) SearchTokens(ctx context.Context, query string, chainIDs []int64) ([]types.TokenInfo, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.results, f.err
}

func decimals(d uint8) *uint8 { return &d }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func usdcInfo() types.TokenInfo {
	return types.TokenInfo{ChainID: 1, Address: usdcMainnet, Symbol: "USDC", Name: "USD Coin", Decimals: decimals(6)}
}

func TestResolveWithoutSearcherIsUnresolved(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store)

	tok, err := r.Resolve(context.Background(), 1, usdcMainnet, nil)
	require.NoError(t, err)
	require.False(t, tok.Resolved())
	require.Nil(t, tok.Decimals)

	keys, err := store.Keys(KeyPrefix)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestResolveRejectsInvalidTarget(t *testing.T) {
	r := NewResolver(nil)
	_, err := r.Resolve(context.Background(), 0, usdcMainnet, nil)
	require.Error(t, err)
}

func TestResolvePopulatesBothTiers(t *testing.T) {
	store := NewMemoryStore()
	searcher := &fakeSearcher{results: []types.TokenInfo{
		{ChainID: 1, Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Symbol: "USDT", Decimals: decimals(6)},
		usdcInfo(),
	}}
	r := NewResolver(store)

	tok, err := r.Resolve(context.Background(), 1, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", searcher)
	require.NoError(t, err)
	require.Equal(t, "USDC", tok.Symbol)
	require.Equal(t, uint8(6), *tok.Decimals)

	_, ok, err := store.Get(KeyPrefix + "1:" + "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	require.NoError(t, err)
	require.True(t, ok)

	// Memory hit, no second search
	_, err = r.Resolve(context.Background(), 1, usdcMainnet, searcher)
	require.NoError(t, err)
	require.EqualValues(t, 1, searcher.calls.Load())

	// A fresh resolver over the same store is served from the persistent tier
	fresh := NewResolver(store)
	tok, err = fresh.Resolve(context.Background(), 1, usdcMainnet, nil)
	require.NoError(t, err)
	require.True(t, tok.Resolved())
}

func TestBestMatchFallbacks(t *testing.T) {
	target := Target{ChainID: 10, Address: "0xabc"}

	sameChain := types.TokenInfo{ChainID: 10, Address: "0xdef", Symbol: "SAME"}
	other := types.TokenInfo{ChainID: 1, Address: "0xabc", Symbol: "OTHER"}

	got, ok := bestMatch([]types.TokenInfo{other, sameChain}, target)
	require.True(t, ok)
	require.Equal(t, "SAME", got.Symbol)

	got, ok = bestMatch([]types.TokenInfo{other}, target)
	require.True(t, ok)
	require.Equal(t, "OTHER", got.Symbol)

	_, ok = bestMatch(nil, target)
	require.False(t, ok)
}

func TestResolveEmptyOrFailedSearchIsNotCached(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store)

	tok, err := r.Resolve(context.Background(), 1, usdcMainnet, &fakeSearcher{})
	require.NoError(t, err)
	require.False(t, tok.Resolved())

	tok, err = r.Resolve(context.Background(), 1, usdcMainnet, &fakeSearcher{err: errors.New("boom")})
	require.NoError(t, err)
	require.False(t, tok.Resolved())

	keys, err := store.Keys(KeyPrefix)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestPersistentEntriesExpire(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore()
	searcher := &fakeSearcher{results: []types.TokenInfo{usdcInfo()}}

	_, err := NewResolver(store, WithClock(c.Now)).Resolve(context.Background(), 1, usdcMainnet, searcher)
	require.NoError(t, err)

	c.Advance(DefaultTTL + time.Second)

	tok, err := NewResolver(store, WithClock(c.Now)).Resolve(context.Background(), 1, usdcMainnet, nil)
	require.NoError(t, err)
	require.False(t, tok.Resolved())

	keys, err := store.Keys(KeyPrefix)
	require.NoError(t, err)
	require.Empty(t, keys, "expired entry should be evicted on read")
}

func TestConcurrentLookupsShareOneSearch(t *testing.T) {
	searcher := &fakeSearcher{
		results: []types.TokenInfo{usdcInfo()},
		release: make(chan struct{}),
	}
	r := NewResolver(nil)

	var wg sync.WaitGroup
	results := make([]ResolvedToken, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := r.Resolve(context.Background(), 1, usdcMainnet, searcher)
			require.NoError(t, err)
			results[i] = tok
		}(i)
	}

	require.Eventually(t, func() bool { return searcher.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(searcher.release)
	wg.Wait()

	require.EqualValues(t, 1, searcher.calls.Load())
	for _, tok := range results {
		require.Equal(t, "USDC", tok.Symbol)
	}
}

func TestClearOnlyTouchesResolverKeys(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set("other:setting", []byte(`true`)))

	r := NewResolver(store)
	_, err := r.Resolve(context.Background(), 1, usdcMainnet, &fakeSearcher{results: []types.TokenInfo{usdcInfo()}})
	require.NoError(t, err)

	require.NoError(t, r.Clear())

	keys, err := store.Keys("")
	require.NoError(t, err)
	require.Equal(t, []string{"other:setting"}, keys)

	tok, err := r.Resolve(context.Background(), 1, usdcMainnet, nil)
	require.NoError(t, err)
	require.False(t, tok.Resolved())
}

func TestRememberSeedsCache(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store)

	r.Remember(FromTokenInfo(types.TokenInfo{ChainID: 1, Address: usdcMainnet, Symbol: "NODEC"}))
	r.Remember(FromTokenInfo(usdcInfo()))

	tok, err := NewResolver(store).Resolve(context.Background(), 1, usdcMainnet, nil)
	require.NoError(t, err)
	require.True(t, tok.Resolved())
	require.Equal(t, "USDC", tok.Symbol)
}

func TestFallbackMatchKeepsRequestedIdentity(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store)
	searcher := &fakeSearcher{results: []types.TokenInfo{
		{ChainID: 1, Address: "0xBBBB", Symbol: "OTHER", Decimals: decimals(18)},
	}}

	tok, err := r.Resolve(context.Background(), 1, "0xAAAA", searcher)
	require.NoError(t, err)
	require.Equal(t, Target{ChainID: 1, Address: "0xAAAA"}, tok.Target)
	require.Equal(t, "OTHER", tok.Symbol)
	require.Equal(t, uint8(18), *tok.Decimals)

	cached, err := NewResolver(store).Resolve(context.Background(), 1, "0xAAAA", nil)
	require.NoError(t, err)
	require.Equal(t, "0xAAAA", cached.Address)
}
