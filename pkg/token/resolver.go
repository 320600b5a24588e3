package token

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tokenflight/pkg/types"
)

const (
	// KeyPrefix namespaces resolver entries inside a shared Store
	KeyPrefix = "tokenflight:token:"

	// DefaultTTL is how long a persisted token stays valid
	DefaultTTL = 30 * 24 * time.Hour
)

// ResolvedToken is a Target plus whatever metadata could be found.
// Decimals is nil when resolution failed; never assume a default.
type ResolvedToken struct {
	Target
	Symbol   string   `json:"symbol,omitempty"`
	Name     string   `json:"name,omitempty"`
	Decimals *uint8   `json:"decimals,omitempty"`
	LogoURI  string   `json:"logoURI,omitempty"`
	PriceUSD *float64 `json:"priceUsd,omitempty"`
}

// Resolved reports whether decimals are known
func (t ResolvedToken) Resolved() bool {
	return t.Decimals != nil
}

// Label is a short human readable name for the token
func (t ResolvedToken) Label() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Target.String()
}

// FromTokenInfo converts API token metadata
func FromTokenInfo(info types.TokenInfo) ResolvedToken {
	return ResolvedToken{
		Target:   Target{ChainID: info.ChainID, Address: info.Address},
		Symbol:   info.Symbol,
		Name:     info.Name,
		Decimals: info.Decimals,
		LogoURI:  info.LogoURI,
		PriceUSD: info.PriceUSD,
	}
}

// Searcher is the token-search capability of the API client
type Searcher interface {
	SearchTokens(ctx context.Context, query string, chainIDs []int64) ([]types.TokenInfo, error)
}

type persistedEntry struct {
	Token     ResolvedToken `json:"token"`
	ExpiresAt int64         `json:"expiresAt"`
}

type lookupResult struct {
	token ResolvedToken
	found bool
}

// Resolver resolves token targets to metadata through an in-memory cache,
// a persistent Store with TTL, and finally the token search API.
type Resolver struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu     sync.RWMutex
	memory map[string]ResolvedToken
	group  singleflight.Group
}

// Option configures a Resolver
type Option func(*Resolver)

// WithTTL overrides the persistent entry lifetime
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver over store. A nil store keeps the
// persistent tier in memory.
func NewResolver(store Store, opts ...Option) *Resolver {
	if store == nil {
		store = NewMemoryStore()
	}
	r := &Resolver{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.Default(),
		memory: make(map[string]ResolvedToken),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns metadata for the token at chainID/address. With a nil
// searcher, or when the search fails or finds nothing, the result carries
// no decimals and is not cached.
func (r *Resolver) Resolve(ctx context.Context, chainID int64, address string, searcher Searcher) (ResolvedToken, error) {
	target, err := validate(Target{ChainID: chainID, Address: address})
	if err != nil {
		return ResolvedToken{}, err
	}
	return r.ResolveTarget(ctx, target, searcher)
}

// ResolveTarget is Resolve for an already parsed target
func (r *Resolver) ResolveTarget(ctx context.Context, target Target, searcher Searcher) (ResolvedToken, error) {
	key := target.Key()

	if tok, ok := r.fromMemory(key); ok {
		return tok, nil
	}
	if tok, ok := r.fromStore(key); ok {
		return tok, nil
	}

	unresolved := ResolvedToken{Target: target}
	if searcher == nil {
		return unresolved, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.lookup(ctx, key, target, searcher)
	})
	if err != nil {
		r.logger.Warn("token lookup failed", "token", target.String(), "error", err)
		return unresolved, nil
	}

	res := v.(lookupResult)
	if !res.found {
		return unresolved, nil
	}
	return res.token, nil
}

func (r *Resolver) lookup(ctx context.Context, key string, target Target, searcher Searcher) (lookupResult, error) {
	// A concurrent lookup may have finished between our miss and this call
	if tok, ok := r.fromMemory(key); ok {
		return lookupResult{token: tok, found: true}, nil
	}

	results, err := searcher.SearchTokens(ctx, target.Address, []int64{target.ChainID})
	if err != nil {
		return lookupResult{}, err
	}
	info, ok := bestMatch(results, target)
	if !ok {
		return lookupResult{}, nil
	}

	// Fallback matches lend their metadata, never their identity
	tok := FromTokenInfo(info)
	tok.Target = target
	r.remember(key, tok)
	return lookupResult{token: tok, found: true}, nil
}

// bestMatch prefers an exact chain+address match, then any result on the
// same chain, then the first result.
func bestMatch(results []types.TokenInfo, target Target) (types.TokenInfo, bool) {
	if len(results) == 0 {
		return types.TokenInfo{}, false
	}
	for _, info := range results {
		if info.ChainID == target.ChainID && strings.EqualFold(info.Address, target.Address) {
			return info, true
		}
	}
	for _, info := range results {
		if info.ChainID == target.ChainID {
			return info, true
		}
	}
	return results[0], true
}

func (r *Resolver) fromMemory(key string) (ResolvedToken, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tok, ok := r.memory[key]
	return tok, ok
}

func (r *Resolver) fromStore(key string) (ResolvedToken, bool) {
	storeKey := KeyPrefix + key
	data, ok, err := r.store.Get(storeKey)
	if err != nil {
		r.logger.Warn("token cache read failed", "key", storeKey, "error", err)
		return ResolvedToken{}, false
	}
	if !ok {
		return ResolvedToken{}, false
	}

	var entry persistedEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		r.logger.Warn("dropping corrupt token cache entry", "key", storeKey, "error", err)
		_ = r.store.Delete(storeKey)
		return ResolvedToken{}, false
	}
	if r.now().UnixMilli() >= entry.ExpiresAt {
		if err := r.store.Delete(storeKey); err != nil {
			r.logger.Warn("token cache evict failed", "key", storeKey, "error", err)
		}
		return ResolvedToken{}, false
	}

	r.mu.Lock()
	r.memory[key] = entry.Token
	r.mu.Unlock()
	return entry.Token, true
}

func (r *Resolver) remember(key string, tok ResolvedToken) {
	r.mu.Lock()
	r.memory[key] = tok
	r.mu.Unlock()

	data, err := json.Marshal(persistedEntry{
		Token:     tok,
		ExpiresAt: r.now().Add(r.ttl).UnixMilli(),
	})
	if err != nil {
		r.logger.Warn("token cache encode failed", "key", key, "error", err)
		return
	}
	if err := r.store.Set(KeyPrefix+key, data); err != nil {
		r.logger.Warn("token cache write failed", "key", key, "error", err)
	}
}

// Clear drops every resolver entry from both tiers. Keys outside KeyPrefix
// are left untouched.
func (r *Resolver) Clear() error {
	r.mu.Lock()
	r.memory = make(map[string]ResolvedToken)
	r.mu.Unlock()

	keys, err := r.store.Keys(KeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list cache keys: %w", err)
	}
	for _, k := range keys {
		if err := r.store.Delete(k); err != nil {
			return fmt.Errorf("failed to delete %s: %w", k, err)
		}
	}
	return nil
}

// Remember seeds the cache with metadata obtained elsewhere, e.g. from a
// token listing. Tokens without decimals or with an invalid target are ignored.
func (r *Resolver) Remember(tok ResolvedToken) {
	if !tok.Resolved() {
		return
	}
	target, err := validate(tok.Target)
	if err != nil {
		return
	}
	tok.Target = target
	r.remember(target.Key(), tok)
}
