package token

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tokenflight/pkg/swaperr"
)

const usdcMainnet = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

func TestParseAcceptedForms(t *testing.T) {
	want := Target{ChainID: 1, Address: usdcMainnet}

	cases := []any{
		want,
		&want,
		map[string]any{"chainId": float64(1), "address": usdcMainnet},
		map[string]any{"chainId": 1, "address": usdcMainnet},
		`{"chainId":1,"address":"` + usdcMainnet + `"}`,
		[]byte(`{"chainId": 1, "address": "` + usdcMainnet + `"}`),
		"eip155:1:" + usdcMainnet,
	}
	for _, in := range cases {
		got, err := Parse(in)
		require.NoError(t, err, "%v", in)
		require.Equal(t, want, got)
	}
}

func TestParseSolanaTriplet(t *testing.T) {
	got, err := Parse("solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp:EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	require.NoError(t, err)
	require.Equal(t, SolanaChainID, got.ChainID)
	require.True(t, got.IsSolana())
	require.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", got.Address)
}

func TestParseRejects(t *testing.T) {
	cases := []any{
		"eip155:1",
		"eip155:1:0xabc:extra",
		"eip155::0xabc",
		":1:0xabc",
		"cosmos:cosmoshub-4:uatom",
		"eip155:mainnet:0xabc",
		"solana:devnet:So11111111111111111111111111111111111111112",
		`{"chainId":1,"address":`,
		`{"chainId":"1","address":"0xabc"}`,
		`{"chainId":1}`,
		`{"chainId":1.5,"address":"0xabc"}`,
		map[string]any{"chainId": "1", "address": "0xabc"},
		map[string]any{"chainId": 1, "address": 42},
		Target{ChainID: 0, Address: "0xabc"},
		(*Target)(nil),
		42,
	}
	for _, in := range cases {
		_, err := Parse(in)
		require.Error(t, err, "%v", in)
		require.True(t, swaperr.HasCode(err, swaperr.InvalidTokenIdentifier), "%v", in)
	}
}

func TestTargetKeyIsCaseFolded(t *testing.T) {
	a := Target{ChainID: 1, Address: usdcMainnet}
	b := Target{ChainID: 1, Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"}
	require.Equal(t, a.Key(), b.Key())
	require.Equal(t, "1:"+usdcMainnet, a.String())
}
