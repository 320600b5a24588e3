package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tokenflight/pkg/amount"
	"tokenflight/pkg/token"
	"tokenflight/pkg/types"
)

var filterChains []int64

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens"},
	Short:   "Search tokens, list popular tokens and show balances",
	Long: `Look up the tokens the backend supports.

Examples:
  tokenflight tokens search USDC
  tokenflight tokens search USDC --chain 1 --chain 10
  tokenflight tokens top --chain 20011000000
  tokenflight tokens balances 0x1234...abcd`,
}

var tokensSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find tokens by symbol, name or address",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		listTokens(cmd, " Searching tokens...", func(a *app) ([]types.TokenInfo, error) {
			ctx, cancel := signalContext()
			defer cancel()
			return a.api.SearchTokens(ctx, args[0], filterChains)
		})
	},
}

var tokensTopCmd = &cobra.Command{
	Use:   "top",
	Short: "List the most traded tokens",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		listTokens(cmd, " Fetching top tokens...", func(a *app) ([]types.TokenInfo, error) {
			ctx, cancel := signalContext()
			defer cancel()
			return a.api.GetTopTokens(ctx, filterChains)
		})
	},
}

var tokensBalancesCmd = &cobra.Command{
	Use:   "balances <address>",
	Short: "Show the token balances of an address",
	Args:  cobra.ExactArgs(1),
	Run:   runBalances,
}

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List supported chains",
	Args:  cobra.NoArgs,
	Run:   runChains,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(chainsCmd)
	tokensCmd.AddCommand(tokensSearchCmd, tokensTopCmd, tokensBalancesCmd)

	tokensCmd.PersistentFlags().Int64SliceVar(&filterChains, "chain", nil, "Filter by chain id (repeatable)")
}

// listTokens fetches tokens, remembers their metadata in the resolver cache
// and prints them
func listTokens(cmd *cobra.Command, progress string, fetch func(a *app) ([]types.TokenInfo, error)) {
	a := mustApp(cmd)
	defer a.close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = progress
		s.Start()
	}

	tokens, err := fetch(a)
	if !a.jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		a.close()
		os.Exit(1)
	}

	for _, info := range tokens {
		if info.Decimals != nil {
			a.resolver.Remember(token.FromTokenInfo(info))
		}
	}

	if a.jsonOutput {
		printJSON(tokens)
		return
	}
	displayTokens(tokens)
}

func displayTokens(tokens []types.TokenInfo) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                    TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	// Group tokens by chain
	byChain := make(map[int64][]types.TokenInfo)
	for _, t := range tokens {
		byChain[t.ChainID] = append(byChain[t.ChainID], t)
	}

	chains := make([]int64, 0, len(byChain))
	for chainID := range byChain {
		chains = append(chains, chainID)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	for _, chainID := range chains {
		color.Cyan("\nCHAIN %d", chainID)
		fmt.Println(strings.Repeat("-", 90))

		for _, t := range byChain[chainID] {
			decimals := "?"
			if t.Decimals != nil {
				decimals = fmt.Sprintf("%d", *t.Decimals)
			}
			price := ""
			if t.PriceUSD != nil {
				price = fmt.Sprintf("$%.4f", *t.PriceUSD)
			}

			fmt.Printf("  %-10s  %2s decimals  %-10s  %s\n",
				color.YellowString(t.Symbol),
				decimals,
				price,
				color.HiBlackString(token.Target{ChainID: t.ChainID, Address: t.Address}.String()))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d chains\n\n", len(tokens), len(chains))
}

func runBalances(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = " Fetching balances..."
		s.Start()
	}

	balances, err := a.api.GetTokenBalances(ctx, args[0], filterChains)
	if !a.jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		a.close()
		os.Exit(1)
	}

	if a.jsonOutput {
		printJSON(balances)
		return
	}

	if len(balances) == 0 {
		fmt.Println("\nNo balances found.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                           BALANCES")
	fmt.Println(strings.Repeat("=", 70))
	for _, b := range balances {
		shown := b.Balance
		if b.Decimals != nil {
			if display, err := amount.ToDisplayAmount(b.Balance, int(*b.Decimals)); err == nil {
				shown = amount.FormatDisplayAmount(display, amount.DefaultMaxDecimals)
			}
		}
		usd := ""
		if b.BalanceUSD != nil {
			usd = fmt.Sprintf("($%.2f)", *b.BalanceUSD)
		}
		fmt.Printf("  %-10s  %-24s %s  chain %d\n", color.YellowString(b.Symbol), shown, usd, b.ChainID)
	}
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func runChains(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	chains, err := a.api.GetChains(ctx)
	if err != nil {
		printError(err)
		a.close()
		os.Exit(1)
	}

	if a.jsonOutput {
		printJSON(chains)
		return
	}

	fmt.Println()
	for _, c := range chains {
		fmt.Printf("  %-14d %-20s %s\n", c.ChainID, color.CyanString(c.Name), color.HiBlackString(c.Namespace))
	}
	fmt.Println()
}
