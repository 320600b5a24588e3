package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"tokenflight/pkg/parser"
	"tokenflight/pkg/swap"
	"tokenflight/pkg/types"
)

var (
	quoteFromAddress string
	quoteRecipient   string
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Compare the routes available for a swap",
	Long: `Request quotes for a swap and list the competing routes, best first.

Use "<amount> <source> to <dest>" to fix the amount you send and
"<source> for <amount> <dest>" to fix the amount you receive.

Examples:
  tokenflight quote 100 eip155:1:0xA0b8...eB48 to solana:mainnet:So111...1112
  tokenflight quote eip155:1:0xA0b8...eB48 for 1.5 solana:mainnet:So111...1112`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteFromAddress, "from-address", "", "Address that will fund the swap (improves route accuracy)")
	quoteCmd.Flags().StringVar(&quoteRecipient, "recipient", "", "Address receiving the destination token")
}

// signalContext is cancelled on Ctrl+C
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// requestQuote parses a swap command, resolves both tokens and asks engine
// for routes
func requestQuote(ctx context.Context, a *app, engine *swap.Engine, args []string, fromAddress, recipient string) error {
	swapReq, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if recipient != "" {
		swapReq.Recipient = recipient
	}
	swapReq.FromAddress = fromAddress

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = " Resolving tokens..."
		s.Start()
		defer s.Stop()
	}

	from, err := a.resolveToken(ctx, swapReq.SourceToken)
	if err != nil {
		return err
	}
	to, err := a.resolveToken(ctx, swapReq.DestToken)
	if err != nil {
		return err
	}

	s.Lock()
	s.Suffix = " Fetching quotes..."
	s.Unlock()
	return engine.RequestQuote(ctx, swap.QuoteParams{
		From:        from,
		To:          to,
		Amount:      swapReq.Amount,
		TradeType:   swapReq.TradeType,
		Recipient:   swapReq.Recipient,
		FromAddress: swapReq.FromAddress,
	})
}

type quoteOutput struct {
	QuoteID         string        `json:"quote_id"`
	TradeType       string        `json:"trade_type"`
	SelectedRouteID string        `json:"selected_route_id"`
	RankedRouteIDs  []string      `json:"ranked_route_ids"`
	Routes          []types.Route `json:"routes"`
}

func newQuoteOutput(s swap.State, ranked []string) quoteOutput {
	return quoteOutput{
		QuoteID:         s.QuoteID,
		TradeType:       string(s.TradeType),
		SelectedRouteID: s.SelectedRouteID,
		RankedRouteIDs:  ranked,
		Routes:          s.Routes,
	}
}

func runQuote(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	engine := a.newEngine()
	defer engine.Close()

	if err := requestQuote(ctx, a, engine, args, quoteFromAddress, quoteRecipient); err != nil {
		printError(err)
		a.close()
		os.Exit(1)
	}

	state := engine.Machine().Snapshot()
	if a.jsonOutput {
		printJSON(newQuoteOutput(state, rankedIDs(state)))
		return
	}
	displayRoutes(state)
}
