package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tokenflight/pkg/parser"
	"tokenflight/pkg/ranking"
	"tokenflight/pkg/swap"
	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/token"
)

var (
	recipientAddr string
	noConfirm     bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Perform a cross-chain token swap",
	Long: `Quote a swap, execute the best route with the configured wallet and
track the order until it settles.

The wallet is chosen from the source token: Solana tokens use the solana.*
settings, every other chain uses the evm.* settings.

Examples:
  # Send exactly 100 USDC, receive as much SOL as possible
  tokenflight swap 100 eip155:1:0xA0b8...eB48 to solana:mainnet:So111...1112 --recipient <solana-addr>

  # Receive exactly 1.5 SOL
  tokenflight swap eip155:1:0xA0b8...eB48 for 1.5 solana:mainnet:So111...1112 --recipient <solana-addr>

  # Skip the confirmation prompt
  tokenflight swap 100 eip155:1:0xA0b8...eB48 to eip155:10:0x0b2C...Ff85 --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&recipientAddr, "recipient", "", "Recipient address on the destination chain (defaults to the wallet address)")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

var phaseMessages = map[swap.Phase]string{
	swap.PhaseQuoting:        " Fetching quotes...",
	swap.PhaseBuilding:       " Building deposit...",
	swap.PhaseAwaitingWallet: " Signing with wallet...",
	swap.PhaseSubmitting:     " Submitting deposit...",
	swap.PhaseTracking:       " Waiting for the order to settle...",
}

func rankedIDs(s swap.State) []string {
	return ranking.RankRoutes(s.Routes, s.TradeType)
}

func runSwap(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()

	fail := func(err error) {
		printError(err)
		a.close()
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// The source token decides which wallet funds the deposit
	swapReq, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		fail(err)
	}
	source, err := token.Parse(swapReq.SourceToken)
	if err != nil {
		fail(err)
	}
	dest, err := token.Parse(swapReq.DestToken)
	if err != nil {
		fail(err)
	}
	w, err := a.newWallet(source)
	if err != nil {
		fail(err)
	}

	engine := a.newEngine()
	defer engine.Close()

	if err := engine.ConnectWallet(ctx, w); err != nil {
		fail(err)
	}
	defer w.Disconnect(ctx)

	if a.verbose {
		fmt.Printf("\nWallet: %s\n", color.CyanString(w.Address()))
	}

	recipient := recipientAddr
	if recipient == "" {
		if source.IsSolana() != dest.IsSolana() {
			fail(swaperr.New(swaperr.MissingRequiredField, "--recipient is required when the destination chain uses another address format"))
		}
		recipient = w.Address()
	}
	if err := requestQuote(ctx, a, engine, args, w.Address(), recipient); err != nil {
		fail(err)
	}

	state := engine.Machine().Snapshot()
	if a.jsonOutput {
		printJSON(newQuoteOutput(state, rankedIDs(state)))
	} else {
		displayRoutes(state)
	}

	if !noConfirm && !a.jsonOutput {
		if !confirm("Proceed with swap?") {
			fmt.Println("\nSwap cancelled.")
			return
		}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = phaseMessages[swap.PhaseBuilding]
		s.Start()
	}
	unsubscribe := engine.Machine().Subscribe(func(st swap.State) {
		if msg, ok := phaseMessages[st.Phase]; ok {
			s.Lock()
			s.Suffix = msg
			s.Unlock()
		}
	})

	order, err := engine.Execute(ctx)
	unsubscribe()
	if !a.jsonOutput {
		s.Stop()
	}

	if a.jsonOutput {
		printJSON(map[string]any{
			"phase":      engine.Machine().Phase(),
			"order":      order,
			"error":      errString(err),
			"error_code": engine.Machine().Snapshot().ErrorCode,
		})
		if err != nil {
			a.close()
			os.Exit(1)
		}
		return
	}

	if order != nil {
		displayOrder(order)
	}
	if err != nil {
		fail(err)
	}
	color.Green("Swap complete!")
	fmt.Println()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
