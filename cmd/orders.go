package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tokenflight/pkg/types"
)

var (
	ordersLimit  int
	ordersCursor string
	ordersIDs    []string
)

var ordersCmd = &cobra.Command{
	Use:   "orders <address>",
	Short: "List the swap orders of an address",
	Long: `List swap orders created by an address, newest first.

Examples:
  tokenflight orders 0x1234...abcd
  tokenflight orders 0x1234...abcd --limit 5
  tokenflight orders 0x1234...abcd --cursor <next-cursor>`,
	Args: cobra.ExactArgs(1),
	Run:  runOrders,
}

func init() {
	rootCmd.AddCommand(ordersCmd)

	ordersCmd.Flags().IntVar(&ordersLimit, "limit", 20, "Maximum number of orders to return")
	ordersCmd.Flags().StringVar(&ordersCursor, "cursor", "", "Continue from a previous page")
	ordersCmd.Flags().StringSliceVar(&ordersIDs, "id", nil, "Only return these order ids")
}

func runOrders(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = " Fetching orders..."
		s.Start()
	}

	resp, err := a.api.GetOrdersByAddress(ctx, args[0], types.OrdersQuery{
		OrderIDs: ordersIDs,
		Limit:    ordersLimit,
		Cursor:   ordersCursor,
	})
	if !a.jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		a.close()
		os.Exit(1)
	}

	if a.jsonOutput {
		printJSON(resp)
		return
	}
	displayOrders(resp)
}

func displayOrders(resp *types.OrdersResponse) {
	if len(resp.Data) == 0 {
		fmt.Println("\nNo orders found.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                    ORDERS")
	fmt.Println(strings.Repeat("=", 90))

	for _, order := range resp.Data {
		created := "-"
		if order.CreatedAt != nil {
			created = order.CreatedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("  %-38s  %-22s  %s  %d -> %d\n",
			color.CyanString(order.ID),
			getColoredStatus(order.Status),
			created,
			order.FromToken.ChainID,
			order.ToToken.ChainID)
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	if resp.NextCursor != "" {
		fmt.Printf("\nMore orders available: --cursor %s\n", resp.NextCursor)
	}
	fmt.Println()
}
