package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tokenflight/pkg/poller"
	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/types"
)

var (
	statusAddress string
	watchStatus   bool
)

var statusCmd = &cobra.Command{
	Use:   "status <order-id>",
	Short: "Check the status of a swap order",
	Long: `Check the status of a swap order created by an address.

With --watch the order is polled until it is filled, refunded or failed.
Polling starts every second and slows down while the status does not change.

Examples:
  tokenflight status 3f6c...9a1e --address 0x1234...abcd
  tokenflight status 3f6c...9a1e --address 0x1234...abcd --watch`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusAddress, "address", "", "Address that created the order (required)")
	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the order settles")
	_ = statusCmd.MarkFlagRequired("address")
}

func runStatus(cmd *cobra.Command, args []string) {
	orderID := args[0]
	a := mustApp(cmd)
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	var err error
	if watchStatus {
		err = watchOrder(ctx, a, orderID)
	} else {
		err = checkOrder(ctx, a, orderID)
	}
	if err != nil {
		printError(err)
		a.close()
		os.Exit(1)
	}
}

func checkOrder(ctx context.Context, a *app, orderID string) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = " Checking order status..."
		s.Start()
	}

	order, err := a.api.GetOrderByID(ctx, statusAddress, orderID)
	if !a.jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if a.jsonOutput {
		printJSON(order)
	} else {
		displayOrder(order)
	}
	return nil
}

func watchOrder(ctx context.Context, a *app, orderID string) error {
	if a.jsonOutput {
		return swaperr.New(swaperr.InvalidConfig, "watch mode is not supported with JSON output")
	}

	fmt.Printf("\nWatching order %s. Press Ctrl+C to stop.\n", color.CyanString(orderID))

	lastStatus := ""
	order, err := poller.Watch(ctx,
		func(ctx context.Context) (*types.Order, error) {
			return a.api.GetOrderByID(ctx, statusAddress, orderID)
		},
		func(order *types.Order) {
			if order.Status == lastStatus {
				return
			}
			lastStatus = order.Status
			fmt.Printf("%s  %s\n", time.Now().Format("15:04:05"), getColoredStatus(order.Status))
		},
		poller.WithLogger(a.logger),
	)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nStopped watching.")
			return nil
		}
		return err
	}

	displayOrder(order)
	if order.Status != types.OrderFilled {
		return swaperr.Newf(swaperr.OrderFailed, "order %s ended %s", order.ID, order.Status)
	}
	return nil
}
