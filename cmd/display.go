package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"tokenflight/pkg/amount"
	"tokenflight/pkg/ranking"
	"tokenflight/pkg/swap"
	"tokenflight/pkg/token"
	"tokenflight/pkg/types"
)

// displayAmount renders base units with the token's decimals, or raw base
// units when decimals are unknown
func displayAmount(baseUnits string, tok *token.ResolvedToken) string {
	if tok == nil || !tok.Resolved() {
		return baseUnits + " (base units)"
	}
	display, err := amount.ToDisplayAmount(baseUnits, int(*tok.Decimals))
	if err != nil {
		return baseUnits
	}
	return amount.FormatDisplayAmount(display, amount.DefaultMaxDecimals)
}

func exchangeRate(route types.Route, from, to *token.ResolvedToken) string {
	if from == nil || to == nil || !from.Resolved() || !to.Resolved() {
		return "-"
	}
	return amount.ComputeExchangeRate(route.Quote.AmountIn, int(*from.Decimals), route.Quote.AmountOut, int(*to.Decimals))
}

func printJSON(v any) {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(jsonData))
}

// displayRoutes prints the routes of a quoted session best first
func displayRoutes(s swap.State) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                                  SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 80))

	from, to := s.FromToken, s.ToToken
	fmt.Printf("\n  Quote ID:   %s\n", color.CyanString(s.QuoteID))
	fmt.Printf("  From:       %s\n", color.YellowString(from.Label()))
	fmt.Printf("  To:         %s\n", color.YellowString(to.Label()))
	if s.TradeType == types.ExactOutput {
		fmt.Printf("  Receive:    exactly %s %s\n\n", s.TargetAmount, to.Label())
	} else {
		fmt.Printf("  Send:       exactly %s %s\n\n", s.InputAmount, from.Label())
	}

	byID := make(map[string]types.Route, len(s.Routes))
	for _, r := range s.Routes {
		byID[r.RouteID] = r
	}

	for i, id := range ranking.RankRoutes(s.Routes, s.TradeType) {
		r := byID[id]
		marker := "  "
		if id == s.SelectedRouteID {
			marker = color.GreenString("->")
		}

		fmt.Printf("%s %d. %-12s  in %s  out %s  rate %s  ~%ds",
			marker, i+1,
			r.Type,
			displayAmount(r.Quote.AmountIn, from),
			displayAmount(r.Quote.AmountOut, to),
			exchangeRate(r, from, to),
			r.Quote.ExpectedDurationSeconds)
		if len(r.Tags) > 0 {
			fmt.Printf("  %s", color.HiBlackString("[%s]", strings.Join(r.Tags, ", ")))
		}
		fmt.Println()
	}

	if selected := s.SelectedRoute(); selected != nil {
		validFor := time.Until(time.Unix(selected.Quote.ValidBefore, 0)).Round(time.Second)
		fmt.Printf("\n  Selected route valid for %s\n", validFor)
	}
	fmt.Println("\n" + strings.Repeat("=", 80) + "\n")
}

func displayOrder(order *types.Order) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                          ORDER STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Order ID:        %s\n", color.CyanString(order.ID))
	fmt.Printf("  Status:          %s\n", getColoredStatus(order.Status))
	if order.UpdatedAt != nil {
		fmt.Printf("  Last Updated:    %s\n", order.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	if order.SrcAmount != "" {
		fmt.Printf("  Amount In:       %s (%s)\n", order.SrcAmount, order.FromToken.Address)
	}
	if order.DestAmount != "" {
		fmt.Printf("  Amount Out:      %s (%s)\n", order.DestAmount, order.ToToken.Address)
	}
	if order.DepositTxHash != "" {
		fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(order.DepositTxHash))
	}
	if order.FillTxHash != "" {
		fmt.Printf("  Fill Tx:         %s\n", color.HiBlackString(order.FillTxHash))
	}
	if order.RefundTxHash != "" {
		fmt.Printf("  Refund Tx:       %s\n", color.HiBlackString(order.RefundTxHash))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	label := strings.ToUpper(status)

	switch status {
	case types.OrderFilled:
		return color.GreenString(label)
	case types.OrderCreated, types.OrderDeposited, types.OrderPending:
		return color.YellowString(label)
	case types.OrderFailed, types.OrderRefunded:
		return color.RedString(label)
	default:
		return label
	}
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
