package parser

import (
	"fmt"
	"regexp"
	"strings"

	"tokenflight/pkg/swaperr"
	"tokenflight/pkg/token"
	"tokenflight/pkg/types"
)

var (
	// <amount> <from> to <to> [recipient <address>]
	exactInputPattern = regexp.MustCompile(`^(?i:swap\s+)?(\d+(?:\.\d*)?|\.\d+)\s+(\S+)\s+(?i:to)\s+(\S+)(?:\s+(?i:recipient)\s+(\S+))?$`)
	// <from> for <amount> <to> [recipient <address>]
	exactOutputPattern = regexp.MustCompile(`^(?i:swap\s+)?(\S+)\s+(?i:for)\s+(\d+(?:\.\d*)?|\.\d+)\s+(\S+)(?:\s+(?i:recipient)\s+(\S+))?$`)
)

// ParseSwapCommand parses a swap command. Token references are
// namespace:reference:address triplets and keep their case.
// Examples:
//   - "swap 1.5 eip155:1:0xA0b8...eB48 to solana:mainnet:So111...1112"
//   - "eip155:1:0xA0b8...eB48 for 2 solana:mainnet:So111...1112"
//   - "100 eip155:10:0x0b2C...Ff85 to eip155:1:0xA0b8...eB48 recipient 0xAbC..."
func ParseSwapCommand(command string) (*types.SwapRequest, error) {
	command = strings.Join(strings.Fields(command), " ")

	if m := exactInputPattern.FindStringSubmatch(command); m != nil {
		req := &types.SwapRequest{
			Amount:      m[1],
			SourceToken: m[2],
			DestToken:   m[3],
			TradeType:   types.ExactInput,
			Recipient:   m[4],
		}
		return req, ValidateSwapRequest(req)
	}
	if m := exactOutputPattern.FindStringSubmatch(command); m != nil {
		req := &types.SwapRequest{
			Amount:      m[2],
			SourceToken: m[1],
			DestToken:   m[3],
			TradeType:   types.ExactOutput,
			Recipient:   m[4],
		}
		return req, ValidateSwapRequest(req)
	}

	return nil, swaperr.New(swaperr.InvalidConfig,
		"invalid swap command format. Expected: 'swap <amount> <token> to <token>' or 'swap <token> for <amount> <token>'")
}

// ValidateSwapRequest validates that a swap request has all required fields
// and that both token references parse
func ValidateSwapRequest(req *types.SwapRequest) error {
	if req.Amount == "" {
		return swaperr.New(swaperr.MissingRequiredField, "amount is required")
	}
	if req.SourceToken == "" {
		return swaperr.New(swaperr.MissingRequiredField, "source token is required")
	}
	if req.DestToken == "" {
		return swaperr.New(swaperr.MissingRequiredField, "destination token is required")
	}

	src, err := token.Parse(req.SourceToken)
	if err != nil {
		return fmt.Errorf("source token: %w", err)
	}
	dst, err := token.Parse(req.DestToken)
	if err != nil {
		return fmt.Errorf("destination token: %w", err)
	}
	if src.Key() == dst.Key() {
		return swaperr.New(swaperr.InvalidTokenIdentifier, "source and destination token are the same")
	}
	return nil
}
