package amount

import (
	"math/big"
	"strings"

	"tokenflight/pkg/swaperr"
)

const (
	// DefaultMaxDecimals is the display precision used when none is given
	DefaultMaxDecimals = 6

	// rateScaleDigits is the fixed precision of ComputeExchangeRate
	rateScaleDigits = 8
)

// ToDisplayAmount converts an integer amount in base units (decimal or
// 0x-prefixed hex, optionally negative) into a human readable decimal string
// with trailing fractional zeros removed.
//
// Examples:
//   - ToDisplayAmount("1500000", 6) = "1.5"
//   - ToDisplayAmount("0x16e360", 6) = "1.5"
//   - ToDisplayAmount("", 18) = "0"
func ToDisplayAmount(baseUnits string, decimals int) (string, error) {
	if decimals < 0 {
		return "", swaperr.Newf(swaperr.InvalidAmount, "decimals must not be negative, got %d", decimals)
	}

	s := strings.TrimSpace(baseUnits)
	if s == "" {
		return "0", nil
	}

	value, err := parseInteger(s)
	if err != nil {
		return "", err
	}

	negative := value.Sign() < 0
	digits := new(big.Int).Abs(value).String()

	// Pad so there is always at least one integer digit
	if len(digits) < decimals+1 {
		digits = strings.Repeat("0", decimals+1-len(digits)) + digits
	}

	intPart := digits[:len(digits)-decimals]
	fracPart := strings.TrimRight(digits[len(digits)-decimals:], "0")

	result := intPart
	if fracPart != "" {
		result += "." + fracPart
	}
	if negative {
		result = "-" + result
	}
	return result, nil
}

// ToBaseUnits converts a display amount into an integer string of base
// units. Fractional digits beyond decimals are truncated, never rounded.
func ToBaseUnits(display string, decimals int) (string, error) {
	if decimals < 0 {
		return "", swaperr.Newf(swaperr.InvalidAmount, "decimals must not be negative, got %d", decimals)
	}

	s := strings.TrimSpace(display)
	if s == "" {
		return "0", nil
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return "", swaperr.Newf(swaperr.InvalidAmount, "invalid amount %q", display)
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return "", swaperr.Newf(swaperr.InvalidAmount, "invalid amount %q", display)
	}

	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	} else {
		fracPart += strings.Repeat("0", decimals-len(fracPart))
	}

	result := strings.TrimLeft(intPart+fracPart, "0")
	if result == "" {
		return "0", nil
	}
	if negative {
		result = "-" + result
	}
	return result, nil
}

// ComputeExchangeRate returns how many output tokens one input token buys,
// (amountOut / 10^decimalsOut) / (amountIn / 10^decimalsIn), with eight
// fractional digits of precision. It returns "0" when amountIn is zero,
// empty or unparsable.
func ComputeExchangeRate(amountIn string, decimalsIn int, amountOut string, decimalsOut int) string {
	if decimalsIn < 0 || decimalsOut < 0 {
		return "0"
	}

	in := strings.TrimSpace(amountIn)
	if in == "" || in == "0" {
		return "0"
	}
	inValue, err := parseInteger(in)
	if err != nil || inValue.Sign() == 0 {
		return "0"
	}
	outValue, err := parseInteger(strings.TrimSpace(amountOut))
	if err != nil {
		return "0"
	}

	// rate * 10^8 = out * 10^decimalsIn * 10^8 / (in * 10^decimalsOut)
	numerator := new(big.Int).Mul(outValue, pow10(decimalsIn+rateScaleDigits))
	denominator := new(big.Int).Mul(inValue, pow10(decimalsOut))
	scaled := new(big.Int).Quo(numerator, denominator)

	rate, err := ToDisplayAmount(scaled.String(), rateScaleDigits)
	if err != nil {
		return "0"
	}
	return rate
}

// FormatDisplayAmount truncates a display amount to maxDecimals fractional
// digits and strips trailing zeros. It works on the string directly so no
// floating point rounding is introduced.
func FormatDisplayAmount(amount string, maxDecimals int) string {
	s := strings.TrimSpace(amount)
	if s == "" {
		return "0"
	}
	if maxDecimals < 0 {
		maxDecimals = 0
	}

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > maxDecimals {
		fracPart = fracPart[:maxDecimals]
	}
	fracPart = strings.TrimRight(fracPart, "0")

	result := intPart
	if fracPart != "" {
		result += "." + fracPart
	}
	if result == "0" {
		return result
	}
	return sign + result
}

// parseInteger parses a decimal or 0x-prefixed hex integer with an optional
// leading minus sign.
func parseInteger(s string) (*big.Int, error) {
	body := s
	negative := false
	if strings.HasPrefix(body, "-") {
		negative = true
		body = body[1:]
	}

	value := new(big.Int)
	var ok bool
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		hex := body[2:]
		if hex == "" {
			return nil, swaperr.Newf(swaperr.InvalidAmount, "invalid amount %q", s)
		}
		_, ok = value.SetString(hex, 16)
	} else {
		if body == "" || !isDigits(body) {
			return nil, swaperr.Newf(swaperr.InvalidAmount, "invalid amount %q", s)
		}
		_, ok = value.SetString(body, 10)
	}
	if !ok {
		return nil, swaperr.Newf(swaperr.InvalidAmount, "invalid amount %q", s)
	}

	if negative {
		value.Neg(value)
	}
	return value, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
