// Package units converts between human readable ether amounts and wei.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	EtherDecimals = 18
	GweiDecimals  = 9
)

var weiPerEther = decimal.New(1, EtherDecimals)

// ParseEther parses a decimal string like "0.01" into wei.
func ParseEther(amount string) (*big.Int, error) {
	return parseUnits(amount, EtherDecimals)
}

// ParseGwei parses a decimal string into wei, interpreting it in gwei.
func ParseGwei(amount string) (*big.Int, error) {
	return parseUnits(amount, GweiDecimals)
}

// FormatEther renders a wei amount as an ether decimal string.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, 0).Div(weiPerEther).String()
}

func parseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: must not be negative", amount)
	}

	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf(
			"invalid amount %q: more than %d decimal places", amount, decimals,
		)
	}
	return scaled.BigInt(), nil
}
