// Package contract handles perpetual contract symbol parsing and validation.
package contract

import (
	"errors"
	"fmt"
	"regexp"
)

// Supported quote currencies.
const (
	QuoteUSD  = "USD"
	QuoteUSDT = "USDT"
	QuoteUSDC = "USDC"
)

var validQuotes = map[string]bool{
	QuoteUSD:  true,
	QuoteUSDT: true,
	QuoteUSDC: true,
}

// symbolRegex matches: {BASE}-{QUOTE}
// Example: BTC-USD
var symbolRegex = regexp.MustCompile(`^([A-Z0-9]{2,10})-([A-Z]{3,5})$`)

var (
	ErrInvalidSymbol = errors.New("contract: invalid symbol format")
	ErrInvalidQuote  = errors.New("contract: unsupported quote currency")
)

// Contract is a parsed perpetual contract symbol.
type Contract struct {
	Symbol string `json:"symbol"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`
}

// ParseSymbol parses and validates a contract symbol.
// Format: {BASE}-{QUOTE}
func ParseSymbol(symbol string) (*Contract, error) {
	matches := symbolRegex.FindStringSubmatch(symbol)
	if matches == nil {
		return nil, fmt.Errorf("%w: %q (expected {BASE}-{QUOTE}, e.g. BTC-USD)", ErrInvalidSymbol, symbol)
	}

	base, quote := matches[1], matches[2]
	if !validQuotes[quote] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuote, quote)
	}

	return &Contract{Symbol: symbol, Base: base, Quote: quote}, nil
}

// Validate reports whether symbol is a well-formed contract symbol.
func Validate(symbol string) error {
	_, err := ParseSymbol(symbol)
	return err
}
