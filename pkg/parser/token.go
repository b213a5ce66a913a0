// Package parser resolves user-supplied token references into full token
// descriptors.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"giveflow/pkg/types"
)

// Pattern: <symbol-or-address>[@<chain-id>]
// Matches: "USDC@137", "0x3c49...3359@137", "WMATIC"
var refPattern = regexp.MustCompile(`^([A-Za-z0-9]+|0x[0-9a-fA-F]{40})(?:@(\d+))?$`)

var addressOnly = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// knownTokens maps SYMBOL@chainID to well-known token descriptors so the
// CLI accepts symbols for common tokens without requiring the address
var knownTokens = map[string]types.Token{
	"USDC@1":     {ChainID: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6},
	"USDC@10":    {ChainID: 10, Address: "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85", Symbol: "USDC", Decimals: 6},
	"USDC@137":   {ChainID: 137, Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Symbol: "USDC", Decimals: 6},
	"USDC@8453":  {ChainID: 8453, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Symbol: "USDC", Decimals: 6},
	"USDC@42161": {ChainID: 42161, Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Symbol: "USDC", Decimals: 6},
	"WETH@1":     {ChainID: 1, Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Symbol: "WETH", Decimals: 18},
	"WETH@8453":  {ChainID: 8453, Address: "0x4200000000000000000000000000000000000006", Symbol: "WETH", Decimals: 18},
	"WMATIC@137": {ChainID: 137, Address: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", Symbol: "WMATIC", Decimals: 18},
	"ETH@1":      {ChainID: 1, Address: "0x0000000000000000000000000000000000000000", Symbol: "ETH", Decimals: 18},
	"ETH@8453":   {ChainID: 8453, Address: "0x0000000000000000000000000000000000000000", Symbol: "ETH", Decimals: 18},
	"POL@137":    {ChainID: 137, Address: "0x0000000000000000000000000000000000000000", Symbol: "POL", Decimals: 18},
}

// ParseTokenRef parses a token reference like "USDC@137" or
// "0x3c49...@137" into a token descriptor. Symbols are resolved from the
// built-in registry; raw addresses need decimals supplied separately, with
// defaultChainID used when the @chain suffix is absent.
func ParseTokenRef(ref string, defaultChainID int64) (types.Token, error) {
	ref = strings.TrimSpace(ref)

	matches := refPattern.FindStringSubmatch(ref)
	if matches == nil {
		return types.Token{}, fmt.Errorf("invalid token reference '%s'. Expected: '<symbol>@<chain-id>' (e.g. 'USDC@137') or a 0x address", ref)
	}

	chainID := defaultChainID
	if matches[2] != "" {
		parsed, err := strconv.ParseInt(matches[2], 10, 64)
		if err != nil {
			return types.Token{}, fmt.Errorf("invalid chain id in '%s': %w", ref, err)
		}
		chainID = parsed
	}
	if chainID == 0 {
		return types.Token{}, fmt.Errorf("token reference '%s' needs a chain id, e.g. '%s@137'", ref, matches[1])
	}

	if addressOnly.MatchString(matches[1]) {
		return types.Token{ChainID: chainID, Address: matches[1]}, nil
	}

	symbol := NormalizeTokenSymbol(matches[1])
	token, exists := knownTokens[fmt.Sprintf("%s@%d", symbol, chainID)]
	if !exists {
		return types.Token{}, fmt.Errorf("unknown token '%s' on chain %d. Pass the token address instead", symbol, chainID)
	}

	return token, nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	// MATIC became POL in 2024, treat them as the same token
	if symbol == "MATIC" {
		return "POL"
	}

	return symbol
}
