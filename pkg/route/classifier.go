// Package route decides which execution path a donation takes.
package route

import (
	"strings"

	"giveflow/pkg/types"
)

// Native token sentinel addresses. Providers disagree on how to spell "the
// chain's native coin"; the zero address and the all-f address are treated as
// the same asset.
const (
	NativeZeroAddress = "0x0000000000000000000000000000000000000000"
	NativeFFAddress   = "0xffffffffffffffffffffffffffffffffffffffff"
)

// Classify determines the donation path for a source token against the fixed
// settlement token. Total function: no I/O, no failure mode.
func Classify(source types.Token, settlementChainID int64, settlementToken string) types.DonationPath {
	if source.ChainID != settlementChainID {
		return types.PathCrossChain
	}

	src := normalizeAddress(source.Address)
	dst := normalizeAddress(settlementToken)

	if src == dst {
		return types.PathDirect
	}
	if isNativeSentinel(src) && isNativeSentinel(dst) {
		return types.PathDirect
	}

	return types.PathSameChainSwap
}

// normalizeAddress lowercases an address and ensures the 0x prefix
func normalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr != "" && !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	return addr
}

func isNativeSentinel(addr string) bool {
	return addr == NativeZeroAddress || addr == NativeFFAddress
}
