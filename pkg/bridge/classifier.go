package bridge

import (
	"regexp"

	"giveflow/pkg/types"
)

// Provider error messages are free text, so classification is pattern
// sniffing. Patterns are checked in priority order and anything unmatched
// degrades to a generic kind instead of crashing the caller.
type messagePattern struct {
	kind     types.ErrorKind
	patterns []*regexp.Regexp
}

var messagePatterns = []messagePattern{
	{
		kind: types.ErrUnsupportedNetwork,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)unsupported\s+(origin|destination)?\s*chain`),
			regexp.MustCompile(`(?i)chain\s+(id\s+)?\d+\s+(is\s+)?not\s+supported`),
			regexp.MustCompile(`(?i)unsupported\s+network`),
			regexp.MustCompile(`(?i)invalid\s+chain`),
		},
	},
	{
		kind: types.ErrUnsupportedToken,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)unsupported\s+token`),
			regexp.MustCompile(`(?i)token\s+(is\s+)?not\s+supported`),
			regexp.MustCompile(`(?i)no\s+route\s+found\s+for\s+token`),
			regexp.MustCompile(`(?i)invalid\s+(input|output)\s+token`),
		},
	},
	{
		kind: types.ErrInsufficientLiquidity,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)insufficient\s+liquidity`),
			regexp.MustCompile(`(?i)not\s+enough\s+liquidity`),
			regexp.MustCompile(`(?i)amount\s+too\s+(high|large)`),
			regexp.MustCompile(`(?i)exceeds\s+.*\s*limits?`),
		},
	},
	{
		kind: types.ErrSlippageTooHigh,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)slippage`),
			regexp.MustCompile(`(?i)price\s+impact\s+too\s+high`),
		},
	},
}

// ClassifyMessage maps a provider error message to a typed error kind.
// Returns false when no pattern matches, leaving the decision to the
// status-code fallback.
func ClassifyMessage(message string) (types.ErrorKind, bool) {
	if message == "" {
		return "", false
	}
	for _, mp := range messagePatterns {
		for _, p := range mp.patterns {
			if p.MatchString(message) {
				return mp.kind, true
			}
		}
	}
	return "", false
}

// classifyStatus is the fallback when the message matched no known phrasing
func classifyStatus(status int) types.ErrorKind {
	switch {
	case status == 400:
		return types.ErrInvalidParams
	case status == 404:
		return types.ErrRouteNotFound
	case status >= 500:
		return types.ErrServerUnavailable
	default:
		return types.ErrNetworkError
	}
}

var (
	rejectionPattern = regexp.MustCompile(`(?i)(rejected|user\s+denied|user\s+cancell?ed)`)
	fundsPattern     = regexp.MustCompile(`(?i)(insufficient\s+funds|insufficient\s+balance|exceeds\s+balance)`)
)

// ClassifyWalletError maps a raw signer/wallet error into a typed kind.
// A raw unclassified error never leaks: the fallback is NetworkError.
func ClassifyWalletError(err error) types.ErrorKind {
	msg := err.Error()
	if rejectionPattern.MatchString(msg) {
		return types.ErrTransactionRejected
	}
	if kind, ok := ClassifyMessage(msg); ok {
		return kind
	}
	if fundsPattern.MatchString(msg) {
		return types.ErrInsufficientFunds
	}
	return types.ErrNetworkError
}
