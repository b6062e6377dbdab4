package domain

import "errors"

// Market errors. This is the closed set of failures the engine reports;
// every rejected operation returns exactly one of these.
var (
	ErrMarketNotFound        = errors.New("market not found")
	ErrMarketClosed          = errors.New("market closed")
	ErrMarketResolved        = errors.New("market resolved")
	ErrInsufficientDeposit   = errors.New("insufficient deposit")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrAlreadyClaimed        = errors.New("already claimed")
	ErrNoWinningTokens       = errors.New("no winning tokens")
	ErrSlippageExceeded      = errors.New("slippage exceeded")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrMarketNotFound, "MarketNotFound"},
	{ErrMarketClosed, "MarketClosed"},
	{ErrMarketResolved, "MarketResolved"},
	{ErrInsufficientDeposit, "InsufficientDeposit"},
	{ErrInsufficientLiquidity, "InsufficientLiquidity"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrAlreadyClaimed, "AlreadyClaimed"},
	{ErrNoWinningTokens, "NoWinningTokens"},
	{ErrSlippageExceeded, "SlippageExceeded"},
}

// Code returns the stable wire name of a market error, or "Internal" for
// anything outside the closed set.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}

// IsMarketError reports whether err belongs to the closed set.
func IsMarketError(err error) bool {
	return Code(err) != "Internal"
}
