package portfolio

import "errors"

// User-correctable trade rejections. A rejected operation leaves cash,
// holdings and the transaction log untouched.
var (
	ErrInvalidInput      = errors.New("Please enter a valid stock symbol and positive integer quantity")
	ErrInsufficientFunds = errors.New("Insufficient funds")
	ErrNoHolding         = errors.New("You don't own any of these stocks")
	ErrQuoteUnavailable  = errors.New("Quote feed unavailable")
)
