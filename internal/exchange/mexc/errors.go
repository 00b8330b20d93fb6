package mexc

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials is returned by signed calls when no API
	// key/secret is configured. Public calls are unaffected.
	ErrMissingCredentials = errors.New("missing API key/secret")
	// ErrInvalidInterval marks a candle interval the exchange rejects.
	ErrInvalidInterval = errors.New("invalid candle interval")
	// ErrEmptyKlines is returned when the exchange answers with no rows.
	ErrEmptyKlines = errors.New("empty klines response")
)

// ExchangeError is a non-2xx HTTP response from the exchange.
type ExchangeError struct {
	Status int
	Body   string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange HTTP %d: %s", e.Status, e.Body)
}

// IsExchangeError reports whether err wraps an ExchangeError.
func IsExchangeError(err error) bool {
	var ee *ExchangeError
	return errors.As(err, &ee)
}
