package quote

import (
	"fmt"
	"strings"
)

// ErrorKind buckets a failed fetch into one of the stable categories
// the dashboard and the cache layer key on.
type ErrorKind string

const (
	ErrInvalidTicker        ErrorKind = "invalid_ticker"
	ErrNoPriceData          ErrorKind = "no_price_data"
	ErrRateLimited          ErrorKind = "rate_limited"
	ErrTickerNotFound       ErrorKind = "ticker_not_found"
	ErrConnection           ErrorKind = "connection_error"
	ErrUnknownFetch         ErrorKind = "unknown_fetch_error"
	ErrValuationUnavailable ErrorKind = "valuation_unavailable"
)

// unknownMessageLimit bounds the raw text carried into an unknown
// fetch error so upstream noise cannot flood logs or API responses.
const unknownMessageLimit = 60

// FetchError is a classified fetch failure. Message is safe to show
// to the end user.
type FetchError struct {
	Kind    ErrorKind
	Ticker  string
	Message string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Ticker, e.Message, e.Kind)
}

// Retryable reports whether a later attempt could plausibly succeed.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case ErrRateLimited, ErrConnection, ErrUnknownFetch:
		return true
	}
	return false
}

func newFetchError(kind ErrorKind, ticker, msg string) *FetchError {
	return &FetchError{Kind: kind, Ticker: ticker, Message: msg}
}

// Classify maps a raw transport or parse error onto the error
// taxonomy by case-insensitive substring matching. Rate limiting is
// checked first since Yahoo's 429 bodies also mention other keywords.
func Classify(ticker string, err error) *FetchError {
	if fe, ok := err.(*FetchError); ok {
		return fe
	}
	text := strings.ToLower(err.Error())
	switch {
	case containsAny(text, "429", "rate", "too many", "limited"):
		return newFetchError(ErrRateLimited, ticker,
			"Yahoo Finance is rate limiting requests, try again in a minute")
	case containsAny(text, "no data", "not found", "404"):
		return newFetchError(ErrTickerNotFound, ticker,
			fmt.Sprintf("no data found for %s, the ticker may be delisted", ticker))
	case containsAny(text, "connection", "timeout"):
		return newFetchError(ErrConnection, ticker,
			"could not reach Yahoo Finance, check the network and retry")
	}
	msg := err.Error()
	if len(msg) > unknownMessageLimit {
		msg = msg[:unknownMessageLimit]
	}
	return newFetchError(ErrUnknownFetch, ticker, msg)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
