package earnings

import (
	"errors"
	"fmt"
)

// LimitAlert is shown to the user when the shared daily quota is spent.
const LimitAlert = "The 25 request per day limit has been exceeded. Either try again tomorrow or enter your own AlphaVantage API key at the bottom of the page to continue. Learn more about usage limits in the README found in the source code."

var (
	// ErrRateLimited means the payload carried the quota sentinel, whatever
	// the HTTP status was.
	ErrRateLimited = errors.New(LimitAlert)

	// ErrUnexpectedShape means the body was not the documented EARNINGS
	// document, or (in strict mode) a numeric field did not parse.
	ErrUnexpectedShape = errors.New("unexpected earnings payload")
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP Response invalid. Status %d", e.Code)
}

// UpstreamError carries a message the API reported in-band, such as an
// unknown symbol.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return "upstream: " + e.Message
}
