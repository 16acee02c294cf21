package wildberries

import "errors"

// Failure classes of one search call. Handlers match with errors.Is and map each
// class to an HTTP status.
var (
	// ErrRemoteRequest: the upstream search endpoint was unreachable or answered
	// with a non-2xx status.
	ErrRemoteRequest = errors.New("wildberries: upstream request failed")

	// ErrMalformedResponse: the body was not valid JSON or did not contain
	// data.products as an array.
	ErrMalformedResponse = errors.New("wildberries: malformed upstream response")

	// ErrInvalidItem: a product item lacked a required field (id, name, priceU).
	// One bad item fails the whole batch.
	ErrInvalidItem = errors.New("wildberries: invalid product item")
)
