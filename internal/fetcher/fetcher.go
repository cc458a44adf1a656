package fetcher

import (
	"context"
	"fmt"

	"goldchecker/internal/gold"
)

// RateSource retrieves a validated snapshot of live karat prices.
type RateSource interface {
	FetchLive(ctx context.Context) (gold.Snapshot, error)
}

// ErrorKind classifies why a fetch failed.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindMalformed ErrorKind = "malformed"
)

// FetchError is returned for every failed fetch.
type FetchError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
