package model

import "errors"

var (
	// ErrUnknownSymbol is returned for any symbol outside the universe.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrEmpty is returned when a series has no samples yet.
	ErrEmpty = errors.New("series is empty")

	// ErrOutOfOrder is returned when a sample is older than the series tail.
	ErrOutOfOrder = errors.New("sample older than series tail")

	// ErrMalformedMessage marks an inbound message that could not be understood.
	ErrMalformedMessage = errors.New("malformed message")
)
