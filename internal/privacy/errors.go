package privacy

import "errors"

var (
	// ErrInputRejected marks unreadable, corrupted, encrypted or otherwise
	// non-document input. It is fatal for the request and never retried.
	ErrInputRejected = errors.New("input rejected")

	// ErrExternalCall marks a failure of the AI provider or of extraction.
	// No engine state is mutated when it is returned.
	ErrExternalCall = errors.New("external call failed")

	// ErrRecordNotFound is returned by record stores for unknown IDs
	ErrRecordNotFound = errors.New("processing record not found")

	// ErrInvalidRecord marks a record whose mapping tables are inconsistent
	ErrInvalidRecord = errors.New("invalid processing record")
)
