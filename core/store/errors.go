package store

import "errors"

// Sentinel errors matching the "missing parent" / "invalid argument" /
// "allocation failure" taxonomy of spec.md §7. All update operations that
// refuse a request wrap one of these with fmt.Errorf so callers can still
// use errors.Is against the exact kind while getting a human-readable
// message.
var (
	// ErrMissingParent is returned when an update names a host, service or
	// metric that does not exist; the parent is never auto-created.
	ErrMissingParent = errors.New("missing parent object")

	// ErrInvalidArgument is returned for a null/empty name, an unknown
	// object type, or any other structurally invalid request.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyStore is returned by Iterate when the store has no hosts, to
	// distinguish "nothing to visit" from a zero-visit successful walk of
	// a non-empty store filtered down to nothing (spec.md §7 "Empty
	// iteration").
	ErrEmptyStore = errors.New("store is empty")
)
