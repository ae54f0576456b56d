package domain

import "errors"

var (
	// ErrEmptyProfile is returned when no active station survives filtering or
	// the resulting profile matrix would have no rows.
	ErrEmptyProfile = errors.New("empty profile")

	// ErrInvalidClusterCount is returned when the requested cluster count is not
	// positive or exceeds the number of profiled stations.
	ErrInvalidClusterCount = errors.New("invalid cluster count")

	// ErrMalformedInput is returned for missing columns, empty station ids,
	// negative or non-finite bike counts and unparseable timestamps.
	ErrMalformedInput = errors.New("malformed input")
)
