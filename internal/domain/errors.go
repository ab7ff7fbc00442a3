package domain

import "errors"

// Contract-violation errors raised by the reducers. All are configuration
// errors detected up front; none is retried or downgraded. A zero total
// weight is not an error: it propagates as NaN in the output.
var (
	// ErrMissingDim indicates a required dimension name is absent from the
	// field or the weights.
	ErrMissingDim = errors.New("dimension not present")

	// ErrBasinsWithoutWeights indicates basin masks were supplied without a
	// weighting field.
	ErrBasinsWithoutWeights = errors.New("basin masks can only be applied if weights are provided")

	// ErrWeightsType indicates the weights argument is not a labeled field.
	ErrWeightsType = errors.New("weights must be a labeled field")

	// ErrWeightsShape indicates basin mode was requested with weights that
	// are not a 3-D (layer, horizontal, horizontal) array.
	ErrWeightsShape = errors.New("basin reductions require 3-D weights")

	// ErrMalformedBasinSet indicates the basin mask set lacks its region
	// coordinate or holds values other than 0 and 1.
	ErrMalformedBasinSet = errors.New("malformed basin mask set")
)
