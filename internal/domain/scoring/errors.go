package scoring

import "errors"

// Sentinel kinds for boundary validation. The calculator itself is a
// total function over well-formed input; everything fallible is caught
// here before the data enters it.
var (
	ErrInvalidInput = errors.New("invalid raw score")
	ErrConsistency  = errors.New("score belongs to a different round")
)
