package record

import "errors"

// ErrInvalidQuery marks caller errors detected before any source is contacted.
var ErrInvalidQuery = errors.New("invalid query")

// InvalidQueryError carries the reason a query was rejected.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return "invalid query: " + e.Reason
}

func (e *InvalidQueryError) Is(target error) bool {
	return target == ErrInvalidQuery
}
