package restaurantcache

import (
	"errors"
	"fmt"
)

// ErrUnknownMutation is returned when a queued entry has a kind the engine cannot replay.
var ErrUnknownMutation = errors.New("restaurantcache: unknown mutation kind")

// NotFoundError reports a lookup by id that matched no record.
type NotFoundError struct {
	Kind string
	ID   int64
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("restaurantcache: %s %d not found", e.Kind, e.ID)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
