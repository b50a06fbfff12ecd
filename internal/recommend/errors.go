package recommend

import (
	"context"
	"errors"
	"fmt"
)

const (
	StageEmbed  = "embed"
	StageSearch = "search"
)

var (
	ErrNotFound   = errors.New("job not found")
	ErrNoCatalog  = errors.New("no catalog loaded")
	ErrEmptyQuery = errors.New("query needs a profile, a document or keywords")
	ErrStale      = errors.New("catalog changed since the results were ranked")
)

// NotFoundError names the requested id and the valid range.
type NotFoundError struct {
	ID  int
	Len int
}

func (e *NotFoundError) Error() string {
	if e.Len == 0 {
		return fmt.Sprintf("job %d not found: catalog is empty", e.ID)
	}
	return fmt.Sprintf("job %d not found: valid ids are 0..%d", e.ID, e.Len-1)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StaleError reports a lookup pinned to a catalog version that is no longer active.
type StaleError struct {
	Want   string
	Active string
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("catalog %s is no longer active (now %s)", e.Want, e.Active)
}

func (e *StaleError) Is(target error) bool {
	return target == ErrStale
}

// StageError tags an infrastructure failure with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a stage that ran out of time.
func IsTimeout(err error) bool {
	var se *StageError
	if !errors.As(err, &se) {
		return false
	}
	return errors.Is(se.Err, context.DeadlineExceeded)
}
