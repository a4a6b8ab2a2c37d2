package schema

import (
	"errors"
	"fmt"
)

// ErrInvalidSchema indicates a malformed schema declaration.
var ErrInvalidSchema = errors.New("invalid schema")

// StepError reports a failed migration step. The installed version must
// not be bumped when a StepError is returned.
type StepError struct {
	Schema    string
	Step      string
	Threshold int
	SiteID    string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("schema %s: step %q (v<%d) for site %s: %v",
		e.Schema, e.Step, e.Threshold, e.SiteID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
