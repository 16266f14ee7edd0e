// Package apperr holds error types shared by the application services.
package apperr

import "fmt"

// TransientIOError reports a persistence failure before an action was
// durably recorded. The caller may retry the whole action.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error {
	return e.Err
}
