package async

import "fmt"

// PanicError reports a handler that panicked instead of returning.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("handler panic: %v", e.Value) }
