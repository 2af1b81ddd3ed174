// Package kernel contains the common error representation shared by every
// kernel package.
package kernel

// Error describes a kernel error. All kernel errors are defined as package
// level variables that are pointers to the Error structure so that every
// kernel-facing API returns a single, uniform error type instead of mixing
// ad-hoc error values.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Module + ": " + e.Message
}
