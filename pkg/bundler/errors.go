package bundler

import "fmt"

// TransformError reports a failure to transform a source file, typically a
// syntax error.
type TransformError struct {
	Description string
	Filename    string
	LineNumber  int
}

func (e *TransformError) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Filename, e.LineNumber, e.Description)
	}
	return fmt.Sprintf("%s: %s", e.Filename, e.Description)
}

// NotFoundError reports a file that does not exist.
type NotFoundError struct {
	Description string
	Filename    string
	LineNumber  int
}

func (e *NotFoundError) Error() string {
	return e.Description
}

// UnableToResolveError reports a require specifier with no matching module.
type UnableToResolveError struct {
	Description string
	Filename    string
	LineNumber  int
}

func (e *UnableToResolveError) Error() string {
	return fmt.Sprintf("unable to resolve in %s: %s", e.Filename, e.Description)
}
