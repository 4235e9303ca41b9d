package hmr

import (
	"errors"

	"github.com/withgalaxy/devbridge/pkg/bundler"
)

type ErrorKind string

const (
	ErrorKindTransform       ErrorKind = "TransformError"
	ErrorKindNotFound        ErrorKind = "NotFoundError"
	ErrorKindUnableToResolve ErrorKind = "UnableToResolveError"
	ErrorKindInternal        ErrorKind = "InternalError"
)

const internalErrorDescription = "Unexpected error: see server logs for details"

// ErrorBodyFor maps a collaborator failure onto the client-facing taxonomy.
// Unrecognized errors become InternalError with a generic description; the
// second result reports that case so the caller can log the detail.
func ErrorBodyFor(err error) (ErrorBody, bool) {
	var (
		transform *bundler.TransformError
		notFound  *bundler.NotFoundError
		resolve   *bundler.UnableToResolveError
	)
	switch {
	case errors.As(err, &transform):
		return ErrorBody{
			Type:        ErrorKindTransform,
			Description: transform.Description,
			Filename:    transform.Filename,
			LineNumber:  transform.LineNumber,
		}, false
	case errors.As(err, &notFound):
		return ErrorBody{
			Type:        ErrorKindNotFound,
			Description: notFound.Description,
			Filename:    notFound.Filename,
			LineNumber:  notFound.LineNumber,
		}, false
	case errors.As(err, &resolve):
		return ErrorBody{
			Type:        ErrorKindUnableToResolve,
			Description: resolve.Description,
			Filename:    resolve.Filename,
			LineNumber:  resolve.LineNumber,
		}, false
	default:
		return ErrorBody{
			Type:        ErrorKindInternal,
			Description: internalErrorDescription,
		}, true
	}
}
