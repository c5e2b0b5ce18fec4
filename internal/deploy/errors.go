package deploy

import (
	"errors"
	"fmt"
)

// CodeBucketNotFound is reported when the deployment bucket of an existing
// stack has disappeared.
const CodeBucketNotFound = "deployment-bucket-not-found"

// ErrBucketNotFound is wrapped by provider adapters when the bucket is missing.
var ErrBucketNotFound = errors.New("bucket not found")

// ErrFunctionNotFound is wrapped by FunctionReader for functions that do not
// exist yet.
var ErrFunctionNotFound = errors.New("function not found")

// Error is an evaluation failure with a stable code.
type Error struct {
	Code    string
	Message string
	Bucket  string
	Stack   string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsBucketNotFound reports whether err is the translated missing bucket error.
func IsBucketNotFound(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == CodeBucketNotFound
	}
	return false
}

// translate rewrites a missing bucket into an actionable error. Every other
// provider error is returned unchanged so callers can still inspect it.
func translate(err error, remote RemoteSource) error {
	if err == nil || !errors.Is(err, ErrBucketNotFound) {
		return err
	}
	msg := fmt.Sprintf(
		"deployment bucket %q of stack %q does not exist; recreate the bucket or remove the stack and deploy again",
		remote.Bucket, remote.Stack)
	return &Error{
		Code:    CodeBucketNotFound,
		Message: msg,
		Bucket:  remote.Bucket,
		Stack:   remote.Stack,
		Err:     err,
	}
}

func isFunctionNotFound(err error) bool {
	return errors.Is(err, ErrFunctionNotFound)
}
