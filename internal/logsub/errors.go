package logsub

import (
	"errors"
	"fmt"
)

// CodeFilterLimitExceeded is reported when a log group would need more
// subscription filters than the provider allows.
const CodeFilterLimitExceeded = "log-group-subscription-filter-limit-exceeded"

// Error is a reconciliation failure with a stable code.
type Error struct {
	Code         string
	Message      string
	LogGroupName string
	Err          error
}

func (e *Error) Error() string {
	if e.LogGroupName != "" {
		return fmt.Sprintf("%s: %s (log group %s)", e.Code, e.Message, e.LogGroupName)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsLimitExceeded reports whether err is a filter limit error.
func IsLimitExceeded(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == CodeFilterLimitExceeded
	}
	return false
}

func limitExceeded(logGroup string, desired, foreign int) error {
	msg := fmt.Sprintf(
		"%d desired and %d foreign subscription filters exceed the limit of %d; remove filters created outside this stack or use fewer cloudwatchLog events for this log group",
		desired, foreign, MaxFiltersPerLogGroup)
	return &Error{
		Code:         CodeFilterLimitExceeded,
		Message:      msg,
		LogGroupName: logGroup,
	}
}
