package pipeline

import (
	"errors"

	"github.com/roach88/driftless/internal/deploy"
	"github.com/roach88/driftless/internal/logsub"
	"github.com/roach88/driftless/internal/provider/awsprov"
	"github.com/roach88/driftless/internal/provider/s3store"
)

// ErrorCode returns the stable code of err: the code of a deploy or log
// subscription error, otherwise the provider's own error code. It returns
// "" for any other error.
func ErrorCode(err error) string {
	var de *deploy.Error
	if errors.As(err, &de) {
		return de.Code
	}
	var le *logsub.Error
	if errors.As(err, &le) {
		return le.Code
	}
	if code := awsprov.ErrorCode(err); code != "" {
		return code
	}
	return s3store.ErrorCode(err)
}
