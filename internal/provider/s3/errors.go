package s3

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"

	"github.com/bucketboss/bucketboss/internal/provider"
)

// classify wraps an SDK error as a typed provider failure so the shell
// can distinguish a permission problem from a retryable one.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	kind := provider.KindUnknown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = provider.KindTimeout
	}

	var ae smithy.APIError
	if kind == provider.KindUnknown && errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound", "404":
			kind = provider.KindNotFound
		case "AccessDenied", "Forbidden", "403", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AccountProblem":
			kind = provider.KindAccessDenied
		case "RequestTimeout", "RequestTimeTooSkewed":
			kind = provider.KindTimeout
		case "SlowDown", "Throttling", "ThrottlingException", "ServiceUnavailable", "InternalError", "503":
			kind = provider.KindTransient
		}
	}

	return provider.NewError(op, kind, err)
}
