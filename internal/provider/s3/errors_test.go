package s3

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"

	"github.com/bucketboss/bucketboss/internal/provider"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want provider.Kind
	}{
		{"nil", nil, provider.KindUnknown},
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, provider.KindNotFound},
		{"no such bucket", &smithy.GenericAPIError{Code: "NoSuchBucket"}, provider.KindNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, provider.KindAccessDenied},
		{"bad credentials", &smithy.GenericAPIError{Code: "InvalidAccessKeyId"}, provider.KindAccessDenied},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, provider.KindTransient},
		{"internal error", &smithy.GenericAPIError{Code: "InternalError"}, provider.KindTransient},
		{"request timeout", &smithy.GenericAPIError{Code: "RequestTimeout"}, provider.KindTimeout},
		{"deadline exceeded", fmt.Errorf("op failed: %w", context.DeadlineExceeded), provider.KindTimeout},
		{"mystery", errors.New("something else"), provider.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("list", tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("classify(nil) = %v, want nil", got)
				}
				return
			}
			if kind := provider.KindOf(got); kind != tt.want {
				t.Errorf("kind = %v, want %v", kind, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error does not wrap the original")
			}
		})
	}
}

func TestClassify_RetryableKinds(t *testing.T) {
	throttled := classify("list", &smithy.GenericAPIError{Code: "SlowDown"})
	if !provider.Retryable(throttled) {
		t.Error("throttling should be retryable")
	}
	denied := classify("list", &smithy.GenericAPIError{Code: "AccessDenied"})
	if provider.Retryable(denied) {
		t.Error("access denied should not be retryable")
	}
}
