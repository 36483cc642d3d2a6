package nlu

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

const serviceName = "bedrock"

// RetryPolicy bounds the retries of a single external call.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Guardrail identifies a Bedrock guardrail. An empty ID disables it.
type Guardrail struct {
	ID      string
	Version string
}

func (g Guardrail) enabled() bool { return g.ID != "" }

// caller throttles and retries calls to Bedrock.
type caller struct {
	limiter *rate.Limiter
	policy  RetryPolicy
	logger  *logger.Logger
}

func (c caller) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.Warn("Bedrock: retryable failure",
			"op", op,
			"attempt", attempt,
			"error", err.Error())
		return err
	}, backoff.WithContext(c.backOff(), ctx))
	if err != nil {
		return &model.ExternalError{Service: serviceName, Op: op, Err: err}
	}
	return nil
}

func (c caller) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.policy.InitialDelay > 0 {
		b.InitialInterval = c.policy.InitialDelay
	}
	if c.policy.MaxDelay > 0 {
		b.MaxInterval = c.policy.MaxDelay
	}
	b.MaxElapsedTime = 0

	retries := c.policy.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(b, uint64(retries))
}

// retryable reports whether err is throttling or a server-side failure.
// Client errors are returned to the caller immediately.
func retryable(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException", "ServiceUnavailableException",
			"InternalServerException", "ModelNotReadyException", "ModelTimeoutException":
			return true
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}

	return false
}
