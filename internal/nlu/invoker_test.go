package nlu

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/dtroode/telcoassist-server/internal/model"
	"github.com/dtroode/telcoassist-server/internal/testutil"
)

var throttled = &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Too many requests"}

func TestInvoker_Complete(t *testing.T) {
	api := &fakeConverse{replies: []reply{{text: "  hello  "}}}
	inv := NewInvoker(api, "model-1", Guardrail{ID: "gr-1", Version: "2"}, rate.NewLimiter(rate.Inf, 1), fastRetry, testutil.MakeNoopLogger())

	got, err := inv.Complete(context.Background(), Prompt{System: "sys", User: "hi", MaxTokens: 500, Temperature: 0.1})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	require.Equal(t, 1, api.calls())
	in := api.inputs[0]
	assert.Equal(t, "model-1", *in.ModelId)
	assert.Equal(t, "sys", api.systemText(0))
	assert.Equal(t, "hi", api.userText(0))
	require.NotNil(t, in.InferenceConfig)
	assert.Equal(t, int32(500), *in.InferenceConfig.MaxTokens)
	assert.InDelta(t, 0.1, *in.InferenceConfig.Temperature, 1e-6)
	require.NotNil(t, in.GuardrailConfig)
	assert.Equal(t, "gr-1", *in.GuardrailConfig.GuardrailIdentifier)
	assert.Equal(t, "2", *in.GuardrailConfig.GuardrailVersion)
}

func TestInvoker_CompleteWithoutGuardrail(t *testing.T) {
	api := &fakeConverse{replies: []reply{{text: "ok"}}}
	inv := NewInvoker(api, "model-1", Guardrail{}, nil, fastRetry, testutil.MakeNoopLogger())

	_, err := inv.Complete(context.Background(), Prompt{User: "hi"})
	require.NoError(t, err)
	assert.Nil(t, api.inputs[0].GuardrailConfig)
	assert.Nil(t, api.inputs[0].InferenceConfig)
	assert.Empty(t, api.inputs[0].System)
}

func TestInvoker_CompleteRetries(t *testing.T) {
	tests := []struct {
		name      string
		replies   []reply
		wantCalls int
		wantText  string
		wantErr   bool
	}{
		{
			name:      "throttled then success",
			replies:   []reply{{err: throttled}, {text: "ok"}},
			wantCalls: 2,
			wantText:  "ok",
		},
		{
			name:      "client error is not retried",
			replies:   []reply{{err: &smithy.GenericAPIError{Code: "ValidationException"}}},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "retries exhausted",
			replies:   []reply{{err: throttled}},
			wantCalls: 3,
			wantErr:   true,
		},
		{
			name:      "empty reply",
			replies:   []reply{{text: "   "}},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeConverse{replies: tt.replies}
			inv := NewInvoker(api, "m", Guardrail{}, nil, fastRetry, testutil.MakeNoopLogger())

			got, err := inv.Complete(context.Background(), Prompt{User: "hi"})

			assert.Equal(t, tt.wantCalls, api.calls())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, got)
		})
	}
}

func TestInvoker_CompleteWrapsExternalError(t *testing.T) {
	api := &fakeConverse{replies: []reply{{err: throttled}}}
	inv := NewInvoker(api, "m", Guardrail{}, nil, RetryPolicy{MaxAttempts: 1}, testutil.MakeNoopLogger())

	_, err := inv.Complete(context.Background(), Prompt{User: "hi"})

	var extErr *model.ExternalError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "bedrock", extErr.Service)
	assert.Equal(t, "converse", extErr.Op)
	assert.ErrorIs(t, err, throttled)
}

func TestInvoker_CompleteStopsOnCancelledContext(t *testing.T) {
	api := &fakeConverse{replies: []reply{{text: "ok"}}}
	inv := NewInvoker(api, "m", Guardrail{}, rate.NewLimiter(rate.Limit(1), 1), fastRetry, testutil.MakeNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := inv.Complete(ctx, Prompt{User: "hi"})
	require.Error(t, err)
	assert.Equal(t, 0, api.calls())
}

func TestRetryable(t *testing.T) {
	status := func(code int) error {
		return &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: code}},
			Err:      errors.New("http failure"),
		}
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"throttling", throttled, true},
		{"service unavailable", &smithy.GenericAPIError{Code: "ServiceUnavailableException"}, true},
		{"validation", &smithy.GenericAPIError{Code: "ValidationException"}, false},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDeniedException"}, false},
		{"http 429", status(http.StatusTooManyRequests), true},
		{"http 503", status(http.StatusServiceUnavailable), true},
		{"http 400", status(http.StatusBadRequest), false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}
