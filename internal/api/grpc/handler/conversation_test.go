package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/telcoassist-server/internal/mocks"
	"github.com/dtroode/telcoassist-server/internal/model"
	"github.com/dtroode/telcoassist-server/internal/testutil"
)

func mustStruct(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestConversation_SendMessage(t *testing.T) {
	t.Parallel()

	svc := mocks.NewConversationService(t)
	h := NewConversation(svc, testutil.MakeNoopLogger())

	want := model.Request{
		SessionID:   "s-1",
		PhoneNumber: "+60123456789",
		Message:     "set up voicemail",
		Channel:     model.ChannelMobile,
		TurnNumber:  2,
	}
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.On("SendMessage", mock.Anything, want).Return(model.Response{
		SessionID:      "s-1",
		Message:        "Voicemail is now active.",
		Intent:         "voicemail_setup",
		Confidence:     0.95,
		Grounded:       true,
		Citations:      []string{"CRM_API"},
		Language:       model.LanguageEN,
		Timestamp:      ts,
		AwaitingAction: model.AwaitingNone,
	}, nil)

	out, err := h.SendMessage(context.Background(), mustStruct(t, map[string]interface{}{
		"session_id":   "s-1",
		"phone_number": "+60123456789",
		"message":      "set up voicemail",
		"channel":      "mobile",
		"turn_number":  2,
	}))
	require.NoError(t, err)

	got := out.AsMap()
	assert.Equal(t, "s-1", got["session_id"])
	assert.Equal(t, "Voicemail is now active.", got["message"])
	assert.Equal(t, "voicemail_setup", got["intent"])
	assert.Equal(t, 0.95, got["confidence"])
	assert.Equal(t, true, got["grounded"])
	assert.Equal(t, []interface{}{"CRM_API"}, got["citations"])
	assert.Equal(t, "EN", got["language"])
	assert.Equal(t, "2026-03-01T10:00:00Z", got["timestamp"])
	assert.Equal(t, string(model.AwaitingNone), got["awaiting_action"])
	svc.AssertExpectations(t)
}

func TestConversation_SendMessage_DecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields map[string]interface{}
	}{
		{name: "message not a string", fields: map[string]interface{}{"message": 12}},
		{name: "phone number is a list", fields: map[string]interface{}{"phone_number": []interface{}{"+1"}}},
		{name: "fractional turn number", fields: map[string]interface{}{"turn_number": 1.5}},
		{name: "turn number as string", fields: map[string]interface{}{"turn_number": "3"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := mocks.NewConversationService(t)
			h := NewConversation(svc, testutil.MakeNoopLogger())

			_, err := h.SendMessage(context.Background(), mustStruct(t, tt.fields))
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, codes.InvalidArgument, st.Code())
			svc.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
		})
	}
}

func TestConversation_SendMessage_NullFieldsAreEmpty(t *testing.T) {
	t.Parallel()

	svc := mocks.NewConversationService(t)
	h := NewConversation(svc, testutil.MakeNoopLogger())

	svc.On("SendMessage", mock.Anything, model.Request{PhoneNumber: "+60123456789", Message: "hi"}).
		Return(model.Response{}, model.NewValidationError("session_id", "must not be empty"))

	_, err := h.SendMessage(context.Background(), mustStruct(t, map[string]interface{}{
		"session_id":   nil,
		"phone_number": "+60123456789",
		"message":      "hi",
		"turn_number":  nil,
	}))
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	svc.AssertExpectations(t)
}

func TestConversation_SendMessage_Unauthenticated(t *testing.T) {
	t.Parallel()

	svc := mocks.NewConversationService(t)
	h := NewConversation(svc, testutil.MakeNoopLogger())
	svc.On("SendMessage", mock.Anything, mock.Anything).Return(model.Response{}, model.ErrUnauthenticated)

	_, err := h.SendMessage(context.Background(), mustStruct(t, map[string]interface{}{
		"phone_number": "+60123456789",
		"message":      "hi",
		"channel":      "mobile",
	}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
