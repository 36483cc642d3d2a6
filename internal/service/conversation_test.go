package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/dtroode/telcoassist-server/internal/mocks"
	"github.com/dtroode/telcoassist-server/internal/model"
	"github.com/dtroode/telcoassist-server/internal/testutil"
)

func newConversation(t *testing.T, customers ...model.Customer) (*Conversation, orchestratorFixture, *servermocks.ContextManager) {
	t.Helper()
	f := newOrchestratorFixture(t, customers...)
	ctxManager := servermocks.NewContextManager(t)
	c := NewConversation(f.sessions, f.orchestrator, f.customers, ctxManager, testutil.MakeNoopLogger())
	return c, f, ctxManager
}

func TestConversation_SendMessageValidation(t *testing.T) {
	tests := []struct {
		name      string
		req       model.Request
		wantField string
	}{
		{
			name:      "too short phone number",
			req:       model.Request{PhoneNumber: "+1 555", Message: "hello"},
			wantField: "phone_number",
		},
		{
			name:      "empty phone number",
			req:       model.Request{Message: "hello"},
			wantField: "phone_number",
		},
		{
			name:      "message only markup",
			req:       model.Request{PhoneNumber: "0123456789", Message: "<script>alert(1)</script><b></b>"},
			wantField: "message",
		},
		{
			name:      "unknown channel",
			req:       model.Request{PhoneNumber: "0123456789", Message: "hello", Channel: "sms"},
			wantField: "channel",
		},
		{
			name:      "negative turn number",
			req:       model.Request{PhoneNumber: "0123456789", Message: "hello", TurnNumber: -1},
			wantField: "turn_number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f, _ := newConversation(t)

			_, err := c.SendMessage(context.Background(), tt.req)

			var verr *model.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
			f.classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
		})
	}
}

func TestConversation_SendMessageNormalizesAndBeginsTurn(t *testing.T) {
	c, f, _ := newConversation(t, testCustomer(t))
	f.classifier.On("Classify", mock.Anything, "hello there").Return(classified(model.IntentGreeting, ""))
	f.generator.On("Generate", mock.Anything, "greeting", mock.Anything, model.LanguageEN).Return("Hi!")

	resp, err := c.SendMessage(context.Background(), model.Request{
		PhoneNumber: "012-345 6789",
		Message:     "  <b>hello there</b> ",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Hi!", resp.Message)

	turn := f.latest(t, resp.SessionID)
	assert.Equal(t, testPhone, turn.PhoneNumber)
	assert.Equal(t, "CUST-60123456789", turn.CustomerID)
	assert.Equal(t, model.ChannelWeb, turn.Channel)
	assert.Equal(t, "hello there", turn.UserMessage)

	records := f.audit.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "CUST-60123456789", records[0].CustomerID)
}

func TestConversation_SendMessageUnknownCustomer(t *testing.T) {
	c, f, _ := newConversation(t)
	f.classifier.On("Classify", mock.Anything, "hi").Return(classified(model.IntentGreeting, ""))
	f.generator.On("Generate", mock.Anything, "greeting", mock.Anything, model.LanguageEN).Return("Hi!")

	resp, err := c.SendMessage(context.Background(), model.Request{PhoneNumber: "60198765432", Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "CUST-60198765432", f.latest(t, resp.SessionID).CustomerID)
}

func TestConversation_SendMessageMobileRequiresClaims(t *testing.T) {
	tests := []struct {
		name    string
		claims  model.ChannelClaims
		present bool
		wantErr error
	}{
		{
			name:    "no token",
			wantErr: model.ErrUnauthenticated,
		},
		{
			name:    "token for another number",
			claims:  model.ChannelClaims{PhoneNumber: "+60198765432", Channel: model.ChannelMobile},
			present: true,
			wantErr: model.ErrUnauthenticated,
		},
		{
			name:    "token for another channel",
			claims:  model.ChannelClaims{PhoneNumber: testPhone, Channel: model.ChannelWhatsApp},
			present: true,
			wantErr: model.ErrUnauthenticated,
		},
		{
			name:    "matching token",
			claims:  model.ChannelClaims{PhoneNumber: testPhone, Channel: model.ChannelMobile},
			present: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f, ctxManager := newConversation(t, testCustomer(t))
			ctxManager.On("GetClaimsFromContext", mock.Anything).Return(tt.claims, tt.present)
			if tt.wantErr == nil {
				f.classifier.On("Classify", mock.Anything, "hi").Return(classified(model.IntentGreeting, ""))
				f.generator.On("Generate", mock.Anything, "greeting", mock.Anything, model.LanguageEN).Return("Hi!")
			}

			resp, err := c.SendMessage(context.Background(), model.Request{
				PhoneNumber: testPhone,
				Message:     "hi",
				Channel:     model.ChannelMobile,
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.audit.Records())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Hi!", resp.Message)
		})
	}
}

func TestConversation_SendMessageContinuesSession(t *testing.T) {
	c, f, _ := newConversation(t, testCustomer(t))
	f.classifier.On("Classify", mock.Anything, "hi").Return(classified(model.IntentGreeting, ""))
	f.generator.On("Generate", mock.Anything, "greeting", mock.Anything, model.LanguageEN).Return("Hi!")

	first, err := c.SendMessage(context.Background(), model.Request{PhoneNumber: testPhone, Message: "hi"})
	require.NoError(t, err)
	second, err := c.SendMessage(context.Background(), model.Request{
		SessionID:   first.SessionID,
		PhoneNumber: testPhone,
		Message:     "hi",
		TurnNumber:  7,
	})
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, f.latest(t, first.SessionID).TurnNumber)
}
