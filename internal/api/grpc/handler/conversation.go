package handler

import (
	"context"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/telcoassist-server/internal/api/grpc/conversationpb"
	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

// ConversationService handles canonical requests.
type ConversationService interface {
	SendMessage(ctx context.Context, req model.Request) (model.Response, error)
}

var _ conversationpb.ConversationServer = (*Conversation)(nil)

// Conversation adapts the Struct wire format to the conversation service.
type Conversation struct {
	service ConversationService
	logger  *logger.Logger
}

func NewConversation(service ConversationService, logger *logger.Logger) *Conversation {
	return &Conversation{service: service, logger: logger}
}

func (h *Conversation) SendMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRequest(in)
	if err != nil {
		return nil, handleError(err)
	}

	resp, err := h.service.SendMessage(ctx, req)
	if err != nil {
		h.logger.Debug("Conversation handler: request rejected",
			"session_id", req.SessionID,
			"error", err.Error())
		return nil, handleError(err)
	}

	out, err := encodeResponse(resp)
	if err != nil {
		h.logger.Error("Conversation handler: failed to encode response",
			"session_id", resp.SessionID,
			"error", err.Error())
		return nil, handleError(err)
	}
	return out, nil
}

func decodeRequest(in *structpb.Struct) (model.Request, error) {
	var (
		req model.Request
		err error
	)
	if req.SessionID, err = stringField(in, "session_id"); err != nil {
		return req, err
	}
	if req.PhoneNumber, err = stringField(in, "phone_number"); err != nil {
		return req, err
	}
	if req.Message, err = stringField(in, "message"); err != nil {
		return req, err
	}
	channel, err := stringField(in, "channel")
	if err != nil {
		return req, err
	}
	req.Channel = model.Channel(channel)
	if req.TurnNumber, err = intField(in, "turn_number"); err != nil {
		return req, err
	}
	return req, nil
}

func stringField(in *structpb.Struct, name string) (string, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return "", nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return "", nil
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	}
	return "", model.NewValidationError(name, "must be a string")
}

func intField(in *structpb.Struct, name string) (int, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return 0, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return 0, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, model.NewValidationError(name, "must be an integer")
		}
		return int(n), nil
	}
	return 0, model.NewValidationError(name, "must be an integer")
}

func encodeResponse(resp model.Response) (*structpb.Struct, error) {
	citations := make([]interface{}, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		citations = append(citations, c)
	}

	return structpb.NewStruct(map[string]interface{}{
		"session_id":        resp.SessionID,
		"message":           resp.Message,
		"intent":            resp.Intent,
		"confidence":        resp.Confidence,
		"grounded":          resp.Grounded,
		"citations":         citations,
		"requires_followup": resp.RequiresFollowup,
		"escalate":          resp.Escalate,
		"language":          string(resp.Language),
		"timestamp":         resp.Timestamp.UTC().Format(time.RFC3339),
		"awaiting_action":   string(resp.AwaitingAction),
	})
}
