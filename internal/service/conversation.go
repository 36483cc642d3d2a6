package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

// Conversation is the ingress for canonical requests coming from channel
// adapters. It validates the request, begins the turn and hands it to the
// orchestrator.
type Conversation struct {
	sessions     *Sessions
	orchestrator *Orchestrator
	customers    model.CustomerStore
	ctxManager   model.ContextManager
	logger       *logger.Logger
}

func NewConversation(
	sessions *Sessions,
	orchestrator *Orchestrator,
	customers model.CustomerStore,
	ctxManager model.ContextManager,
	logger *logger.Logger,
) *Conversation {
	return &Conversation{
		sessions:     sessions,
		orchestrator: orchestrator,
		customers:    customers,
		ctxManager:   ctxManager,
		logger:       logger,
	}
}

// SendMessage handles one inbound message. Errors are returned only for
// requests that never reach the orchestrator.
func (c *Conversation) SendMessage(ctx context.Context, req model.Request) (model.Response, error) {
	req, err := c.validate(req)
	if err != nil {
		return model.Response{}, err
	}

	if req.Channel.PreAuthenticated() {
		claims, ok := c.ctxManager.GetClaimsFromContext(ctx)
		if !ok || claims.Channel != req.Channel || claims.PhoneNumber != req.PhoneNumber {
			c.logger.Warn("Conversation: channel token does not match request",
				"channel", string(req.Channel),
				"phone_number", req.PhoneNumber)
			return model.Response{}, model.ErrUnauthenticated
		}
	}

	req.CustomerID = c.resolveCustomerID(ctx, req.PhoneNumber)

	turn, err := c.sessions.BeginTurn(ctx, req)
	if err != nil {
		c.logger.Error("Conversation: failed to begin turn",
			"session_id", req.SessionID,
			"error", err.Error())
		return model.Response{}, fmt.Errorf("failed to begin turn: %w", err)
	}
	if req.TurnNumber != 0 && req.TurnNumber != turn.TurnNumber {
		c.logger.Debug("Conversation: client turn number is stale",
			"session_id", turn.SessionID,
			"client_turn", req.TurnNumber,
			"turn", turn.TurnNumber)
	}
	req.SessionID = turn.SessionID
	req.TurnNumber = turn.TurnNumber

	return c.orchestrator.HandleTurn(ctx, req), nil
}

func (c *Conversation) validate(req model.Request) (model.Request, error) {
	phone := NormalizePhoneNumber(req.PhoneNumber)
	if !ValidPhoneNumber(phone) {
		return req, model.NewValidationError("phone_number", "must be a Malaysian number in +60 format")
	}
	req.PhoneNumber = phone

	req.Message = SanitizeMessage(req.Message)
	if req.Message == "" {
		return req, model.NewValidationError("message", "must not be empty")
	}

	if req.Channel == "" {
		req.Channel = model.ChannelWeb
	}
	if !req.Channel.Valid() {
		return req, model.NewValidationError("channel", "must be one of web, mobile, whatsapp")
	}

	if req.TurnNumber < 0 {
		return req, model.NewValidationError("turn_number", "must not be negative")
	}

	return req, nil
}

func (c *Conversation) resolveCustomerID(ctx context.Context, phoneNumber string) string {
	customer, err := c.customers.GetByPhone(ctx, phoneNumber)
	if err == nil {
		return customer.CustomerID
	}
	if !errors.Is(err, model.ErrNotFound) {
		c.logger.Warn("Conversation: customer lookup failed, using derived id",
			"phone_number", phoneNumber,
			"error", err.Error())
	}
	return CustomerIDFromPhone(phoneNumber)
}
