package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

const tracerName = "github.com/dtroode/telcoassist-server/internal/service"

// Fixed user-facing texts.
const (
	ApologyMessage  = "I apologize, but I encountered an error. Please try again."
	BusyMessage     = "I'm still working on your previous message. Please wait a moment and try again."
	AbusiveMessage  = "This conversation has been flagged and will be escalated to a supervisor."
	CRMCitation     = "CRM_API"
	notFoundMessage = "We could not find your phone number in our system. Please provide your registered phone number."
)

var unhelpfulPhrases = []string{
	"does not have sufficient information",
	"could not find",
	"no information available",
	"tidak mempunyai maklumat",
	"consult resources",
	"tidak dapat mencari",
}

var (
	escalationOffer = map[model.Language]string{
		model.LanguageEN: "I don't have specific information about that topic in my knowledge base. " +
			"Would you like me to connect you with a customer service agent who can help you further? " +
			"You can also call our hotline at 100 for immediate assistance.",
		model.LanguageBM: "Saya tidak mempunyai maklumat khusus mengenai topik itu dalam pangkalan pengetahuan saya. " +
			"Adakah anda mahu saya menghubungkan anda dengan ejen perkhidmatan pelanggan yang boleh membantu anda dengan lebih lanjut? " +
			"Anda juga boleh menghubungi talian hotline kami di 100 untuk bantuan segera.",
	}
	greetingFallback = map[model.Language]string{
		model.LanguageEN: "Hello! Thank you for reaching out. How can I assist you today?",
		model.LanguageBM: "Hai! Terima kasih kerana menghubungi kami. Bagaimana saya boleh membantu anda hari ini?",
	}
)

// outcome is the routed result of one turn before it becomes a Response.
type outcome struct {
	message          string
	grounded         bool
	citations        []string
	requiresFollowup bool
	escalate         bool
	// await is the wait to record for the next turn; nil leaves it as is.
	await         *model.AwaitingAction
	pendingIntent string
}

func awaiting(a model.AwaitingAction) *model.AwaitingAction { return &a }

// Orchestrator runs the per-turn state machine: resolve session state,
// classify, authorize, execute and respond.
type Orchestrator struct {
	sessions     *Sessions
	guard        *Guard
	executor     *Executor
	customers    model.CustomerStore
	classifier   model.Classifier
	generator    model.Generator
	retriever    model.Retriever
	audit        model.AuditSink
	locker       model.SessionLocker
	pinLength    int
	modelVersion string
	tracer       trace.Tracer
	now          func() time.Time
	logger       *logger.Logger
}

func NewOrchestrator(
	sessions *Sessions,
	guard *Guard,
	executor *Executor,
	customers model.CustomerStore,
	classifier model.Classifier,
	generator model.Generator,
	retriever model.Retriever,
	audit model.AuditSink,
	locker model.SessionLocker,
	pinLength int,
	modelVersion string,
	logger *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions:     sessions,
		guard:        guard,
		executor:     executor,
		customers:    customers,
		classifier:   classifier,
		generator:    generator,
		retriever:    retriever,
		audit:        audit,
		locker:       locker,
		pinLength:    pinLength,
		modelVersion: modelVersion,
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
		logger:       logger,
	}
}

// HandleTurn processes one inbound message. It always returns a response;
// internal failures become an apology with escalation.
func (o *Orchestrator) HandleTurn(ctx context.Context, req model.Request) (resp model.Response) {
	start := o.now()
	classification := model.UnclearClassification()
	var turnErr error

	ctx, span := o.tracer.Start(ctx, "orchestrator.turn",
		trace.WithAttributes(
			attribute.String("session.id", req.SessionID),
			attribute.String("session.channel", string(req.Channel)),
		),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			turnErr = fmt.Errorf("panic: %v", r)
			o.logger.Error("Orchestrator: recovered from panic",
				"session_id", req.SessionID,
				"panic", fmt.Sprint(r))
			resp = o.apology(req, classification)
		}
		if turnErr != nil {
			span.RecordError(turnErr)
			span.SetStatus(codes.Error, "turn failed")
		}
		span.SetAttributes(
			attribute.String("turn.intent", resp.Intent),
			attribute.Bool("turn.escalate", resp.Escalate),
		)
		o.recordAudit(ctx, req, classification, resp, start, turnErr)
	}()

	release, err := o.locker.Acquire(ctx, req.SessionID)
	switch {
	case errors.Is(err, model.ErrLockHeld):
		o.logger.Info("Orchestrator: session busy", "session_id", req.SessionID)
		return o.respond(req, classification, outcome{message: BusyMessage, requiresFollowup: true})
	case err != nil:
		o.logger.Warn("Orchestrator: session lock unavailable, continuing without it",
			"session_id", req.SessionID,
			"error", err.Error())
	default:
		defer release()
	}

	var out outcome
	classification, out, turnErr = o.handle(ctx, req)
	if turnErr != nil {
		o.logger.Error("Orchestrator: turn failed",
			"session_id", req.SessionID,
			"error", turnErr.Error())
		return o.apology(req, classification)
	}

	return o.respond(req, classification, out)
}

func (o *Orchestrator) handle(ctx context.Context, req model.Request) (model.Classification, outcome, error) {
	turn, err := o.sessions.Latest(ctx, req.SessionID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.UnclearClassification(), outcome{}, fmt.Errorf("failed to load session: %w", err)
	}

	var classification model.Classification
	if turn.AwaitingAction == model.AwaitingPIN && turn.PendingIntent != "" && LooksLikePIN(req.Message, o.pinLength) {
		o.logger.Debug("Orchestrator: treating message as PIN for pending intent",
			"session_id", req.SessionID,
			"pending_intent", turn.PendingIntent,
			"pin", logger.MaskSecret(strings.TrimSpace(req.Message)))
		classification = model.Classification{
			Intent:     model.ParseIntent(turn.PendingIntent),
			Confidence: 1.0,
			Slots: model.Slots{
				SecurityPIN: strings.TrimSpace(req.Message),
				Language:    model.LanguageEN,
			},
		}
		if err := o.sessions.UpdateAwaiting(ctx, req.SessionID, model.AwaitingNone, ""); err != nil {
			return classification, outcome{}, fmt.Errorf("failed to clear awaiting action: %w", err)
		}
	} else {
		classification = o.classify(ctx, req.Message)
	}
	if classification.Slots.Language == "" {
		classification.Slots.Language = model.LanguageEN
	}

	out, err := o.route(ctx, req, classification)
	if err != nil {
		return classification, outcome{}, err
	}

	if out.await != nil {
		if err := o.sessions.UpdateAwaiting(ctx, req.SessionID, *out.await, out.pendingIntent); err != nil {
			return classification, outcome{}, fmt.Errorf("failed to update awaiting action: %w", err)
		}
	}

	return classification, out, nil
}

func (o *Orchestrator) classify(ctx context.Context, message string) model.Classification {
	ctx, span := o.tracer.Start(ctx, "orchestrator.classify")
	defer span.End()

	c := o.classifier.Classify(ctx, message)
	span.SetAttributes(
		attribute.String("intent", c.Intent.String()),
		attribute.Float64("confidence", c.Confidence),
	)
	return c
}

func (o *Orchestrator) route(ctx context.Context, req model.Request, c model.Classification) (outcome, error) {
	lang := c.Slots.Language

	switch c.Intent.Category() {
	case model.CategorySensitive:
		return o.handleSensitive(ctx, req, c)
	case model.CategoryInformational:
		return o.handleInformational(ctx, req, lang), nil
	case model.CategoryStatus:
		return o.handleStatus(ctx, req, c.Intent, lang), nil
	case model.CategoryGreeting:
		msg := o.generator.Generate(ctx, c.Intent.String(), map[string]any{"message": "Customer greeted the bot"}, lang)
		if strings.TrimSpace(msg) == "" {
			msg = greetingFallback[lang]
		}
		return outcome{message: msg}, nil
	case model.CategoryEscalation:
		msg := o.generator.Generate(ctx, c.Intent.String(), map[string]any{"message": "Escalation needed"}, lang)
		return outcome{message: msg, escalate: true}, nil
	case model.CategoryAbusive:
		return outcome{message: AbusiveMessage, escalate: true}, nil
	case model.CategoryUnclear:
		msg := o.generator.Generate(ctx, model.IntentUnclear.String(), map[string]any{"message": "Could not understand request"}, lang)
		return outcome{message: msg, requiresFollowup: true}, nil
	}

	return outcome{}, fmt.Errorf("unroutable intent %s", c.Intent)
}

func (o *Orchestrator) handleSensitive(ctx context.Context, req model.Request, c model.Classification) (outcome, error) {
	intent := c.Intent.String()
	lang := c.Slots.Language
	activate := c.Intent == model.IntentActivateVoicemail
	customerID := req.CustomerID

	if !req.Channel.PreAuthenticated() {
		customer, err := o.customers.GetByPhone(ctx, req.PhoneNumber)
		if errors.Is(err, model.ErrNotFound) {
			msg := o.generator.Generate(ctx, intent, map[string]any{
				"status":  "customer_not_found",
				"message": notFoundMessage,
			}, lang)
			return outcome{
				message:          msg,
				requiresFollowup: true,
				await:            awaiting(model.AwaitingPhoneNumber),
				pendingIntent:    intent,
			}, nil
		}
		if err != nil {
			return outcome{}, fmt.Errorf("failed to look up customer: %w", err)
		}
		customerID = customer.CustomerID

		if c.Slots.SecurityPIN == "" {
			msg := o.generator.Generate(ctx, intent, map[string]any{
				"status":  "awaiting_pin",
				"message": fmt.Sprintf("Need %d-digit security PIN for verification", o.pinLength),
			}, lang)
			return outcome{
				message:          msg,
				requiresFollowup: true,
				await:            awaiting(model.AwaitingPIN),
				pendingIntent:    intent,
			}, nil
		}

		_, span := o.tracer.Start(ctx, "orchestrator.authorize")
		auth := o.guard.Authorize(ctx, req.SessionID, req.PhoneNumber, c.Slots.SecurityPIN)
		span.SetAttributes(attribute.Bool("authorized", auth.Authorized), attribute.Bool("locked", auth.Locked))
		if auth.Err != nil {
			span.RecordError(auth.Err)
			span.SetStatus(codes.Error, "authorization unavailable")
		}
		span.End()

		if auth.Err != nil {
			return outcome{}, fmt.Errorf("failed to authorize: %w", auth.Err)
		}
		if !auth.Authorized {
			out := outcome{message: auth.Message, requiresFollowup: !auth.Locked}
			if !auth.Locked {
				out.await = awaiting(model.AwaitingPIN)
				out.pendingIntent = intent
			}
			return out, nil
		}
	} else {
		o.logger.Debug("Orchestrator: pre-authenticated channel, skipping PIN",
			"session_id", req.SessionID,
			"channel", string(req.Channel))
	}

	execCtx, span := o.tracer.Start(ctx, "orchestrator.execute", trace.WithAttributes(attribute.String("action", intent)))
	result := o.executor.SetVoicemail(execCtx, req.SessionID, customerID, req.PhoneNumber, activate)
	span.SetAttributes(attribute.Bool("success", result.Success), attribute.Bool("idempotent", result.Idempotent))
	span.End()

	crmAction := "deactivate"
	if activate {
		crmAction = "activate"
	}

	if !result.Success {
		msg := o.generator.Generate(ctx, intent, map[string]any{
			"status": "crm_error",
			"error":  result.Error,
		}, lang)
		return outcome{message: msg}, nil
	}

	msg := o.generator.Generate(ctx, intent, map[string]any{
		"status":           "success",
		"action":           crmAction,
		"voicemail_status": result.FeatureStatus,
	}, lang)
	return outcome{message: msg, grounded: true, citations: []string{CRMCitation}}, nil
}

func (o *Orchestrator) handleInformational(ctx context.Context, req model.Request, lang model.Language) outcome {
	ctx, span := o.tracer.Start(ctx, "orchestrator.retrieve")
	defer span.End()

	r := o.retriever.Retrieve(ctx, req.Message, lang)
	span.SetAttributes(attribute.Bool("grounded", r.Grounded), attribute.Int("citations", len(r.Citations)))

	if Unhelpful(r) {
		return outcome{message: escalationOffer[lang], requiresFollowup: true}
	}

	return outcome{message: r.Response, grounded: r.Grounded, citations: r.Citations}
}

func (o *Orchestrator) handleStatus(ctx context.Context, req model.Request, intent model.Intent, lang model.Language) outcome {
	status, err := o.executor.VoicemailStatus(ctx, req.PhoneNumber)
	if errors.Is(err, model.ErrNotFound) {
		msg := o.generator.Generate(ctx, intent.String(), map[string]any{
			"status":  "customer_not_found",
			"message": notFoundMessage,
		}, lang)
		return outcome{message: msg, requiresFollowup: true}
	}
	if err != nil {
		o.logger.Error("Orchestrator: failed to read voicemail status",
			"session_id", req.SessionID,
			"error", err.Error())
		msg := o.generator.Generate(ctx, intent.String(), map[string]any{
			"status": "crm_error",
			"error":  "status unavailable",
		}, lang)
		return outcome{message: msg}
	}

	msg := o.generator.Generate(ctx, intent.String(), map[string]any{
		"status":           "success",
		"voicemail_status": status,
	}, lang)
	return outcome{message: msg, grounded: true, citations: []string{CRMCitation}}
}

// Unhelpful reports whether a retrieval should be replaced by an escalation
// offer.
func Unhelpful(r model.Retrieval) bool {
	if !r.Grounded || len(r.Citations) == 0 {
		return true
	}
	text := strings.ToLower(r.Response)
	for _, phrase := range unhelpfulPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) respond(req model.Request, c model.Classification, out outcome) model.Response {
	citations := out.citations
	if citations == nil {
		citations = []string{}
	}
	lang := c.Slots.Language
	if lang == "" {
		lang = model.LanguageEN
	}

	resp := model.Response{
		SessionID:        req.SessionID,
		Message:          out.message,
		Intent:           c.Intent.String(),
		Confidence:       c.Confidence,
		Grounded:         out.grounded,
		Citations:        citations,
		RequiresFollowup: out.requiresFollowup,
		Escalate:         out.escalate,
		Language:         lang,
		Timestamp:        o.now(),
	}
	if out.await != nil {
		resp.AwaitingAction = *out.await
	}
	return resp
}

func (o *Orchestrator) apology(req model.Request, c model.Classification) model.Response {
	return model.Response{
		SessionID:  req.SessionID,
		Message:    ApologyMessage,
		Intent:     c.Intent.String(),
		Confidence: c.Confidence,
		Citations:  []string{},
		Escalate:   true,
		Language:   model.LanguageEN,
		Timestamp:  o.now(),
	}
}

func (o *Orchestrator) recordAudit(ctx context.Context, req model.Request, c model.Classification, resp model.Response, start time.Time, turnErr error) {
	rec := model.AuditRecord{
		LogID:        uuid.NewString(),
		Timestamp:    o.now(),
		SessionID:    req.SessionID,
		CustomerID:   req.CustomerID,
		Intent:       resp.Intent,
		Confidence:   c.Confidence,
		UserMessage:  req.Message,
		ResponseText: resp.Message,
		ModelVersion: o.modelVersion,
		Grounded:     resp.Grounded,
		Citations:    resp.Citations,
		LatencyMS:    o.now().Sub(start).Milliseconds(),
	}
	if turnErr != nil {
		rec.Error = turnErr.Error()
	}

	// The audit write must not inherit a cancelled turn context.
	if err := o.audit.Record(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Error("Orchestrator: failed to record audit",
			"session_id", req.SessionID,
			"error", err.Error())
	}
}
