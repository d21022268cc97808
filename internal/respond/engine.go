package respond

import (
	"context"
	"errors"

	"restaurant-receptionist/internal/accumulator"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/facts"
	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/templates"
)

type Tier string

const (
	TierDirect      Tier = "direct_fact"
	TierTemplate    Tier = "template"
	TierAccumulator Tier = "accumulator"
	TierRAG         Tier = "rag"
	TierFallback    Tier = "fallback"
)

// Conversation is the read-only session state a reply is computed from.
type Conversation struct {
	SessionID   string
	CallerID    string
	History     []models.Exchange
	Order       models.Order
	Reservation models.Reservation
}

// Reply carries the text, the tier and sub-path that produced it, and the
// drafts the session should hold afterwards.
type Reply struct {
	Text           string
	Source         string
	Tier           Tier
	Order          models.Order
	Reservation    models.Reservation
	ConfirmationID string
	Committed      bool
}

// Engine answers each turn from the cheapest tier able to: direct facts,
// then intent templates or the accumulator, then retrieval-augmented
// generation.
type Engine struct {
	snapshot  func() *facts.Snapshot
	direct    *DirectFacts
	templates *templates.Registry
	acc       *accumulator.Accumulator
	rag       *RAG
	logger    logger.Logger
}

func NewEngine(snapshot func() *facts.Snapshot, reg *templates.Registry, acc *accumulator.Accumulator, rag *RAG, log logger.Logger) *Engine {
	return &Engine{
		snapshot:  snapshot,
		direct:    NewDirectFacts(snapshot),
		templates: reg,
		acc:       acc,
		rag:       rag,
		logger:    log.With(map[string]interface{}{"component": "respond"}),
	}
}

// GenerateReply never fails: every miss or error ends in the apology
// template.
func (e *Engine) GenerateReply(ctx context.Context, utterance string, cls models.Classification, conv Conversation) Reply {
	base := Reply{Order: conv.Order, Reservation: conv.Reservation}
	intent := cls.Intent

	// An open draft pulls ambiguous or draft-related turns ahead of direct
	// facts.
	if conv.Order.InProgress() && (intent == models.IntentOrder || intent == models.IntentUnknown || e.acc.OrderRelevant(utterance, conv.Order)) {
		return e.orderReply(ctx, utterance, conv)
	}
	if conv.Reservation.InProgress() && (intent == models.IntentReservation || intent == models.IntentUnknown || e.acc.ReservationRelevant(utterance, conv.Reservation)) {
		return e.reservationReply(ctx, utterance, conv)
	}

	if text, source, ok := e.direct.Answer(utterance); ok {
		base.Text, base.Source, base.Tier = text, source, TierDirect
		return base
	}

	switch intent {
	case models.IntentOrder:
		return e.orderReply(ctx, utterance, conv)
	case models.IntentReservation:
		return e.reservationReply(ctx, utterance, conv)
	}

	if e.templates != nil && e.templates.Has(intent) {
		rendered, err := e.templates.Render(intent, utterance, e.snapshot().TemplateData())
		if err == nil {
			base.Text, base.Source, base.Tier = rendered.Text, rendered.Source, TierTemplate
			return base
		}
		e.logger.Debug("template missed", map[string]interface{}{"intent": string(intent), "error": err.Error()})
	}

	if e.rag != nil {
		text, source, err := e.rag.Answer(ctx, utterance, intent, conv.History)
		if err == nil {
			base.Text, base.Source, base.Tier = text, source, TierRAG
			return base
		}
		if !errors.Is(err, context.Canceled) {
			e.logger.WithError(err).Warn("generated answer unavailable", map[string]interface{}{
				"sessionId": conv.SessionID,
				"intent":    string(intent),
			})
		}
	}

	base.Text, base.Source, base.Tier = ApologyText, SourceApology, TierFallback
	return base
}

func (e *Engine) orderReply(ctx context.Context, utterance string, conv Conversation) Reply {
	out := e.acc.HandleOrder(ctx, conv.SessionID, conv.CallerID, utterance, conv.Order)
	return Reply{
		Text:           out.Reply,
		Source:         out.Source,
		Tier:           TierAccumulator,
		Order:          out.Order,
		Reservation:    conv.Reservation,
		ConfirmationID: out.ConfirmationID,
		Committed:      out.Committed,
	}
}

func (e *Engine) reservationReply(ctx context.Context, utterance string, conv Conversation) Reply {
	out := e.acc.HandleReservation(ctx, conv.SessionID, conv.CallerID, utterance, conv.Reservation)
	return Reply{
		Text:           out.Reply,
		Source:         out.Source,
		Tier:           TierAccumulator,
		Order:          conv.Order,
		Reservation:    out.Reservation,
		ConfirmationID: out.ConfirmationID,
		Committed:      out.Committed,
	}
}
