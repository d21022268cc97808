package receptionist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/common/metrics"
	"restaurant-receptionist/internal/common/observability"
	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/respond"
	"restaurant-receptionist/internal/session"
)

const (
	DefaultTurnTimeout = 15 * time.Second
	snapshotTimeout    = 2 * time.Second
)

var ErrEmptyUtterance = errors.New("EMPTY_UTTERANCE")

// Resolver turns an utterance into a classification. *cascade.Cascade
// satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, text string, history []models.Exchange) models.Classification
}

type Turn struct {
	SessionID string         `json:"sessionId"`
	Channel   models.Channel `json:"channel,omitempty"`
	Text      string         `json:"text"`
	CallerID  string         `json:"callerId,omitempty"`
}

type TurnResult struct {
	SessionID      string              `json:"sessionId"`
	Reply          string              `json:"reply"`
	Source         string              `json:"source"`
	Tier           respond.Tier        `json:"tier"`
	Intent         models.Intent       `json:"intent"`
	Confidence     float64             `json:"confidence"`
	Provenance     models.Provenance   `json:"provenance"`
	Order          *models.Order       `json:"order,omitempty"`
	Reservation    *models.Reservation `json:"reservation,omitempty"`
	ConfirmationID string              `json:"confirmationId,omitempty"`
	Committed      bool                `json:"committed"`
	DurationMS     int64               `json:"durationMs"`
}

type SessionInfo struct {
	SessionID string         `json:"sessionId"`
	Channel   models.Channel `json:"channel"`
	CallerID  string         `json:"callerId,omitempty"`
	Greeting  string         `json:"greeting,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Option func(*Engine)

func WithTurnTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.turnTimeout = d
		}
	}
}

func WithObservability(o *observability.Observability) Option {
	return func(e *Engine) { e.obs = o }
}

// Engine runs one conversation turn at a time per session.
type Engine struct {
	sessions    *session.Store
	resolver    Resolver
	responder   *respond.Engine
	obs         *observability.Observability
	turnTimeout time.Duration
	logger      logger.Logger
}

func New(sessions *session.Store, resolver Resolver, responder *respond.Engine, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		sessions:    sessions,
		resolver:    resolver,
		responder:   responder,
		turnTimeout: DefaultTurnTimeout,
		logger:      log.With(map[string]interface{}{"component": "receptionist"}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartSession handles a call-start or chat-open event. The greeting is
// rendered but not recorded in history.
func (e *Engine) StartSession(ctx context.Context, id string, channel models.Channel, callerID string) SessionInfo {
	if channel == "" {
		channel = models.ChannelChat
	}
	sess := e.sessions.GetOrCreate(ctx, id, channel)
	if callerID != "" {
		sess.SetCallerID(callerID)
	}

	greeting := e.responder.GenerateReply(ctx, "", models.Classification{
		Intent:     models.IntentGreeting,
		Confidence: 1,
		Provenance: models.ProvenanceNone,
	}, respond.Conversation{SessionID: sess.ID})

	e.logger.Info("session started", map[string]interface{}{
		"sessionId": sess.ID,
		"channel":   string(channel),
	})
	return SessionInfo{
		SessionID: sess.ID,
		Channel:   sess.Channel,
		CallerID:  sess.CallerID(),
		Greeting:  greeting.Text,
		CreatedAt: sess.CreatedAt,
	}
}

// EndSession handles call-end. A turn still in flight for the session has
// its result discarded.
func (e *Engine) EndSession(ctx context.Context, id string) bool {
	ended := e.sessions.Expire(ctx, id)
	if ended {
		e.logger.Info("session ended", map[string]interface{}{"sessionId": id})
	}
	return ended
}

func (e *Engine) HandleTurn(ctx context.Context, turn Turn) (TurnResult, error) {
	start := time.Now()
	if strings.TrimSpace(turn.Text) == "" {
		return TurnResult{}, ErrEmptyUtterance
	}
	if turn.Channel == "" {
		turn.Channel = models.ChannelChat
	}

	ctx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()

	sess, release, err := e.sessions.Acquire(ctx, turn.SessionID, turn.Channel)
	if err != nil {
		return TurnResult{}, err
	}
	defer release()

	// call-end cancels whatever the turn is still waiting on
	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if turn.CallerID != "" {
		sess.SetCallerID(turn.CallerID)
	}
	history := sess.History()

	cls := e.resolver.Resolve(ctx, turn.Text, history)
	reply := e.responder.GenerateReply(ctx, turn.Text, cls, respond.Conversation{
		SessionID:   sess.ID,
		CallerID:    sess.CallerID(),
		History:     history,
		Order:       sess.Order(),
		Reservation: sess.Reservation(),
	})

	if sess.Expired() {
		e.logger.Info("turn discarded after session end", map[string]interface{}{
			"sessionId": sess.ID,
			"source":    reply.Source,
		})
		return TurnResult{}, fmt.Errorf("%w: %s", session.ErrSessionEnded, sess.ID)
	}

	sess.Record(models.Exchange{
		Utterance: turn.Text,
		Reply:     reply.Text,
		Source:    reply.Source,
		Intent:    cls.Intent,
		At:        time.Now().UTC(),
	}, reply.Order, reply.Reservation)

	e.touch(ctx, sess.ID)

	elapsed := time.Since(start)
	metrics.TurnsProcessed.WithLabelValues(string(turn.Channel), reply.Source).Inc()
	metrics.TurnDuration.WithLabelValues(string(reply.Tier)).Observe(elapsed.Seconds())
	e.obs.RecordTurn(ctx, reply.Source, elapsed)

	e.logger.Info("turn answered", map[string]interface{}{
		"sessionId":  sess.ID,
		"intent":     string(cls.Intent),
		"provenance": string(cls.Provenance),
		"confidence": cls.Confidence,
		"source":     reply.Source,
		"durationMs": elapsed.Milliseconds(),
	})

	result := TurnResult{
		SessionID:      sess.ID,
		Reply:          reply.Text,
		Source:         reply.Source,
		Tier:           reply.Tier,
		Intent:         cls.Intent,
		Confidence:     cls.Confidence,
		Provenance:     cls.Provenance,
		ConfirmationID: reply.ConfirmationID,
		Committed:      reply.Committed,
		DurationMS:     elapsed.Milliseconds(),
	}
	if reply.Order.InProgress() || reply.Committed && reply.Order.State == models.OrderConfirmed {
		order := reply.Order
		result.Order = &order
	}
	if reply.Reservation.InProgress() || reply.Committed && reply.Reservation.State == models.ReservationConfirmed {
		res := reply.Reservation
		result.Reservation = &res
	}
	return result, nil
}

// touch refreshes the session after a turn. It only fails when the call
// ended after the reply was recorded.
func (e *Engine) touch(ctx context.Context, id string) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()
	if err := e.sessions.Touch(sctx, id); err != nil {
		e.logger.Debug("session touch skipped", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
	}
}
