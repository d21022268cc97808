package accumulator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "restaurant-receptionist/internal/common/errors"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/common/metrics"
	"restaurant-receptionist/internal/facts"
	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/nlu/features"
)

var ErrNoCommitter = errors.New("COMMITTER_NOT_CONFIGURED")

const (
	SourceOrder       = "accumulator.order"
	SourceReservation = "accumulator.reservation"
	SourceRecap       = "session.recap"
)

// Committer hands a confirmed order or reservation to durable storage and
// returns the confirmation id read back to the caller.
type Committer interface {
	Commit(ctx context.Context, c models.Commitment) (string, error)
}

type Config struct {
	CommitTimeout  time.Duration
	PickupEstimate string
	Location       *time.Location
	Now            func() time.Time
}

func DefaultConfig() Config {
	return Config{
		CommitTimeout:  5 * time.Second,
		PickupEstimate: "25-30 minutes",
		Location:       time.Local,
		Now:            time.Now,
	}
}

// Outcome is the result of one accumulator turn. Order and Reservation are
// the proposed new drafts; the caller decides whether to keep them.
type Outcome struct {
	Reply          string
	Source         string
	Order          models.Order
	Reservation    models.Reservation
	ConfirmationID string
	Committed      bool
}

// Accumulator collects order items and reservation fields across turns and
// commits them once the caller confirms.
type Accumulator struct {
	cfg       Config
	snapshot  func() *facts.Snapshot
	committer Committer
	logger    logger.Logger
	resParser *ReservationParser

	mu         sync.Mutex
	parserFor  *facts.Snapshot
	orderParse *OrderParser
}

func New(cfg Config, snapshot func() *facts.Snapshot, committer Committer, log logger.Logger) *Accumulator {
	def := DefaultConfig()
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = def.CommitTimeout
	}
	if cfg.PickupEstimate == "" {
		cfg.PickupEstimate = def.PickupEstimate
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &Accumulator{
		cfg:       cfg,
		snapshot:  snapshot,
		committer: committer,
		logger:    log.With(map[string]interface{}{"component": "accumulator"}),
		resParser: NewReservationParser(cfg.Location, cfg.Now),
	}
}

// orderParser rebuilds the catalog matcher when the fact snapshot changes.
func (a *Accumulator) orderParser() *OrderParser {
	snap := a.snapshot()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.orderParse == nil || a.parserFor != snap {
		a.orderParse = NewOrderParser(snap.Catalog())
		a.parserFor = snap
	}
	return a.orderParse
}

var (
	closingPhrases = []string{
		" that's all ", " that is all ", " that's it ", " that will be all ", " that'll be all ",
		" that's everything ", " i'm done ", " im done ", " nothing else ", " we're good ",
		" we are good ", " confirm ", " place the order ", " place my order ", " that's it for me ",
	}
	summaryDeclines = map[string]bool{"no": true, "nope": true, "no thanks": true, "no thank you": true}

	recapPhrases = []string{
		" what was my order ", " repeat my order ", " what did i order ", " read back my order ",
		" recap my order ", " read my order back ", " what's on my order ", " what do i have so far ",
	}
	orderRestartPhrases = []string{" start over ", " cancel my order ", " cancel the order ", " scratch that order "}
	resRestartPhrases   = []string{" start over ", " cancel the reservation ", " cancel my reservation "}

	affirmatives = []string{
		" yes ", " yeah ", " yep ", " sure ", " please do ", " book it ", " confirm ", " sounds good ",
		" that's right ", " correct ", " perfect ", " that works ", " go ahead ",
	}
	negatives = []string{" no ", " nope ", " not quite ", " wrong "}
)

func padded(text string) string {
	return " " + features.Normalize(text) + " "
}

// OrderRelevant reports whether text carries something the order flow can
// act on given the current draft.
func (a *Accumulator) OrderRelevant(text string, order models.Order) bool {
	p := padded(text)
	if containsAny(p, recapPhrases) || containsAny(p, orderRestartPhrases) {
		return true
	}
	if order.InProgress() && a.isClosing(p, order) {
		return true
	}
	return !a.orderParser().Parse(text).Empty()
}

// ReservationRelevant reports whether text supplies a reservation field or
// answers the booking question.
func (a *Accumulator) ReservationRelevant(text string, res models.Reservation) bool {
	p := padded(text)
	if res.InProgress() && containsAny(p, resRestartPhrases) {
		return true
	}
	if res.State == models.ReservationComplete && (containsAny(p, affirmatives) || containsAny(p, negatives)) {
		return true
	}
	return !a.resParser.Parse(text).Empty()
}

func (a *Accumulator) isClosing(p string, order models.Order) bool {
	if containsAny(p, closingPhrases) {
		return true
	}
	return order.State == models.OrderSummarizing && summaryDeclines[strings.TrimSpace(p)]
}

// HandleOrder advances the order draft by one utterance.
func (a *Accumulator) HandleOrder(ctx context.Context, sessionID, callerID, text string, prior models.Order) Outcome {
	p := padded(text)
	order := prior.Clone()
	if order.State == "" || order.State == models.OrderConfirmed {
		order = models.Order{State: models.OrderIdle}
	}
	out := Outcome{Source: SourceOrder}

	if containsAny(p, orderRestartPhrases) {
		out.Order = models.Order{State: models.OrderCollecting}
		out.Reply = "No problem, I've cleared the order. What can I get started for you?"
		return out
	}
	if containsAny(p, recapPhrases) {
		out.Order = order
		out.Source = SourceRecap
		if len(order.Items) == 0 {
			out.Reply = "I don't have an order on file yet for this call."
		} else {
			out.Reply = summarize(order)
		}
		return out
	}

	parsed := a.orderParser().Parse(text)

	if len(parsed.Fragments) == 0 && a.isClosing(p, order) {
		if len(order.Items) == 0 {
			order.State = models.OrderCollecting
			out.Order = order
			out.Reply = "I don't have any items on your order yet. What would you like?"
			return out
		}
		return a.commitOrder(ctx, sessionID, callerID, order)
	}

	var b strings.Builder
	for _, item := range parsed.PriceQueries {
		fmt.Fprintf(&b, "The %s is %s. ", item.Name, item.Price)
	}

	if len(parsed.Fragments) > 0 {
		order = MergeOrder(order, parsed.Fragments)
		if len(order.Items) == 0 {
			order.State = models.OrderCollecting
		} else {
			order.State = models.OrderSummarizing
		}
	} else if order.State == models.OrderIdle {
		order.State = models.OrderCollecting
	}

	if len(parsed.Unresolved) > 0 {
		a.logger.Debug("order fragments unresolved", map[string]interface{}{
			"sessionId":  sessionID,
			"unresolved": len(parsed.Unresolved),
		})
		b.WriteString(describeUnresolved(parsed.Unresolved))
		b.WriteString(" ")
	}

	switch {
	case len(parsed.Fragments) > 0 && len(order.Items) == 0:
		b.WriteString("Your order is empty now. What would you like instead?")
	case len(order.Items) > 0 && (len(parsed.Fragments) > 0 || len(parsed.Unresolved) > 0):
		b.WriteString(summarize(order))
	case len(parsed.Unresolved) > 0:
		b.WriteString("What else would you like?")
	case len(parsed.PriceQueries) > 0:
		b.WriteString("Would you like to add that to your order?")
	case order.State == models.OrderSummarizing:
		b.WriteString("Anything else I can add, or is that everything?")
	default:
		b.WriteString("Sure, what can I get started for you?")
	}

	out.Order = order
	out.Reply = strings.TrimSpace(b.String())
	return out
}

func (a *Accumulator) commitOrder(ctx context.Context, sessionID, callerID string, order models.Order) Outcome {
	c := models.Commitment{
		Kind:      models.CommitOrder,
		SessionID: sessionID,
		CallerID:  callerID,
		Order:     &order,
		Total:     order.Total(),
		CreatedAt: a.cfg.Now().UTC(),
	}
	id, err := a.commit(ctx, c)
	if err != nil {
		order.State = models.OrderSummarizing
		return Outcome{
			Source: SourceOrder,
			Order:  order,
			Reply:  "I'm sorry, I wasn't able to place your order just now. Your items are still saved. Would you like me to try again?",
		}
	}
	return Outcome{
		Source:         SourceOrder,
		Order:          models.Order{State: models.OrderConfirmed},
		ConfirmationID: id,
		Committed:      true,
		Reply: fmt.Sprintf("Your order is confirmed. Your confirmation number is %s and the total is %s before tax and fees. It will be ready for pickup in about %s.",
			id, order.Total(), a.cfg.PickupEstimate),
	}
}

// HandleReservation advances the reservation draft by one utterance.
func (a *Accumulator) HandleReservation(ctx context.Context, sessionID, callerID, text string, prior models.Reservation) Outcome {
	p := padded(text)
	res := prior.Clone()
	if res.State == "" || res.State == models.ReservationConfirmed {
		res = models.Reservation{State: models.ReservationIdle}
	}
	out := Outcome{Source: SourceReservation}

	if res.InProgress() && containsAny(p, resRestartPhrases) {
		out.Reservation = models.Reservation{State: models.ReservationCollecting}
		out.Reply = "No problem, let's start over. How many people, and what date and time?"
		return out
	}

	frags := a.resParser.Parse(text)

	if frags.Empty() && res.State == models.ReservationComplete {
		switch {
		case containsAny(p, affirmatives) && res.IsComplete():
			return a.commitReservation(ctx, sessionID, callerID, res)
		case containsAny(p, negatives):
			out.Reservation = res
			out.Reply = "No problem. What would you like to change?"
			return out
		}
	}

	var notes []string
	if !frags.Empty() {
		merged := MergeReservation(res, frags)
		notes = a.applyRules(&merged)
		res = merged
	}

	if res.IsComplete() {
		res.State = models.ReservationComplete
	} else {
		res.State = models.ReservationCollecting
	}

	out.Reservation = res
	out.Reply = a.reservationReply(res, !frags.Empty(), notes)
	return out
}

// applyRules enforces the business's reservation rules on r, clearing any
// field that breaks one, and returns what to tell the caller.
func (a *Accumulator) applyRules(r *models.Reservation) []string {
	snap := a.snapshot()
	rules := snap.ReservationRules()
	var notes []string

	if r.PartySize != nil {
		n := *r.PartySize
		switch {
		case n <= 0:
			r.PartySize = nil
			notes = append(notes, "I didn't catch a valid party size.")
		case rules.MaxPartySize > 0 && n > rules.MaxPartySize:
			r.PartySize = nil
			msg := fmt.Sprintf("For parties larger than %d, please call us", rules.MaxPartySize)
			if phone := snap.Address().Phone; phone != "" {
				msg += " at " + phone
			}
			notes = append(notes, msg+" so we can arrange seating.")
		case rules.MinPartySize > 0 && n < rules.MinPartySize:
			r.PartySize = nil
			notes = append(notes, fmt.Sprintf("We take reservations for parties of %d or more.", rules.MinPartySize))
		case rules.LargePartyThreshold > 0 && n >= rules.LargePartyThreshold:
			notes = append(notes, fmt.Sprintf("For parties of %d or more we may need a little extra time to set up your table.", rules.LargePartyThreshold))
		}
	}

	now := a.cfg.Now().In(a.cfg.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.cfg.Location)
	switch {
	case r.Date == nil:
	case r.Date.Before(today):
		r.Date = nil
		notes = append(notes, "That date has already passed.")
	case rules.AdvanceBookingDays > 0 && r.Date.After(today.AddDate(0, 0, rules.AdvanceBookingDays)):
		r.Date = nil
		notes = append(notes, fmt.Sprintf("We can only book up to %d days in advance.", rules.AdvanceBookingDays))
	}

	if slot, ok := r.Slot(a.cfg.Location); ok && slot.Before(now) {
		r.Time = nil
		notes = append(notes, "That time has already passed today.")
	}
	return notes
}

func (a *Accumulator) reservationReply(r models.Reservation, updated bool, notes []string) string {
	var b strings.Builder
	for _, n := range notes {
		b.WriteString(n)
		b.WriteString(" ")
	}
	if captured := describeReservation(r); captured != "" {
		if updated {
			fmt.Fprintf(&b, "Great, I have %s. ", captured)
		} else {
			fmt.Fprintf(&b, "So far I have %s. ", captured)
		}
	} else if !updated && len(notes) == 0 {
		b.WriteString("I'd be happy to help with a reservation. ")
	}

	switch missing := r.Missing(); {
	case len(missing) == 0:
		b.WriteString("Shall I book it?")
	case len(missing) == 3:
		b.WriteString("How many people, and what date and time would you like?")
	default:
		b.WriteString(askFor(missing))
	}
	return strings.TrimSpace(b.String())
}

func (a *Accumulator) commitReservation(ctx context.Context, sessionID, callerID string, res models.Reservation) Outcome {
	slot, _ := res.Slot(a.cfg.Location)
	c := models.Commitment{
		Kind:        models.CommitReservation,
		SessionID:   sessionID,
		CallerID:    callerID,
		Reservation: &res,
		Slot:        slot,
		CreatedAt:   a.cfg.Now().UTC(),
	}
	id, err := a.commit(ctx, c)
	if err != nil {
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) && stdErr.Code == apperrors.ErrCodeSlotUnavailable {
			res.Time = nil
			res.State = models.ReservationCollecting
			return Outcome{
				Source:      SourceReservation,
				Reservation: res,
				Reply:       "I'm sorry, that time is fully booked. Would another time work for you?",
			}
		}
		return Outcome{
			Source:      SourceReservation,
			Reservation: res,
			Reply:       "I'm sorry, I wasn't able to book the table just now. Your details are still saved. Would you like me to try again?",
		}
	}
	return Outcome{
		Source:         SourceReservation,
		Reservation:    models.Reservation{State: models.ReservationConfirmed},
		ConfirmationID: id,
		Committed:      true,
		Reply:          fmt.Sprintf("You're all set. I've booked %s. Your confirmation number is %s.", describeReservation(res), id),
	}
}

// commit runs the committer under the configured timeout and records the
// outcome.
func (a *Accumulator) commit(ctx context.Context, c models.Commitment) (string, error) {
	kind := string(c.Kind)
	if a.committer == nil {
		metrics.Commits.WithLabelValues(kind, "failed").Inc()
		return "", ErrNoCommitter
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.CommitTimeout)
	defer cancel()

	id, err := a.committer.Commit(ctx, c)
	if err != nil {
		outcome := "failed"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.Commits.WithLabelValues(kind, outcome).Inc()
		a.logger.WithError(err).Error("commit failed", map[string]interface{}{
			"sessionId": c.SessionID,
			"kind":      kind,
			"outcome":   outcome,
		})
		return "", err
	}

	metrics.Commits.WithLabelValues(kind, "success").Inc()
	a.logger.Info("commit succeeded", map[string]interface{}{
		"sessionId":      c.SessionID,
		"kind":           kind,
		"confirmationId": id,
	})
	return id, nil
}

func summarize(o models.Order) string {
	parts := make([]string, 0, len(o.Items))
	for _, li := range o.Items {
		parts = append(parts, fmt.Sprintf("%d %s (%s)", li.Quantity, li.Name, li.LineTotal))
	}
	return fmt.Sprintf("So far I have: %s. The estimated total is %s before tax and fees. Would you like to add anything else or is that everything?",
		strings.Join(parts, ", "), o.Total())
}

func describeUnresolved(list []Unresolved) string {
	var unknown, invalid []string
	for _, u := range list {
		if u.Reason == ReasonInvalidQuantity {
			invalid = append(invalid, `"`+u.Text+`"`)
		} else {
			unknown = append(unknown, `"`+u.Text+`"`)
		}
	}
	var parts []string
	if len(unknown) > 0 {
		parts = append(parts, fmt.Sprintf("I couldn't find %s on our menu.", strings.Join(unknown, " or ")))
	}
	if len(invalid) > 0 {
		parts = append(parts, fmt.Sprintf("I didn't catch a valid quantity for %s. How many would you like?", strings.Join(invalid, " or ")))
	}
	return strings.Join(parts, " ")
}

func describeReservation(r models.Reservation) string {
	var parts []string
	if r.PartySize != nil {
		if *r.PartySize == 1 {
			parts = append(parts, "a table for 1")
		} else {
			parts = append(parts, fmt.Sprintf("a table for %d", *r.PartySize))
		}
	}
	if r.Date != nil {
		parts = append(parts, "on "+r.Date.Format("Monday, January 2"))
	}
	if r.Time != nil {
		parts = append(parts, "at "+r.Time.Spoken())
	}
	if len(r.SpecialRequests) > 0 {
		parts = append(parts, "noting "+strings.Join(r.SpecialRequests, " and "))
	}
	return strings.Join(parts, " ")
}

func askFor(missing []string) string {
	questions := map[string]string{
		"party size": "how many people",
		"date":       "what date",
		"time":       "what time",
	}
	qs := make([]string, 0, len(missing))
	for _, m := range missing {
		qs = append(qs, questions[m])
	}
	q := strings.Join(qs, " and ")
	return strings.ToUpper(q[:1]) + q[1:] + " would you like?"
}
