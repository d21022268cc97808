package persistence

import (
	"context"
	"time"

	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/models"
)

const (
	DefaultOrderProcessID       = "order-fulfillment"
	DefaultReservationProcessID = "reservation-confirmation"
)

// ProcessClient starts BPMN process instances. *camunda.Client satisfies it.
type ProcessClient interface {
	StartProcess(ctx context.Context, bpmnProcessID string, variables interface{}) (int64, error)
}

// ProcessStarter hands committed orders and reservations to the kitchen and
// front-of-house workflows.
type ProcessStarter struct {
	client               ProcessClient
	orderProcessID       string
	reservationProcessID string
	logger               logger.Logger
}

func NewProcessStarter(client ProcessClient, orderProcessID, reservationProcessID string, log logger.Logger) *ProcessStarter {
	if orderProcessID == "" {
		orderProcessID = DefaultOrderProcessID
	}
	if reservationProcessID == "" {
		reservationProcessID = DefaultReservationProcessID
	}
	return &ProcessStarter{
		client:               client,
		orderProcessID:       orderProcessID,
		reservationProcessID: reservationProcessID,
		logger:               log.With(map[string]interface{}{"component": "process-starter"}),
	}
}

// ProcessVariables is the variable document every process instance starts
// with.
type ProcessVariables struct {
	ConfirmationID  string            `json:"confirmationId"`
	Kind            string            `json:"kind"`
	SessionID       string            `json:"sessionId"`
	CallerID        string            `json:"callerId,omitempty"`
	Summary         string            `json:"summary"`
	Items           []models.LineItem `json:"items,omitempty"`
	TotalCents      int64             `json:"totalCents,omitempty"`
	PartySize       int               `json:"partySize,omitempty"`
	Slot            string            `json:"slot,omitempty"`
	SpecialRequests []string          `json:"specialRequests,omitempty"`
	CreatedAt       string            `json:"createdAt"`
}

func (p *ProcessStarter) Start(ctx context.Context, confirmationID string, c models.Commitment) (int64, error) {
	processID := p.orderProcessID
	if c.Kind == models.CommitReservation {
		processID = p.reservationProcessID
	}

	key, err := p.client.StartProcess(ctx, processID, Variables(confirmationID, c))
	if err != nil {
		return 0, err
	}
	p.logger.Info("process started", map[string]interface{}{
		"processId":          processID,
		"processInstanceKey": key,
		"confirmationId":     confirmationID,
	})
	return key, nil
}

func Variables(confirmationID string, c models.Commitment) ProcessVariables {
	v := ProcessVariables{
		ConfirmationID: confirmationID,
		Kind:           string(c.Kind),
		SessionID:      c.SessionID,
		CallerID:       c.CallerID,
		Summary:        Describe(confirmationID, c),
		CreatedAt:      createdAt(c).Format(time.RFC3339),
	}
	if c.Order != nil {
		v.Items = c.Order.Items
		v.TotalCents = int64(c.Order.Total())
	}
	if c.Reservation != nil {
		if c.Reservation.PartySize != nil {
			v.PartySize = *c.Reservation.PartySize
		}
		v.SpecialRequests = c.Reservation.SpecialRequests
		if !c.Slot.IsZero() {
			v.Slot = c.Slot.Format(time.RFC3339)
		}
	}
	return v
}
