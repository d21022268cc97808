package models

import "time"

type CommitmentKind string

const (
	CommitOrder       CommitmentKind = "order"
	CommitReservation CommitmentKind = "reservation"
)

// Commitment is a confirmed order or reservation handed to persistence.
// Exactly one of Order and Reservation is set.
type Commitment struct {
	Kind        CommitmentKind `json:"kind"`
	SessionID   string         `json:"sessionId"`
	CallerID    string         `json:"callerId,omitempty"`
	Order       *Order         `json:"order,omitempty"`
	Reservation *Reservation   `json:"reservation,omitempty"`
	// Slot is the reservation start in the business timezone.
	Slot      time.Time `json:"slot,omitempty"`
	Total     Cents     `json:"total,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
