package models

import (
	"fmt"
	"time"
)

type ReservationState string

const (
	ReservationIdle       ReservationState = "idle"
	ReservationCollecting ReservationState = "collecting"
	ReservationComplete   ReservationState = "complete"
	ReservationConfirmed  ReservationState = "confirmed"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// String renders 24-hour "19:00".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Spoken renders "7:00 PM".
func (t TimeOfDay) Spoken() string {
	h := t.Hour % 12
	if h == 0 {
		h = 12
	}
	suffix := "AM"
	if t.Hour >= 12 {
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", h, t.Minute, suffix)
}

// Reservation is a draft until PartySize, Date and Time are all set.
type Reservation struct {
	PartySize       *int             `json:"partySize,omitempty"`
	Date            *time.Time       `json:"date,omitempty"`
	Time            *TimeOfDay       `json:"time,omitempty"`
	SpecialRequests []string         `json:"specialRequests,omitempty"`
	State           ReservationState `json:"state"`
}

func (r Reservation) IsComplete() bool {
	return r.PartySize != nil && r.Date != nil && r.Time != nil
}

func (r Reservation) InProgress() bool {
	return r.State == ReservationCollecting || r.State == ReservationComplete
}

// Missing lists the required fields that are still unset.
func (r Reservation) Missing() []string {
	var out []string
	if r.PartySize == nil {
		out = append(out, "party size")
	}
	if r.Date == nil {
		out = append(out, "date")
	}
	if r.Time == nil {
		out = append(out, "time")
	}
	return out
}

// Slot combines Date and Time in loc. ok is false for incomplete drafts.
func (r Reservation) Slot(loc *time.Location) (time.Time, bool) {
	if r.Date == nil || r.Time == nil {
		return time.Time{}, false
	}
	d := *r.Date
	return time.Date(d.Year(), d.Month(), d.Day(), r.Time.Hour, r.Time.Minute, 0, 0, loc), true
}

func (r Reservation) Clone() Reservation {
	out := Reservation{State: r.State}
	if r.PartySize != nil {
		v := *r.PartySize
		out.PartySize = &v
	}
	if r.Date != nil {
		v := *r.Date
		out.Date = &v
	}
	if r.Time != nil {
		v := *r.Time
		out.Time = &v
	}
	if len(r.SpecialRequests) > 0 {
		out.SpecialRequests = append([]string(nil), r.SpecialRequests...)
	}
	return out
}
