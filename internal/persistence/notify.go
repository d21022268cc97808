package persistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	apperrors "restaurant-receptionist/internal/common/errors"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/models"
)

var e164Re = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// EmailSender is satisfied by *aws.SESClient.
type EmailSender interface {
	SendText(ctx context.Context, from, to, subject, body string) (string, error)
}

// SMSSender is satisfied by *aws.SNSClient.
type SMSSender interface {
	SendSMS(ctx context.Context, phoneNumber, message string) (string, error)
}

type NotifierConfig struct {
	FromEmail    string
	OwnerEmail   string
	BusinessName func() string
}

// Notifier texts the caller a confirmation and emails the owner a copy.
// Either sender may be nil.
type Notifier struct {
	cfg    NotifierConfig
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
}

func NewNotifier(cfg NotifierConfig, email EmailSender, sms SMSSender, log logger.Logger) *Notifier {
	if cfg.BusinessName == nil {
		cfg.BusinessName = func() string { return "the restaurant" }
	}
	return &Notifier{
		cfg:    cfg,
		email:  email,
		sms:    sms,
		logger: log.With(map[string]interface{}{"component": "notifier"}),
	}
}

// Message is what a confirmation notice needs. ProcessVariables carry the
// same fields, so workflow jobs can send it without the full commitment.
type Message struct {
	ConfirmationID string
	Kind           string
	CallerID       string
	Summary        string
}

// Notify attempts every configured channel and joins their failures.
func (n *Notifier) Notify(ctx context.Context, confirmationID string, c models.Commitment) error {
	return n.Send(ctx, Message{
		ConfirmationID: confirmationID,
		Kind:           string(c.Kind),
		CallerID:       c.CallerID,
		Summary:        Describe(confirmationID, c),
	})
}

func (n *Notifier) Send(ctx context.Context, m Message) error {
	var errs []error

	if n.sms != nil && e164Re.MatchString(m.CallerID) {
		msg := fmt.Sprintf("%s: %s", n.cfg.BusinessName(), m.Summary)
		if _, err := n.sms.SendSMS(ctx, m.CallerID, msg); err != nil {
			errs = append(errs, apperrors.NewNotificationSendFailedError("sms", err))
		} else {
			n.logger.Debug("confirmation texted", map[string]interface{}{"confirmationId": m.ConfirmationID})
		}
	}

	if n.email != nil && n.cfg.OwnerEmail != "" && n.cfg.FromEmail != "" {
		subject := fmt.Sprintf("New %s %s", m.Kind, m.ConfirmationID)
		body := m.Summary
		if m.CallerID != "" {
			body += "\nCaller: " + m.CallerID
		}
		if _, err := n.email.SendText(ctx, n.cfg.FromEmail, n.cfg.OwnerEmail, subject, body); err != nil {
			errs = append(errs, apperrors.NewNotificationSendFailedError("email", err))
		}
	}

	return errors.Join(errs...)
}

// Describe renders a one-line summary of a committed order or reservation.
func Describe(confirmationID string, c models.Commitment) string {
	switch {
	case c.Order != nil:
		parts := make([]string, 0, len(c.Order.Items))
		for _, li := range c.Order.Items {
			parts = append(parts, fmt.Sprintf("%d %s", li.Quantity, li.Name))
		}
		return fmt.Sprintf("Order %s: %s. Total %s.", confirmationID, strings.Join(parts, ", "), c.Order.Total())
	case c.Reservation != nil:
		r := c.Reservation
		var b strings.Builder
		fmt.Fprintf(&b, "Reservation %s:", confirmationID)
		if r.PartySize != nil {
			fmt.Fprintf(&b, " table for %d", *r.PartySize)
		}
		if r.Date != nil {
			fmt.Fprintf(&b, " on %s", r.Date.Format("Monday, January 2"))
		}
		if r.Time != nil {
			fmt.Fprintf(&b, " at %s", r.Time.Spoken())
		}
		b.WriteString(".")
		if len(r.SpecialRequests) > 0 {
			fmt.Fprintf(&b, " Requests: %s.", strings.Join(r.SpecialRequests, ", "))
		}
		return b.String()
	}
	return confirmationID
}
