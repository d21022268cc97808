package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "restaurant-receptionist/internal/common/errors"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/models"
)

const DefaultReservationsPerSlot = 5

var (
	ErrInsertFailed      = errors.New("DATABASE_INSERT_FAILED")
	ErrInvalidCommitment = errors.New("INVALID_COMMITMENT")
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		caller_id TEXT,
		total_cents BIGINT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id TEXT NOT NULL REFERENCES orders(id),
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price_cents BIGINT NOT NULL,
		line_total_cents BIGINT NOT NULL,
		PRIMARY KEY (order_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		caller_id TEXT,
		party_size INTEGER NOT NULL,
		slot_at TIMESTAMP NOT NULL,
		special_requests TEXT,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reservations_slot_idx ON reservations (slot_at)`,
	`CREATE TABLE IF NOT EXISTS reservation_slots (
		slot_at TIMESTAMP PRIMARY KEY,
		booked INTEGER NOT NULL
	)`,
	`INSERT INTO reservation_slots (slot_at, booked)
		SELECT slot_at, COUNT(*) FROM reservations WHERE status = 'confirmed' GROUP BY slot_at
		ON CONFLICT (slot_at) DO NOTHING`,
}

// claimSlot takes one seat of the slot's capacity, or returns no row when
// the slot is full. The upsert locks the slot row until the transaction
// ends, so concurrent confirmations for one slot are serialized.
const claimSlot = `
	INSERT INTO reservation_slots (slot_at, booked) VALUES ($1, 1)
	ON CONFLICT (slot_at) DO UPDATE SET booked = reservation_slots.booked + 1
	WHERE reservation_slots.booked < $2
	RETURNING booked`

// SQLStore records confirmed orders and reservations. Queries use $N
// placeholders, which both the postgres and sqlite drivers accept.
type SQLStore struct {
	db      *sql.DB
	perSlot int
	logger  logger.Logger
}

func NewSQLStore(db *sql.DB, perSlot int, log logger.Logger) *SQLStore {
	if perSlot <= 0 {
		perSlot = DefaultReservationsPerSlot
	}
	return &SQLStore{
		db:      db,
		perSlot: perSlot,
		logger:  log.With(map[string]interface{}{"component": "sql-store"}),
	}
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.NewQueryExecutionFailedError(firstLine(stmt), err)
		}
	}
	return nil
}

// Commit stores c in one transaction and returns its confirmation id.
func (s *SQLStore) Commit(ctx context.Context, c models.Commitment) (string, error) {
	switch {
	case c.Kind == models.CommitOrder && c.Order != nil && len(c.Order.Items) > 0:
		return s.insertOrder(ctx, c)
	case c.Kind == models.CommitReservation && c.Reservation != nil && c.Reservation.IsComplete():
		return s.insertReservation(ctx, c)
	default:
		return "", fmt.Errorf("%w: kind %q", ErrInvalidCommitment, c.Kind)
	}
}

func (s *SQLStore) insertOrder(ctx context.Context, c models.Commitment) (string, error) {
	id := ConfirmationID(models.CommitOrder)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: begin: %v", ErrInsertFailed, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, session_id, caller_id, total_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, c.SessionID, c.CallerID, int64(c.Order.Total()), "confirmed", createdAt(c),
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert order: %v", ErrInsertFailed, err)
	}

	for i, li := range c.Order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, name, quantity, unit_price_cents, line_total_cents)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, i+1, li.Name, li.Quantity, int64(li.UnitPrice), int64(li.Quantity)*int64(li.UnitPrice),
		)
		if err != nil {
			return "", fmt.Errorf("%w: insert order item %s: %v", ErrInsertFailed, li.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit: %v", ErrInsertFailed, err)
	}

	s.logger.Info("order stored", map[string]interface{}{
		"confirmationId": id,
		"sessionId":      c.SessionID,
		"items":          len(c.Order.Items),
		"total":          c.Order.Total().String(),
	})
	return id, nil
}

func (s *SQLStore) insertReservation(ctx context.Context, c models.Commitment) (string, error) {
	res := c.Reservation
	slot := c.Slot
	if slot.IsZero() {
		slot, _ = res.Slot(time.UTC)
	}
	id := ConfirmationID(models.CommitReservation)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: begin: %v", ErrInsertFailed, err)
	}
	defer tx.Rollback()

	var booked int
	err = tx.QueryRowContext(ctx, claimSlot, slot, s.perSlot).Scan(&booked)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Info("reservation slot full", map[string]interface{}{
			"slot":    slot.Format(time.RFC3339),
			"perSlot": s.perSlot,
		})
		return "", apperrors.NewSlotUnavailableError(slot.Format(time.RFC3339))
	}
	if err != nil {
		return "", fmt.Errorf("%w: capacity check: %v", ErrInsertFailed, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (id, session_id, caller_id, party_size, slot_at, special_requests, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, c.SessionID, c.CallerID, *res.PartySize, slot, strings.Join(res.SpecialRequests, "; "), "confirmed", createdAt(c),
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert reservation: %v", ErrInsertFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit: %v", ErrInsertFailed, err)
	}

	s.logger.Info("reservation stored", map[string]interface{}{
		"confirmationId": id,
		"sessionId":      c.SessionID,
		"partySize":      *res.PartySize,
		"slot":           slot.Format(time.RFC3339),
	})
	return id, nil
}

// ConfirmationID returns "ORD-" or "RES-" followed by eight hex digits.
func ConfirmationID(kind models.CommitmentKind) string {
	prefix := "ORD-"
	if kind == models.CommitReservation {
		prefix = "RES-"
	}
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(raw[:8])
}

func createdAt(c models.Commitment) time.Time {
	if c.CreatedAt.IsZero() {
		return time.Now().UTC()
	}
	return c.CreatedAt.UTC()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
