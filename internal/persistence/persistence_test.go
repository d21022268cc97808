package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-receptionist/internal/common/config"
	"restaurant-receptionist/internal/common/database"
	apperrors "restaurant-receptionist/internal/common/errors"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/facts/factstest"
	"restaurant-receptionist/internal/models"
)

var idRe = regexp.MustCompile(`^(ORD|RES)-[0-9A-F]{8}$`)

func orderCommitment(t *testing.T) models.Commitment {
	t.Helper()
	catalog := factstest.Snapshot().Catalog()
	wrap, ok := catalog.Lookup("Falafel Wrap")
	require.True(t, ok)
	coke, ok := catalog.Lookup("Coke")
	require.True(t, ok)
	order := models.Order{
		State: models.OrderSummarizing,
		Items: []models.LineItem{models.NewLineItem(3, wrap), models.NewLineItem(2, coke)},
	}
	return models.Commitment{
		Kind:      models.CommitOrder,
		SessionID: "sess-1",
		CallerID:  "+12175550199",
		Order:     &order,
		Total:     order.Total(),
		CreatedAt: time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC),
	}
}

func reservationCommitment() models.Commitment {
	party := 4
	date := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	at := models.TimeOfDay{Hour: 19}
	res := models.Reservation{
		PartySize:       &party,
		Date:            &date,
		Time:            &at,
		SpecialRequests: []string{"birthday celebration", "high chair"},
		State:           models.ReservationComplete,
	}
	slot, _ := res.Slot(time.UTC)
	return models.Commitment{
		Kind:        models.CommitReservation,
		SessionID:   "sess-2",
		CallerID:    "web-visitor",
		Reservation: &res,
		Slot:        slot,
		CreatedAt:   time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC),
	}
}

func TestConfirmationID(t *testing.T) {
	ord := ConfirmationID(models.CommitOrder)
	res := ConfirmationID(models.CommitReservation)

	assert.Regexp(t, idRe, ord)
	assert.Regexp(t, idRe, res)
	assert.Equal(t, "ORD-", ord[:4])
	assert.Equal(t, "RES-", res[:4])
	assert.NotEqual(t, ord, ConfirmationID(models.CommitOrder))
}

func TestSQLStore_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS orders`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS order_items`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS reservations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS reservations_slot_idx`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS reservation_slots`).WillReturnError(errors.New("permission denied"))

	err = NewSQLStore(db, 0, logger.NewTestLogger(t)).EnsureSchema(context.Background())

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CommitOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(sqlmock.AnyArg(), "sess-1", "+12175550199", int64(4900), "confirmed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(sqlmock.AnyArg(), 1, "Falafel Wrap", 3, int64(1400), int64(4200)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(sqlmock.AnyArg(), 2, "Coke", 2, int64(350), int64(700)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	id, err := NewSQLStore(db, 0, logger.NewTestLogger(t)).Commit(context.Background(), orderCommitment(t))

	require.NoError(t, err)
	assert.Regexp(t, `^ORD-`, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CommitOrder_ItemInsertRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO order_items`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	id, err := NewSQLStore(db, 0, logger.NewTestLogger(t)).Commit(context.Background(), orderCommitment(t))

	assert.Empty(t, id)
	assert.ErrorIs(t, err, ErrInsertFailed)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CommitReservation(t *testing.T) {
	c := reservationCommitment()

	tests := []struct {
		name    string
		claimed *sqlmock.Rows
		wantErr apperrors.ErrorCode
	}{
		{"slot has room", sqlmock.NewRows([]string{"booked"}).AddRow(5), ""},
		{"slot full", sqlmock.NewRows([]string{"booked"}), apperrors.ErrCodeSlotUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectBegin()
			mock.ExpectQuery(`INSERT INTO reservation_slots`).
				WithArgs(c.Slot, 5).
				WillReturnRows(tt.claimed)
			if tt.wantErr == "" {
				mock.ExpectExec(`INSERT INTO reservations`).
					WithArgs(sqlmock.AnyArg(), "sess-2", "web-visitor", 4, c.Slot,
						"birthday celebration; high chair", "confirmed", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			id, err := NewSQLStore(db, 5, logger.NewTestLogger(t)).Commit(context.Background(), c)

			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Regexp(t, `^RES-`, id)
			} else {
				var stdErr *apperrors.StandardError
				require.ErrorAs(t, err, &stdErr)
				assert.Equal(t, tt.wantErr, stdErr.Code)
				assert.Empty(t, id)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLStore_InvalidCommitment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewSQLStore(db, 0, logger.NewNoOpLogger())

	incomplete := reservationCommitment()
	incomplete.Reservation.Time = nil

	tests := []struct {
		name string
		c    models.Commitment
	}{
		{"empty order", models.Commitment{Kind: models.CommitOrder, Order: &models.Order{}}},
		{"missing order", models.Commitment{Kind: models.CommitOrder}},
		{"incomplete reservation", incomplete},
		{"unknown kind", models.Commitment{Kind: "catering"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Commit(context.Background(), tt.c)
			assert.ErrorIs(t, err, ErrInvalidCommitment)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SQLite(t *testing.T) {
	client, err := database.NewSQLite(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "receptionist.db")})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	store := NewSQLStore(client.DB, 2, logger.NewTestLogger(t))
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx), "schema creation is idempotent")

	orderID, err := store.Commit(ctx, orderCommitment(t))
	require.NoError(t, err)

	var items int
	require.NoError(t, client.QueryRow(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, orderID).Scan(&items))
	assert.Equal(t, 2, items)

	var total int64
	require.NoError(t, client.QueryRow(ctx, `SELECT total_cents FROM orders WHERE id = $1`, orderID).Scan(&total))
	assert.Equal(t, int64(4900), total)

	c := reservationCommitment()
	for i := 0; i < 2; i++ {
		_, err := store.Commit(ctx, c)
		require.NoError(t, err)
	}
	_, err = store.Commit(ctx, c)
	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeSlotUnavailable, stdErr.Code)

	other := reservationCommitment()
	other.Slot = other.Slot.Add(30 * time.Minute)
	_, err = store.Commit(ctx, other)
	assert.NoError(t, err, "a different slot has its own capacity")
}

func TestSQLStore_ConcurrentReservationsRespectCapacity(t *testing.T) {
	client, err := database.NewSQLite(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "receptionist.db")})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	store := NewSQLStore(client.DB, 2, logger.NewNoOpLogger())
	require.NoError(t, store.EnsureSchema(ctx))

	var (
		wg            sync.WaitGroup
		mu            sync.Mutex
		booked, full  int
		otherFailures []error
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Commit(ctx, reservationCommitment())
			mu.Lock()
			defer mu.Unlock()
			var stdErr *apperrors.StandardError
			switch {
			case err == nil:
				booked++
			case errors.As(err, &stdErr) && stdErr.Code == apperrors.ErrCodeSlotUnavailable:
				full++
			default:
				otherFailures = append(otherFailures, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, otherFailures)
	assert.Equal(t, 2, booked)
	assert.Equal(t, 4, full)

	var rows int
	require.NoError(t, client.QueryRow(ctx, `SELECT COUNT(*) FROM reservations`).Scan(&rows))
	assert.Equal(t, 2, rows)
}

type fakeStore struct {
	id    string
	err   error
	calls int
}

func (f *fakeStore) Commit(context.Context, models.Commitment) (string, error) {
	f.calls++
	return f.id, f.err
}

type fakeProcessClient struct {
	mu        sync.Mutex
	processes []string
	variables []interface{}
	err       error
}

func (f *fakeProcessClient) StartProcess(_ context.Context, id string, vars interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processes = append(f.processes, id)
	f.variables = append(f.variables, vars)
	return 2251799813685249, f.err
}

type sent struct {
	to, subject, body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSender) SendText(_ context.Context, _, to, subject, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to, subject: subject, body: body})
	return "msg-1", f.err
}

func (f *fakeSender) SendSMS(_ context.Context, phone, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: phone, body: message})
	return "msg-2", f.err
}

func TestPipeline_Commit(t *testing.T) {
	log := logger.NewTestLogger(t)
	store := &fakeStore{id: "ORD-1A2B3C4D"}
	proc := &fakeProcessClient{}
	email, sms := &fakeSender{}, &fakeSender{}
	notifier := NewNotifier(NotifierConfig{
		FromEmail:    "receptionist@cedargarden.example",
		OwnerEmail:   "owner@cedargarden.example",
		BusinessName: factstest.Snapshot().BusinessName,
	}, email, sms, log)

	p := NewPipeline(store, log,
		WithProcessStarter(NewProcessStarter(proc, "", "", log)),
		WithNotifier(notifier),
	)

	id, err := p.Commit(context.Background(), orderCommitment(t))
	p.Wait()

	require.NoError(t, err)
	assert.Equal(t, "ORD-1A2B3C4D", id)

	require.Len(t, proc.processes, 1)
	assert.Equal(t, DefaultOrderProcessID, proc.processes[0])
	vars := proc.variables[0].(ProcessVariables)
	assert.Equal(t, "ORD-1A2B3C4D", vars.ConfirmationID)
	assert.Equal(t, int64(4900), vars.TotalCents)

	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+12175550199", sms.sent[0].to)
	assert.Equal(t, "Cedar Garden Lebanese Kitchen: Order ORD-1A2B3C4D: 3 Falafel Wrap, 2 Coke. Total $49.00.", sms.sent[0].body)

	require.Len(t, email.sent, 1)
	assert.Equal(t, "owner@cedargarden.example", email.sent[0].to)
	assert.Equal(t, "New order ORD-1A2B3C4D", email.sent[0].subject)
}

func TestPipeline_FollowUpFailuresDoNotFailCommit(t *testing.T) {
	log := logger.NewTestLogger(t)
	proc := &fakeProcessClient{err: errors.New("unavailable")}
	email := &fakeSender{err: errors.New("throttled")}

	p := NewPipeline(&fakeStore{id: "RES-0000AAAA"}, log,
		WithProcessStarter(NewProcessStarter(proc, "", "table-booking", log)),
		WithNotifier(NewNotifier(NotifierConfig{FromEmail: "a@x.example", OwnerEmail: "b@x.example"}, email, nil, log)),
	)

	id, err := p.Commit(context.Background(), reservationCommitment())
	p.Wait()

	require.NoError(t, err)
	assert.Equal(t, "RES-0000AAAA", id)
	assert.Equal(t, []string{"table-booking"}, proc.processes)
	assert.Len(t, email.sent, 1, "notification still attempted after process failure")
}

func TestPipeline_StoreFailureSkipsFollowUps(t *testing.T) {
	proc := &fakeProcessClient{}
	slotErr := apperrors.NewSlotUnavailableError("2026-10-20T19:00:00Z")
	p := NewPipeline(&fakeStore{err: slotErr}, logger.NewNoOpLogger(),
		WithProcessStarter(NewProcessStarter(proc, "", "", logger.NewNoOpLogger())))

	id, err := p.Commit(context.Background(), reservationCommitment())
	p.Wait()

	assert.Empty(t, id)
	assert.ErrorIs(t, err, slotErr)
	assert.Empty(t, proc.processes)
}

func TestNotifier_SkipsNonPhoneCaller(t *testing.T) {
	sms := &fakeSender{}
	n := NewNotifier(NotifierConfig{}, nil, sms, logger.NewNoOpLogger())

	require.NoError(t, n.Notify(context.Background(), "RES-1", reservationCommitment()))
	assert.Empty(t, sms.sent)
}

func TestNotifier_JoinsFailures(t *testing.T) {
	sms := &fakeSender{err: errors.New("opted out")}
	n := NewNotifier(NotifierConfig{}, nil, sms, logger.NewNoOpLogger())

	err := n.Notify(context.Background(), "ORD-1", orderCommitment(t))

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeNotificationFail, stdErr.Code)
}

func TestDescribe_Reservation(t *testing.T) {
	got := Describe("RES-9F00BEEF", reservationCommitment())

	assert.Equal(t, "Reservation RES-9F00BEEF: table for 4 on Tuesday, October 20 at 7:00 PM. Requests: birthday celebration, high chair.", got)
}

func TestNotifier_SendFromProcessVariables(t *testing.T) {
	email, sms := &fakeSender{}, &fakeSender{}
	n := NewNotifier(NotifierConfig{FromEmail: "a@x.example", OwnerEmail: "b@x.example"}, email, sms, logger.NewNoOpLogger())
	vars := Variables("ORD-1A2B3C4D", orderCommitment(t))

	err := n.Send(context.Background(), Message{
		ConfirmationID: vars.ConfirmationID,
		Kind:           vars.Kind,
		CallerID:       vars.CallerID,
		Summary:        vars.Summary,
	})

	require.NoError(t, err)
	require.Len(t, sms.sent, 1)
	assert.Equal(t, "the restaurant: "+vars.Summary, sms.sent[0].body)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "New order ORD-1A2B3C4D", email.sent[0].subject)
	assert.Contains(t, email.sent[0].body, "Caller: +12175550199")
}
