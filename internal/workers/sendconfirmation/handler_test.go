package sendconfirmation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "restaurant-receptionist/internal/common/errors"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/persistence"
)

type fakeSender struct {
	sent []persistence.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, m persistence.Message) error {
	f.sent = append(f.sent, m)
	return f.err
}

func createMockJob(key int64, retries int32, variables interface{}) entities.Job {
	raw, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      persistence.DefaultOrderProcessID,
		ElementId:          "Activity_SendConfirmation",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            retries,
		Variables:          string(raw),
	}}
}

func TestHandler_ParseInput(t *testing.T) {
	h := NewHandler(Config{}, &fakeSender{}, logger.NewNoOpLogger())

	tests := []struct {
		name      string
		variables interface{}
		wantErr   bool
	}{
		{
			name: "process variables",
			variables: persistence.ProcessVariables{
				ConfirmationID: "ORD-1A2B3C4D",
				Kind:           "order",
				SessionID:      "call-1",
				CallerID:       "+12175550199",
				Summary:        "Order ORD-1A2B3C4D: 2 Falafel Wrap. Total $28.00.",
				TotalCents:     2800,
			},
		},
		{
			name:      "missing confirmation id",
			variables: map[string]interface{}{"summary": "Order"},
			wantErr:   true,
		},
		{
			name:      "missing summary",
			variables: map[string]interface{}{"confirmationId": "RES-00000001"},
			wantErr:   true,
		},
		{
			name:      "not an object",
			variables: []string{"ORD-1"},
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(1, 3, tt.variables))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ORD-1A2B3C4D", input.ConfirmationID)
			assert.Equal(t, "+12175550199", input.CallerID)
		})
	}
}

func TestHandler_Execute(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(Config{Timeout: time.Second}, sender, logger.NewTestLogger(t))
	h.now = func() time.Time { return time.Date(2026, 10, 19, 18, 30, 0, 0, time.UTC) }

	out, err := h.Execute(context.Background(), &Input{
		ConfirmationID: "RES-9F00BEEF",
		Kind:           "reservation",
		CallerID:       "+12175550199",
		Summary:        "Reservation RES-9F00BEEF: table for 4.",
	})

	require.NoError(t, err)
	assert.Equal(t, StatusSent, out.NotificationStatus)
	assert.Equal(t, "2026-10-19T18:30:00Z", out.NotifiedAt)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, persistence.Message{
		ConfirmationID: "RES-9F00BEEF",
		Kind:           "reservation",
		CallerID:       "+12175550199",
		Summary:        "Reservation RES-9F00BEEF: table for 4.",
	}, sender.sent[0])
}

func TestHandler_ExecuteFailure(t *testing.T) {
	sendErr := apperrors.NewNotificationSendFailedError("sms", errors.New("throttled"))
	h := NewHandler(Config{}, &fakeSender{err: sendErr}, logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{ConfirmationID: "ORD-1", Summary: "Order ORD-1."})

	assert.Nil(t, out)
	assert.ErrorIs(t, err, sendErr)
}

func TestHandler_RetriesLeft(t *testing.T) {
	retryable := errors.Join(apperrors.NewNotificationSendFailedError("email", errors.New("throttled")))

	tests := []struct {
		name       string
		maxRetries int
		jobRetries int32
		err        error
		want       int32
	}{
		{"retryable decrements", 0, 3, retryable, 2},
		{"capped by config", 1, 5, retryable, 1},
		{"last attempt", 0, 1, retryable, 0},
		{"non retryable", 3, 3, errors.New("bad template"), 0},
		{"invalid request", 3, 3, apperrors.NewInvalidRequestError("no caller"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Config{MaxRetries: tt.maxRetries}, &fakeSender{}, logger.NewNoOpLogger())
			got := h.retriesLeft(createMockJob(7, tt.jobRetries, map[string]string{}), tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}
