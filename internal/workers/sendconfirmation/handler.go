// Package sendconfirmation is the Zeebe job worker for the
// send-confirmation service task of the order and reservation processes.
package sendconfirmation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "restaurant-receptionist/internal/common/errors"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/persistence"
)

const TaskType = "send-confirmation"

var ErrInvalidInput = errors.New("INVALID_INPUT")

// Sender is satisfied by *persistence.Notifier.
type Sender interface {
	Send(ctx context.Context, m persistence.Message) error
}

type Config struct {
	Timeout    time.Duration
	MaxRetries int
}

type Handler struct {
	config Config
	sender Sender
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config Config, sender Sender, log logger.Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Handler{
		config: config,
		sender: sender,
		logger: log.With(map[string]interface{}{"taskType": TaskType}),
		now:    time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.throwError(client, job, ErrorCodeInvalidInput, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}
	h.completeJob(client, job, output)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, fmt.Errorf("%w: parse variables: %v", ErrInvalidInput, err)
	}
	if input.ConfirmationID == "" {
		return nil, fmt.Errorf("%w: confirmationId is required", ErrInvalidInput)
	}
	if input.Summary == "" {
		return nil, fmt.Errorf("%w: summary is required", ErrInvalidInput)
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	err := h.sender.Send(ctx, persistence.Message{
		ConfirmationID: input.ConfirmationID,
		Kind:           input.Kind,
		CallerID:       input.CallerID,
		Summary:        input.Summary,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("confirmation sent", map[string]interface{}{
		"confirmationId": input.ConfirmationID,
		"kind":           input.Kind,
	})
	return &Output{
		NotificationStatus: StatusSent,
		NotifiedAt:         h.now().UTC().Format(time.RFC3339),
	}, nil
}

// retriesLeft decides what the broker is told on failure. Non-retryable
// errors exhaust the job so an incident is raised at once.
func (h *Handler) retriesLeft(job entities.Job, err error) int32 {
	if !apperrors.IsRetryable(err) {
		return 0
	}
	left := job.Retries - 1
	if limit := int32(h.config.MaxRetries); limit > 0 && left > limit {
		left = limit
	}
	if left < 0 {
		left = 0
	}
	return left
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, cause error) {
	retries := h.retriesLeft(job, cause)
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":  job.Key,
		"retries": retries,
		"error":   cause.Error(),
	})

	_, err := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(cause.Error()).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send fail job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) throwError(client worker.JobClient, job entities.Job, code, message string) {
	h.logger.Error("job rejected", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    code,
		"errorMessage": message,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(code).
		ErrorMessage(message).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}
