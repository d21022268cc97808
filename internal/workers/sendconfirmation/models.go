package sendconfirmation

// Input is the subset of the process variables the task reads. The process
// is started with persistence.ProcessVariables.
type Input struct {
	ConfirmationID string `json:"confirmationId"`
	Kind           string `json:"kind"`
	CallerID       string `json:"callerId,omitempty"`
	Summary        string `json:"summary"`
}

type Output struct {
	NotificationStatus string `json:"notificationStatus"`
	NotifiedAt         string `json:"notifiedAt"` // RFC 3339
}

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

const (
	ErrorCodeInvalidInput = "INVALID_INPUT"
)
