package worker

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TypeCertificateBulk = "certificate:bulk"
	TypeTokenPurge      = "qrtoken:purge"
)

type CertificateBulkPayload struct {
	EventID uuid.UUID `json:"event_id"`
}

type TokenPurgePayload struct {
	Retention time.Duration `json:"retention"`
}

// Enqueuer is the part of *asynq.Client the HTTP layer uses.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func NewCertificateBulkTask(eventID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(CertificateBulkPayload{EventID: eventID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCertificateBulk, payload, asynq.MaxRetry(3), asynq.Timeout(30*time.Minute)), nil
}

func NewTokenPurgeTask(retention time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(TokenPurgePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTokenPurge, payload, asynq.MaxRetry(1)), nil
}
