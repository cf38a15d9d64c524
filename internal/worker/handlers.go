package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/farellandr/hadir/internal/services"
	"github.com/hibiken/asynq"
)

type Handlers struct {
	certificates *services.CertificateService
	tokens       *services.TokenService
	logger       *slog.Logger
}

func NewHandlers(svc *services.Services, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{certificates: svc.Certificates, tokens: svc.Tokens, logger: logger}
}

func (h *Handlers) HandleCertificateBulk(ctx context.Context, t *asynq.Task) error {
	var payload CertificateBulkPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	report, err := h.certificates.GenerateBulk(ctx, payload.EventID)
	if errors.Is(err, services.ErrTemplateMissing) || errors.Is(err, services.ErrEventNotFound) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	h.logger.Info("certificate:bulk done",
		"event_id", payload.EventID,
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
	)
	if w := t.ResultWriter(); w != nil {
		if data, err := json.Marshal(report); err == nil {
			w.Write(data)
		}
	}
	return nil
}

func (h *Handlers) HandleTokenPurge(ctx context.Context, t *asynq.Task) error {
	var payload TokenPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	purged, err := h.tokens.PurgeExpired(ctx, payload.Retention)
	if err != nil {
		return err
	}
	h.logger.Info("qrtoken:purge done", "purged", purged, "retention", payload.Retention)
	return nil
}

func NewServeMux(h *Handlers) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCertificateBulk, h.HandleCertificateBulk)
	mux.HandleFunc(TypeTokenPurge, h.HandleTokenPurge)
	return mux
}
