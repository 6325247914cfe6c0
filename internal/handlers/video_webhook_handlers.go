// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/webhook"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/service"
)

// VideoWebhookHandler feeds verified LiveKit webhook bodies to the reconciler.
type VideoWebhookHandler struct {
	reconciler *service.VideoReconciler
}

func NewVideoWebhookHandler(reconciler *service.VideoReconciler) *VideoWebhookHandler {
	return &VideoWebhookHandler{reconciler: reconciler}
}

func (h *VideoWebhookHandler) HandlerReady() bool {
	return h.reconciler != nil && h.reconciler.ServiceReady()
}

// HandleMessage implements [domain.MessageHandler] interface
func (h *VideoWebhookHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	ctx, requestID := withRequestID(ctx, msg)
	slog.DebugContext(ctx, "handling NATS message")

	if subject != models.VideoWebhookSubject {
		slog.WarnContext(ctx, "unknown subject")
		respond(ctx, msg, nil)
		return
	}

	event, err := webhook.DecodeLiveKitWebhook(msg.Data())
	if err != nil {
		slog.WarnContext(ctx, "dropping undecodable webhook", logging.ErrKey, err)
		if domainErr, isDomain := domain.AsDomainError(err); isDomain {
			respondReply(ctx, msg, failed(domainErr))
			return
		}
		respondReply(ctx, msg, badRequest("malformed webhook body", err))
		return
	}
	ctx = logging.AppendCtx(ctx, slog.String(logging.EventKey, event.EventID))
	ctx = logging.AppendCtx(ctx, slog.String("event_type", string(event.EventType)))

	result, err := h.reconciler.Reconcile(ctx, event, requestID)
	if err != nil {
		slog.ErrorContext(ctx, "error reconciling webhook event", logging.ErrKey, err)
		respondReply(ctx, msg, faulted(err))
		return
	}

	slog.InfoContext(ctx, "reconciled webhook event",
		"processed", result.Processed,
		"duplicate", result.Duplicate,
		"reason", result.Reason,
	)
	respondReply(ctx, msg, ok(http.StatusOK, result))
}
