// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package handlers adapts NATS messages to the scheduling services.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/constants"
)

// ReplyError is the error part of a reply.
type ReplyError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

// Reply is the JSON body answered on request/reply subjects. Exactly one of Data
// and Error is set.
type Reply struct {
	Status int         `json:"status"`
	Data   any         `json:"data,omitempty"`
	Error  *ReplyError `json:"error,omitempty"`
}

func ok(status int, data any) Reply {
	return Reply{Status: status, Data: data}
}

func failed(err *domain.DomainError) Reply {
	return Reply{
		Status: statusCode(err.Type),
		Error: &ReplyError{
			Type:    err.Type.String(),
			Message: err.Message,
			From:    err.From,
			To:      err.To,
		},
	}
}

// faulted answers an infrastructure error without leaking its details.
func faulted(err error) Reply {
	errorType := domain.GetErrorType(err)
	message := "internal error"
	if errorType == domain.ErrorTypeUnavailable {
		message = "service unavailable, try again"
	}
	return Reply{Status: statusCode(errorType), Error: &ReplyError{Type: errorType.String(), Message: message}}
}

func statusCode(errorType domain.ErrorType) int {
	switch errorType {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeAuthorization:
		return http.StatusForbidden
	case domain.ErrorTypeConflict:
		return http.StatusConflict
	case domain.ErrorTypeInvalidTransition:
		return http.StatusUnprocessableEntity
	case domain.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(message string, err error) Reply {
	return failed(domain.NewValidationError(message, err))
}

// withRequestID carries the caller's correlation id into logs and outbound messages.
func withRequestID(ctx context.Context, msg domain.Message) (context.Context, string) {
	requestID := msg.Header(constants.RequestIDHeader)
	if requestID == "" {
		return ctx, ""
	}
	ctx = context.WithValue(ctx, constants.RequestIDContextID, requestID)
	ctx = logging.AppendCtx(ctx, slog.String("request_id", requestID))
	return ctx, requestID
}

func respond(ctx context.Context, msg domain.Message, data []byte) {
	if !msg.HasReply() {
		slog.DebugContext(ctx, "handled NATS message (no reply expected)")
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
		return
	}
	slog.DebugContext(ctx, "responded to NATS message")
}

func respondReply(ctx context.Context, msg domain.Message, reply Reply) {
	data, err := json.Marshal(reply)
	if err != nil {
		slog.ErrorContext(ctx, "error marshaling reply", logging.ErrKey, err)
		respond(ctx, msg, nil)
		return
	}
	respond(ctx, msg, data)
}
