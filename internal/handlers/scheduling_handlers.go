// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/service"
)

type createRequest struct {
	Actor models.Actor `json:"actor"`
	service.CreateMeetingInput
}

type respondRequest struct {
	Actor      models.Actor     `json:"actor"`
	MeetingUID string           `json:"meeting_uid"`
	Response   service.Response `json:"response"`
}

type rescheduleRequest struct {
	Actor      models.Actor `json:"actor"`
	MeetingUID string       `json:"meeting_uid"`
	service.RescheduleInput
}

// meetingRequest addresses one meeting; Reason is read by cancel and end.
type meetingRequest struct {
	Actor      models.Actor `json:"actor"`
	MeetingUID string       `json:"meeting_uid"`
	Reason     string       `json:"reason,omitempty"`
}

type availabilityRequest struct {
	Actor    models.Actor `json:"actor"`
	UserID   string       `json:"user_id,omitempty"`
	Date     string       `json:"date"`
	Timezone string       `json:"timezone,omitempty"`
}

// envelope is the part every scheduling request shares.
type envelope struct {
	Actor models.Actor `json:"actor"`
}

type operation func(ctx context.Context, msg domain.Message) (Reply, error)

// SchedulingHandler answers scheduling requests on the lfx.scheduling.meeting.* subjects.
type SchedulingHandler struct {
	scheduling *service.SchedulingService
	guard      *service.IdempotencyGuard
}

// NewSchedulingHandler creates a new SchedulingHandler. A nil guard disables reply replay.
func NewSchedulingHandler(scheduling *service.SchedulingService, guard *service.IdempotencyGuard) *SchedulingHandler {
	return &SchedulingHandler{
		scheduling: scheduling,
		guard:      guard,
	}
}

func (h *SchedulingHandler) HandlerReady() bool {
	return h.scheduling != nil && h.scheduling.ServiceReady()
}

// HandleMessage implements domain.MessageHandler interface
func (h *SchedulingHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	ctx, _ = withRequestID(ctx, msg)
	slog.DebugContext(ctx, "handling NATS message")

	mutations := map[string]operation{
		models.MeetingCreateSubject:     h.handleCreate,
		models.MeetingRespondSubject:    h.handleRespond,
		models.MeetingRescheduleSubject: h.handleReschedule,
		models.MeetingCancelSubject:     h.handleCancel,
		models.MeetingStartSubject:      h.handleStart,
		models.MeetingEndSubject:        h.handleEnd,
	}
	queries := map[string]operation{
		models.MeetingJoinPermissionsSubject: h.handleJoinPermissions,
		models.AvailabilitySubject:           h.handleAvailability,
	}

	if handler, ok := queries[subject]; ok {
		reply, err := handler(ctx, msg)
		if err != nil {
			slog.ErrorContext(ctx, "error handling message", logging.ErrKey, err)
			reply = faulted(err)
		}
		respondReply(ctx, msg, reply)
		return
	}

	handler, ok := mutations[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		respondReply(ctx, msg, failed(domain.NewValidationError("unknown subject "+subject)))
		return
	}

	request := service.IdempotentRequest{
		Key:       msg.Header(models.IdempotencyKeyHeader),
		Operation: subject,
		Body:      msg.Data(),
	}
	if request.Key != "" {
		// a malformed body leaves the actor empty; the operation rejects it anyway
		var env envelope
		_ = json.Unmarshal(msg.Data(), &env)
		request.Actor = env.Actor
	}
	response, err := h.guard.Do(ctx, request, 0, func() (int, any, error) {
		reply, err := handler(ctx, msg)
		return reply.Status, reply, err
	})
	if err != nil {
		if domainErr, isDomain := domain.AsDomainError(err); isDomain && errors.Is(err, domain.ErrIdempotencyReuse) {
			respondReply(ctx, msg, failed(domainErr))
			return
		}
		slog.ErrorContext(ctx, "error handling message", logging.ErrKey, err)
		respondReply(ctx, msg, faulted(err))
		return
	}
	if response.Replayed {
		slog.InfoContext(ctx, "replayed reply for idempotency key", "idempotency_key", request.Key)
	}
	respond(ctx, msg, response.Body)
}

func meetingReply(result *service.MeetingResult, err error, status int) (Reply, error) {
	if err != nil {
		return Reply{}, err
	}
	if result.Failure != nil {
		return failed(result.Failure), nil
	}
	return ok(status, result.Meeting), nil
}

func (h *SchedulingHandler) handleCreate(ctx context.Context, msg domain.Message) (Reply, error) {
	var req createRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return badRequest("malformed create request", err), nil
	}
	result, err := h.scheduling.Create(ctx, req.Actor, req.CreateMeetingInput)
	return meetingReply(result, err, http.StatusCreated)
}

func (h *SchedulingHandler) handleRespond(ctx context.Context, msg domain.Message) (Reply, error) {
	var req respondRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return badRequest("malformed respond request", err), nil
	}
	result, err := h.scheduling.Respond(ctx, req.Actor, req.MeetingUID, req.Response)
	return meetingReply(result, err, http.StatusOK)
}

func (h *SchedulingHandler) handleReschedule(ctx context.Context, msg domain.Message) (Reply, error) {
	var req rescheduleRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return badRequest("malformed reschedule request", err), nil
	}
	result, err := h.scheduling.Reschedule(ctx, req.Actor, req.MeetingUID, req.RescheduleInput)
	return meetingReply(result, err, http.StatusOK)
}

func (h *SchedulingHandler) handleCancel(ctx context.Context, msg domain.Message) (Reply, error) {
	var req meetingRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return badRequest("malformed cancel request", err), nil
	}
	result, err := h.scheduling.Cancel(ctx, req.Actor, req.MeetingUID, req.Reason)
	return meetingReply(result, err, http.StatusOK)
}

func (h *SchedulingHandler) handleStart(ctx context.Context, msg domain.Message) (Reply, error) {
	var req meetingRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return badRequest("malformed start request", err), nil
	}
	result, err := h.scheduling.StartMeeting(ctx, req.Actor, req.MeetingUID)
	return meetingReply(result, err, http.StatusOK)
}

func (h *SchedulingHandler) handleEnd(ctx context.Context, msg domain.Message) (Reply, error) {
	var req meetingRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return badRequest("malformed end request", err), nil
	}
	result, err := h.scheduling.EndMeeting(ctx, req.Actor, req.MeetingUID, req.Reason)
	return meetingReply(result, err, http.StatusOK)
}

func (h *SchedulingHandler) handleJoinPermissions(ctx context.Context, msg domain.Message) (Reply, error) {
	var req meetingRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return badRequest("malformed join permissions request", err), nil
	}
	perms, err := h.scheduling.JoinPermissions(ctx, req.Actor, req.MeetingUID)
	if err != nil {
		return Reply{}, err
	}
	if perms.Failure != nil {
		return failed(perms.Failure), nil
	}
	return ok(http.StatusOK, perms), nil
}

func (h *SchedulingHandler) handleAvailability(ctx context.Context, msg domain.Message) (Reply, error) {
	var req availabilityRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return badRequest("malformed availability request", err), nil
	}
	result, err := h.scheduling.GetAvailability(ctx, req.Actor, req.UserID, req.Date, req.Timezone)
	if err != nil {
		return Reply{}, err
	}
	if result.Failure != nil {
		return failed(result.Failure), nil
	}
	return ok(http.StatusOK, result), nil
}
