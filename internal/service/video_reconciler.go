// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
)

// ReconcileResult reports what happened to one webhook event.
type ReconcileResult struct {
	Processed  bool   `json:"processed"`
	Duplicate  bool   `json:"duplicate"`
	MeetingUID string `json:"meeting_uid,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// VideoReconciler applies provider webhook events to meeting and video session
// state. Every rule is conditional on current state, so replays and out of order
// delivery leave state unchanged.
type VideoReconciler struct {
	MeetingRepository domain.MeetingRepository
	SessionRepository domain.VideoSessionRepository
	EventRepository   domain.LifecycleEventRepository
	Idempotency       domain.IdempotencyStore
	Reminders         domain.ReminderScheduler
	Config            ServiceConfig
	Now               func() time.Time
}

var _ domain.SessionEnder = (*VideoReconciler)(nil)

// NewVideoReconciler creates a new VideoReconciler.
func NewVideoReconciler(
	meetingRepository domain.MeetingRepository,
	sessionRepository domain.VideoSessionRepository,
	eventRepository domain.LifecycleEventRepository,
	idempotency domain.IdempotencyStore,
	reminders domain.ReminderScheduler,
	config ServiceConfig,
) *VideoReconciler {
	return &VideoReconciler{
		MeetingRepository: meetingRepository,
		SessionRepository: sessionRepository,
		EventRepository:   eventRepository,
		Idempotency:       idempotency,
		Reminders:         reminders,
		Config:            config.withDefaults(),
		Now:               time.Now,
	}
}

// ServiceReady checks if the service is ready for use.
func (r *VideoReconciler) ServiceReady() bool {
	return r.MeetingRepository != nil &&
		r.SessionRepository != nil &&
		r.EventRepository != nil &&
		r.Idempotency != nil &&
		r.Reminders != nil
}

func (r *VideoReconciler) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

// Reconcile applies event once. A repeated event id is answered as a duplicate
// without side effects. Events for unknown rooms are dropped without error so the
// provider stops redelivering them. Infrastructure errors leave the event
// unrecorded so redelivery retries it.
func (r *VideoReconciler) Reconcile(ctx context.Context, event models.VideoWebhookEvent, correlationID string) (*ReconcileResult, error) {
	if !r.ServiceReady() {
		slog.ErrorContext(ctx, "video reconciler not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("video reconciler not initialized", domain.ErrServiceUnavailable)
	}
	if event.EventID == "" {
		return nil, domain.NewValidationError("webhook event id is required", domain.ErrValidationFailed)
	}

	ctx = logging.AppendCtx(ctx, slog.String(logging.EventKey, event.EventID))
	ctx = logging.AppendCtx(ctx, slog.String("event_type", string(event.EventType)))
	key := models.WebhookIdempotencyKey(event.EventID)

	record, err := r.Idempotency.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record != nil && record.Scope == models.IdempotencyScopeVideoWebhook {
		slog.InfoContext(ctx, "duplicate webhook event")
		return &ReconcileResult{Duplicate: true, Reason: "duplicate event"}, nil
	}

	if !event.EventType.IsKnown() {
		slog.DebugContext(ctx, "ignoring unsupported webhook event")
		return r.finish(ctx, key, &ReconcileResult{Reason: "unsupported event type"})
	}
	if event.Room.Name == "" {
		slog.WarnContext(ctx, "webhook event has no room name")
		return r.finish(ctx, key, &ReconcileResult{Reason: "missing room name"})
	}

	ctx = logging.AppendCtx(ctx, slog.String("room", event.Room.Name))
	meeting, err := r.MeetingRepository.GetByRoomName(ctx, event.Room.Name)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			slog.WarnContext(ctx, "dropping webhook event for unknown room")
			return &ReconcileResult{Reason: "unknown room"}, nil
		}
		return nil, err
	}
	ctx = logging.AppendCtx(ctx, slog.String(logging.MeetingKey, meeting.UID))

	at := event.CreatedAt
	if at.IsZero() {
		at = r.now()
	}
	at = at.UTC()

	session, err := r.ensureSession(ctx, meeting)
	if err != nil {
		return nil, err
	}

	var changes []string
	switch event.EventType {
	case models.VideoEventRoomStarted:
		changes, err = r.roomStarted(ctx, meeting, session, event, at, correlationID)
	case models.VideoEventParticipantJoined, models.VideoEventParticipantLeft:
		changes, err = r.participantChanged(ctx, meeting, event, at, correlationID)
	case models.VideoEventRoomFinished:
		changes, err = r.roomFinished(ctx, meeting, at, correlationID)
	}
	if err != nil {
		slog.ErrorContext(ctx, "error reconciling webhook event", logging.ErrKey, err)
		return nil, err
	}

	r.recordEvent(ctx, meeting, models.EventWebhookReconciled, "", correlationID, map[string]any{
		"provider_event_id": event.EventID,
		"event_type":        string(event.EventType),
		"changes":           changes,
	})
	return r.finish(ctx, key, &ReconcileResult{Processed: true, MeetingUID: meeting.UID})
}

// finish records the idempotency key and returns result.
func (r *VideoReconciler) finish(ctx context.Context, key string, result *ReconcileResult) (*ReconcileResult, error) {
	body, err := json.Marshal(result)
	if err != nil {
		return nil, domain.NewInternalError("failed to marshal reconcile result", err)
	}
	now := r.now()
	err = r.Idempotency.Save(ctx, &models.IdempotencyRecord{
		Key:        key,
		Scope:      models.IdempotencyScopeVideoWebhook,
		Response:   body,
		StatusCode: 200,
		ExpiresAt:  now.Add(models.WebhookIdempotencyTTL),
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ensureSession returns the meeting's session, creating it on first use.
func (r *VideoReconciler) ensureSession(ctx context.Context, meeting *models.Meeting) (*models.VideoSession, error) {
	session, _, err := r.SessionRepository.GetWithRevision(ctx, meeting.UID)
	if err == nil {
		return session, nil
	}
	if domain.GetErrorType(err) != domain.ErrorTypeNotFound {
		return nil, err
	}

	now := r.now()
	session = &models.VideoSession{
		MeetingUID:       meeting.UID,
		ProviderRoomName: meeting.ProviderRoomName,
		Status:           models.VideoSessionCreated,
		CreatedAt:        &now,
		UpdatedAt:        &now,
	}
	if err := r.SessionRepository.Create(ctx, session); err != nil {
		if domain.GetErrorType(err) != domain.ErrorTypeConflict {
			return nil, err
		}
		// created concurrently by another event
		session, _, err = r.SessionRepository.GetWithRevision(ctx, meeting.UID)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
	slog.DebugContext(ctx, "created video session")
	return session, nil
}

// mutateSession applies change under the session's revision, retrying lost races.
func (r *VideoReconciler) mutateSession(ctx context.Context, meetingUID string, change func(*models.VideoSession) bool) (bool, error) {
	return retryOnConflict(ctx, r.Config, func() (bool, error) {
		session, revision, err := r.SessionRepository.GetWithRevision(ctx, meetingUID)
		if err != nil {
			return false, err
		}
		if !change(session) {
			return false, nil
		}
		now := r.now()
		session.UpdatedAt = &now
		if err := r.SessionRepository.Update(ctx, session, revision); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (r *VideoReconciler) roomStarted(
	ctx context.Context,
	meeting *models.Meeting,
	session *models.VideoSession,
	event models.VideoWebhookEvent,
	at time.Time,
	correlationID string,
) ([]string, error) {
	if session.Status != models.VideoSessionCreated {
		return nil, nil
	}
	changed, err := r.mutateSession(ctx, meeting.UID, func(s *models.VideoSession) bool {
		if s.Status != models.VideoSessionCreated {
			return false
		}
		s.Status = models.VideoSessionActive
		s.StartedAt = &at
		s.ProviderSessionID = event.Room.SID
		return true
	})
	if err != nil || !changed {
		return nil, err
	}

	slog.InfoContext(ctx, "video session active")
	r.recordEvent(ctx, meeting, models.EventRoomStarted, "", correlationID, map[string]any{"provider_session_id": event.Room.SID})
	return []string{"session_active"}, nil
}

func (r *VideoReconciler) participantChanged(
	ctx context.Context,
	meeting *models.Meeting,
	event models.VideoWebhookEvent,
	at time.Time,
	correlationID string,
) ([]string, error) {
	if event.Participant == nil || !meeting.IsParticipant(event.Participant.Identity) {
		slog.WarnContext(ctx, "skipping webhook for unresolved participant")
		return nil, nil
	}
	userID := event.Participant.Identity
	joined := event.EventType == models.VideoEventParticipantJoined

	started := false
	updated, changed, err := mutateMeeting(ctx, r.MeetingRepository, r.Config, r.now, meeting.UID, func(m *models.Meeting) (bool, error) {
		started = false
		p := m.Participant(userID)
		if p == nil {
			return false, nil
		}
		if joined {
			p.JoinedAt = &at
			p.AttendanceStatus = models.AttendanceJoined
			if m.Status == models.MeetingStatusConfirmed && models.CanTransition(m.Status, models.MeetingStatusInProgress) {
				m.Status = models.MeetingStatusInProgress
				m.StartedAt = &at
				started = true
			}
		} else {
			p.LeftAt = &at
			p.AttendanceStatus = models.AttendanceLeft
		}
		return true, nil
	})
	if err != nil || !changed {
		return nil, err
	}

	payload := map[string]any{"user_id": userID}
	if event.Participant.SID != "" {
		payload["provider_participant_id"] = event.Participant.SID
	}
	if !joined {
		r.recordEvent(ctx, updated, models.EventParticipantLeft, userID, correlationID, payload)
		return []string{"participant_left"}, nil
	}

	r.recordEvent(ctx, updated, models.EventParticipantJoined, userID, correlationID, payload)
	changes := []string{"participant_joined"}
	if started {
		slog.InfoContext(ctx, "meeting started by first join")
		r.recordEvent(ctx, updated, models.EventMeetingStarted, userID, correlationID, nil)
		changes = append(changes, "meeting_in_progress")
	}
	return changes, nil
}

func (r *VideoReconciler) roomFinished(ctx context.Context, meeting *models.Meeting, at time.Time, correlationID string) ([]string, error) {
	var changes []string

	updated, completed, err := mutateMeeting(ctx, r.MeetingRepository, r.Config, r.now, meeting.UID, func(m *models.Meeting) (bool, error) {
		if m.Status != models.MeetingStatusInProgress {
			return false, nil
		}
		m.Status = models.MeetingStatusCompleted
		m.EndedAt = &at
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if completed {
		slog.InfoContext(ctx, "meeting completed by room finish")
		if _, err := r.Reminders.CancelReminders(ctx, meeting.UID); err != nil {
			slog.WarnContext(ctx, "error canceling reminders", logging.ErrKey, err)
		}
		r.recordEvent(ctx, updated, models.EventMeetingEnded, "", correlationID, map[string]any{"reason": "room_finished"})
		changes = append(changes, "meeting_completed")
	}

	ended, err := r.mutateSession(ctx, meeting.UID, func(s *models.VideoSession) bool {
		if s.Status != models.VideoSessionActive {
			return false
		}
		s.Status = models.VideoSessionEnded
		s.EndedAt = &at
		return true
	})
	if err != nil {
		return changes, err
	}
	if ended {
		changes = append(changes, "session_ended")
	}
	return changes, nil
}

// EndSessions ends the meeting's open video session, if any.
func (r *VideoReconciler) EndSessions(ctx context.Context, meetingUID string, at time.Time) (int, error) {
	ended, err := r.mutateSession(ctx, meetingUID, func(s *models.VideoSession) bool {
		if !s.IsOpen() {
			return false
		}
		s.Status = models.VideoSessionEnded
		s.EndedAt = &at
		return true
	})
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return 0, nil
		}
		return 0, err
	}
	if !ended {
		return 0, nil
	}
	return 1, nil
}

func (r *VideoReconciler) recordEvent(
	ctx context.Context,
	meeting *models.Meeting,
	eventType models.LifecycleEventType,
	actorID, correlationID string,
	payload map[string]any,
) {
	err := r.EventRepository.Append(ctx, &models.LifecycleEvent{
		MeetingUID:    meeting.UID,
		TenantID:      meeting.TenantID,
		ActorUserID:   actorID,
		Type:          eventType,
		CorrelationID: correlationID,
		Payload:       payload,
		CreatedAt:     r.now(),
	})
	if err != nil {
		slog.WarnContext(ctx, "error recording lifecycle event", logging.ErrKey, err, "event_type", eventType)
	}
}
