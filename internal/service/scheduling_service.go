// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/timeslot"
)

const tracerName = "github.com/linuxfoundation/lfx-v2-scheduling-service/internal/service"

// systemActor is recorded as the actor of changes made by background scans.
const systemActor = "system"

// CreateMeetingInput is a new meeting request.
type CreateMeetingInput struct {
	RequesteeIDs    []string  `json:"requestee_ids"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	ProposedAt      time.Time `json:"proposed_at"`
	DurationMinutes int       `json:"duration_minutes"`
	BufferMinutes   int       `json:"buffer_minutes"`
	Timezone        string    `json:"timezone"`
	Location        string    `json:"location,omitempty"`
	MeetingURL      string    `json:"meeting_url,omitempty"`
	// Roles overrides the default role of a participant, keyed by user ID. The
	// requester defaults to HOST and requestees to CANDIDATE.
	Roles map[string]models.ParticipantRole `json:"roles,omitempty"`
}

// Response is a requestee's answer to a pending proposal.
type Response string

const (
	ResponseAccept Response = "accept"
	ResponseDeny   Response = "deny"
)

// RescheduleInput proposes a new time for an existing meeting.
type RescheduleInput struct {
	NewProposedAt      time.Time `json:"new_proposed_at"`
	NewDurationMinutes *int      `json:"new_duration_minutes,omitempty"`
	Reason             string    `json:"reason,omitempty"`
}

// SchedulingService owns meeting request writes: create, respond, reschedule,
// cancel, start and end, plus availability and join checks.
type SchedulingService struct {
	MeetingRepository domain.MeetingRepository
	EventRepository   domain.LifecycleEventRepository
	Reminders         domain.ReminderScheduler
	Sessions          domain.SessionEnder
	MessageBuilder    domain.MessageBuilder
	Calendar          domain.ICSGenerator
	Config            ServiceConfig
	Now               func() time.Time
}

// NewSchedulingService creates a new SchedulingService. sessions and calendar may
// be nil.
func NewSchedulingService(
	meetingRepository domain.MeetingRepository,
	eventRepository domain.LifecycleEventRepository,
	reminders domain.ReminderScheduler,
	sessions domain.SessionEnder,
	messageBuilder domain.MessageBuilder,
	calendar domain.ICSGenerator,
	config ServiceConfig,
) *SchedulingService {
	return &SchedulingService{
		MeetingRepository: meetingRepository,
		EventRepository:   eventRepository,
		Reminders:         reminders,
		Sessions:          sessions,
		MessageBuilder:    messageBuilder,
		Calendar:          calendar,
		Config:            config.withDefaults(),
		Now:               time.Now,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *SchedulingService) ServiceReady() bool {
	return s.MeetingRepository != nil &&
		s.EventRepository != nil &&
		s.Reminders != nil &&
		s.MessageBuilder != nil
}

func (s *SchedulingService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *SchedulingService) notReady(ctx context.Context) error {
	slog.ErrorContext(ctx, "scheduling service not initialized", logging.PriorityCritical())
	return domain.NewUnavailableError("scheduling service not initialized", domain.ErrServiceUnavailable)
}

func (s *SchedulingService) startSpan(ctx context.Context, operation string, actor models.Actor, meetingUID string) (context.Context, trace.Span) {
	ctx = logging.AppendCtx(ctx, slog.String(logging.ActorKey, actor.UserID))
	ctx = logging.AppendCtx(ctx, slog.String(logging.TenantKey, actor.TenantID))
	attrs := []attribute.KeyValue{
		attribute.String("scheduling.operation", operation),
		attribute.String("scheduling.tenant_id", actor.TenantID),
	}
	if meetingUID != "" {
		ctx = logging.AppendCtx(ctx, slog.String(logging.MeetingKey, meetingUID))
		attrs = append(attrs, attribute.String("scheduling.meeting_uid", meetingUID))
	}
	return otel.Tracer(tracerName).Start(ctx, "scheduling."+operation, trace.WithAttributes(attrs...))
}

// finish closes span, marking infrastructure faults and business failures.
func finish(span trace.Span, result *MeetingResult, err error) {
	defer span.End()
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case result != nil && result.Failure != nil:
		span.SetAttributes(attribute.String("scheduling.failure", result.Failure.Type.String()))
	}
}

func (s *SchedulingService) mutate(ctx context.Context, meetingUID string, change meetingChange) (*models.Meeting, error) {
	meeting, _, err := mutateMeeting(ctx, s.MeetingRepository, s.Config, s.now, meetingUID, change)
	return meeting, err
}

func invalid(message string) *domain.DomainError {
	return domain.NewValidationError(message, domain.ErrValidationFailed)
}

// Create validates and stores a new meeting request in REQUESTED.
func (s *SchedulingService) Create(ctx context.Context, actor models.Actor, input CreateMeetingInput) (result *MeetingResult, err error) {
	ctx, span := s.startSpan(ctx, "create", actor, "")
	defer func() { finish(span, result, err) }()

	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}

	now := s.now()
	requestees, failure := validateCreate(actor, &input, now)
	if failure != nil {
		slog.WarnContext(ctx, "rejected meeting request", logging.ErrKey, failure)
		return &MeetingResult{Failure: failure}, nil
	}

	start := input.ProposedAt.UTC()
	end := start.Add(time.Duration(input.DurationMinutes) * time.Minute)
	checked := requestees
	if s.Config.StrictConflicts {
		checked = append([]string{actor.UserID}, requestees...)
	}
	if err := s.checkConflicts(ctx, actor.TenantID, checked, "", start, end, input.BufferMinutes); err != nil {
		return meetingOutcome(nil, err)
	}

	meeting := &models.Meeting{
		UID:           uuid.NewString(),
		TenantID:      actor.TenantID,
		RequesterID:   actor.UserID,
		Title:         strings.TrimSpace(input.Title),
		Description:   input.Description,
		Timezone:      input.Timezone,
		BufferMinutes: input.BufferMinutes,
		Status:        models.MeetingStatusRequested,
		Location:      input.Location,
		MeetingURL:    input.MeetingURL,
		ProposedBy:    actor.UserID,
		CreatedAt:     &now,
		UpdatedAt:     &now,
	}
	meeting.SetSchedule(start, input.DurationMinutes)
	meeting.ProviderRoomName = models.RoomName(meeting.TenantID, meeting.UID)
	meeting.Participants = append(meeting.Participants, models.Participant{
		MeetingUID:       meeting.UID,
		UserID:           actor.UserID,
		Role:             roleOr(input.Roles, actor.UserID, models.ParticipantRoleHost),
		AttendanceStatus: models.AttendanceAccepted,
	})
	for _, userID := range requestees {
		meeting.Participants = append(meeting.Participants, models.Participant{
			MeetingUID:       meeting.UID,
			UserID:           userID,
			Role:             roleOr(input.Roles, userID, models.ParticipantRoleCandidate),
			AttendanceStatus: models.AttendanceInvited,
		})
	}

	if err := s.MeetingRepository.Create(ctx, meeting); err != nil {
		slog.ErrorContext(ctx, "error creating meeting", logging.ErrKey, err)
		return meetingOutcome(nil, err)
	}

	ctx = logging.AppendCtx(ctx, slog.String(logging.MeetingKey, meeting.UID))
	slog.InfoContext(ctx, "created meeting request", "start_time", meeting.StartTime, "requestees", requestees)

	s.recordEvent(ctx, meeting, models.EventRequestCreated, actor.UserID, map[string]any{
		"start_time":       meeting.StartTime,
		"duration_minutes": meeting.DurationMinutes,
	})
	s.audit(ctx, models.AuditActionCreate, meeting, actor.UserID, map[string]any{"requestee_ids": requestees})
	s.notify(ctx, meeting, requestees, models.NotificationMeetingRequest,
		fmt.Sprintf("New meeting request: %s", meeting.Title),
		fmt.Sprintf("%s proposed %s.", actor.UserID, meeting.StartTime.Format(time.RFC1123)),
		"",
	)

	return succeeded(meeting), nil
}

func validateCreate(actor models.Actor, input *CreateMeetingInput, now time.Time) ([]string, *domain.DomainError) {
	if actor.UserID == "" || actor.TenantID == "" {
		return nil, invalid("actor user and tenant are required")
	}
	if failure := validateTitle(input.Title); failure != nil {
		return nil, failure
	}
	if utf8.RuneCountInString(input.Description) > models.DescriptionMaxLength {
		return nil, invalid(fmt.Sprintf("description must be at most %d characters", models.DescriptionMaxLength))
	}
	if failure := validateSchedule(input.ProposedAt, input.DurationMinutes, now); failure != nil {
		return nil, failure
	}
	if input.BufferMinutes < 0 || input.BufferMinutes > models.MaxBufferMinutes {
		return nil, invalid(fmt.Sprintf("buffer must be between 0 and %d minutes", models.MaxBufferMinutes))
	}
	if input.Timezone == "" {
		input.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(input.Timezone); err != nil {
		return nil, invalid(fmt.Sprintf("unknown timezone %q", input.Timezone))
	}
	for userID, role := range input.Roles {
		if !role.IsValid() {
			return nil, invalid(fmt.Sprintf("invalid role %q for %s", role, userID))
		}
	}

	seen := map[string]bool{actor.UserID: true}
	requestees := make([]string, 0, len(input.RequesteeIDs))
	for _, id := range input.RequesteeIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		requestees = append(requestees, id)
	}
	if len(requestees) == 0 {
		return nil, invalid("at least one requestee other than the requester is required")
	}
	return requestees, nil
}

func validateTitle(title string) *domain.DomainError {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n < models.TitleMinLength || n > models.TitleMaxLength {
		return invalid(fmt.Sprintf("title must be between %d and %d characters", models.TitleMinLength, models.TitleMaxLength))
	}
	return nil
}

func validateSchedule(start time.Time, durationMinutes int, now time.Time) *domain.DomainError {
	if !start.After(now) {
		return invalid("proposed time must be in the future")
	}
	if durationMinutes < models.MinDurationMinutes || durationMinutes > models.MaxDurationMinutes {
		return invalid(fmt.Sprintf("duration must be between %d and %d minutes", models.MinDurationMinutes, models.MaxDurationMinutes))
	}
	return nil
}

func roleOr(roles map[string]models.ParticipantRole, userID string, fallback models.ParticipantRole) models.ParticipantRole {
	if role, ok := roles[userID]; ok {
		return role
	}
	return fallback
}

// checkConflicts fails with a conflict naming the first blocking meeting of any
// user whose padded interval overlaps [start, end). The larger of the two
// buffers applies. Check and write are not atomic, so two concurrent requests
// may both pass.
func (s *SchedulingService) checkConflicts(
	ctx context.Context,
	tenantID string,
	userIDs []string,
	excludeUID string,
	start, end time.Time,
	bufferMinutes int,
) error {
	for _, userID := range userIDs {
		meetings, err := s.MeetingRepository.ListByParticipant(ctx, userID)
		if err != nil {
			slog.ErrorContext(ctx, "error listing participant meetings", logging.ErrKey, err, "user_id", userID)
			return err
		}
		for _, existing := range meetings {
			if existing.UID == excludeUID || existing.TenantID != tenantID || !existing.IsBlocking() {
				continue
			}
			buffer := max(existing.BufferMinutes, bufferMinutes)
			if timeslot.Overlaps(existing.StartTime, existing.EndTime, start, end, buffer) {
				slog.InfoContext(ctx, "meeting time conflict",
					"user_id", userID,
					"conflicting_meeting_uid", existing.UID,
				)
				return domain.NewConflictError(fmt.Sprintf("time conflicts with existing meeting %q", existing.Title))
			}
		}
	}
	return nil
}

// Respond applies a requestee's accept or deny to a pending proposal.
func (s *SchedulingService) Respond(ctx context.Context, actor models.Actor, meetingUID string, response Response) (result *MeetingResult, err error) {
	ctx, span := s.startSpan(ctx, "respond", actor, meetingUID)
	defer func() { finish(span, result, err) }()

	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}

	var target models.MeetingStatus
	switch response {
	case ResponseAccept:
		target = models.MeetingStatusConfirmed
	case ResponseDeny:
		target = models.MeetingStatusDenied
	default:
		return &MeetingResult{Failure: invalid(fmt.Sprintf("response must be %q or %q", ResponseAccept, ResponseDeny))}, nil
	}

	meeting, err := s.mutate(ctx, meetingUID, func(m *models.Meeting) (bool, error) {
		if m.TenantID != actor.TenantID {
			return false, meetingNotFound()
		}
		responder := m.Participant(actor.UserID)
		if responder == nil || actor.UserID == m.ProposedBy {
			return false, notAuthorized()
		}
		if !m.Status.IsPendingResponse() {
			if m.Status == models.MeetingStatusConfirmed {
				return false, domain.NewConflictError("meeting request has already been answered")
			}
			return false, domain.NewInvalidStateTransitionError(m.Status, target)
		}
		if !models.CanTransition(m.Status, target) {
			return false, domain.NewInvalidStateTransitionError(m.Status, target)
		}
		m.Status = target
		if response == ResponseAccept {
			responder.AttendanceStatus = models.AttendanceAccepted
		}
		return true, nil
	})
	if err != nil {
		return meetingOutcome(nil, err)
	}

	others := otherParticipants(meeting, actor.UserID)
	if response == ResponseAccept {
		slog.InfoContext(ctx, "meeting request accepted")
		s.scheduleReminders(ctx, meeting)
		s.notify(ctx, meeting, meeting.ParticipantIDs(), models.NotificationMeetingConfirmed,
			fmt.Sprintf("Meeting confirmed: %s", meeting.Title),
			fmt.Sprintf("The meeting is confirmed for %s.", meeting.StartTime.Format(time.RFC1123)),
			s.invitation(ctx, meeting),
		)
		s.recordEvent(ctx, meeting, models.EventRequestAccepted, actor.UserID, nil)
		s.audit(ctx, models.AuditActionAccept, meeting, actor.UserID, nil)
	} else {
		slog.InfoContext(ctx, "meeting request denied")
		s.cancelReminders(ctx, meeting)
		s.notify(ctx, meeting, others, models.NotificationMeetingDenied,
			fmt.Sprintf("Meeting declined: %s", meeting.Title),
			fmt.Sprintf("%s declined the meeting request.", actor.UserID),
			"",
		)
		s.recordEvent(ctx, meeting, models.EventRequestDenied, actor.UserID, nil)
		s.audit(ctx, models.AuditActionDeny, meeting, actor.UserID, nil)
	}

	return succeeded(meeting), nil
}

// Reschedule proposes a new time. A confirmed meeting goes back to
// RESCHEDULE_REQUESTED; reminders are only recreated by the next accept.
func (s *SchedulingService) Reschedule(ctx context.Context, actor models.Actor, meetingUID string, input RescheduleInput) (result *MeetingResult, err error) {
	ctx, span := s.startSpan(ctx, "reschedule", actor, meetingUID)
	defer func() { finish(span, result, err) }()

	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if utf8.RuneCountInString(input.Reason) > models.DescriptionMaxLength {
		return &MeetingResult{Failure: invalid(fmt.Sprintf("reason must be at most %d characters", models.DescriptionMaxLength))}, nil
	}

	now := s.now()
	var previousStart time.Time
	meeting, err := s.mutate(ctx, meetingUID, func(m *models.Meeting) (bool, error) {
		if m.TenantID != actor.TenantID {
			return false, meetingNotFound()
		}
		if !m.IsParticipant(actor.UserID) {
			return false, notAuthorized()
		}
		if m.Status.IsTerminal() || m.Status == models.MeetingStatusInProgress {
			return false, domain.NewInvalidStateTransitionError(m.Status, models.MeetingStatusRescheduleRequested)
		}

		duration := m.DurationMinutes
		if input.NewDurationMinutes != nil {
			duration = *input.NewDurationMinutes
		}
		if failure := validateSchedule(input.NewProposedAt, duration, now); failure != nil {
			return false, failure
		}

		start := input.NewProposedAt.UTC()
		end := start.Add(time.Duration(duration) * time.Minute)
		checked := otherParticipants(m, actor.UserID)
		if s.Config.StrictConflicts {
			checked = append([]string{actor.UserID}, checked...)
		}
		if err := s.checkConflicts(ctx, m.TenantID, checked, m.UID, start, end, m.BufferMinutes); err != nil {
			return false, err
		}

		if m.Status == models.MeetingStatusConfirmed {
			m.Status = models.MeetingStatusRescheduleRequested
		}
		previousStart = m.StartTime
		m.SetSchedule(start, duration)
		m.ProposedBy = actor.UserID
		m.RescheduleReason = input.Reason
		for i := range m.Participants {
			if m.Participants[i].UserID == actor.UserID {
				m.Participants[i].AttendanceStatus = models.AttendanceAccepted
			} else {
				m.Participants[i].AttendanceStatus = models.AttendanceInvited
			}
		}
		return true, nil
	})
	if err != nil {
		return meetingOutcome(nil, err)
	}

	slog.InfoContext(ctx, "meeting rescheduled", "previous_start", previousStart, "start_time", meeting.StartTime)
	s.cancelReminders(ctx, meeting)
	s.notify(ctx, meeting, otherParticipants(meeting, actor.UserID), models.NotificationMeetingRescheduled,
		fmt.Sprintf("Meeting reschedule requested: %s", meeting.Title),
		fmt.Sprintf("%s proposed a new time: %s.", actor.UserID, meeting.StartTime.Format(time.RFC1123)),
		"",
	)
	s.recordEvent(ctx, meeting, models.EventRescheduleRequested, actor.UserID, map[string]any{
		"previous_start_time": previousStart,
		"start_time":          meeting.StartTime,
		"reason":              input.Reason,
	})
	s.audit(ctx, models.AuditActionReschedule, meeting, actor.UserID, map[string]any{"reason": input.Reason})

	return succeeded(meeting), nil
}

// Cancel moves a meeting to CANCELED and drops its reminders.
func (s *SchedulingService) Cancel(ctx context.Context, actor models.Actor, meetingUID, reason string) (result *MeetingResult, err error) {
	ctx, span := s.startSpan(ctx, "cancel", actor, meetingUID)
	defer func() { finish(span, result, err) }()

	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}

	var previous models.MeetingStatus
	meeting, err := s.mutate(ctx, meetingUID, func(m *models.Meeting) (bool, error) {
		if m.TenantID != actor.TenantID {
			return false, meetingNotFound()
		}
		if !m.IsParticipant(actor.UserID) {
			return false, notAuthorized()
		}
		if !models.CanTransition(m.Status, models.MeetingStatusCanceled) {
			return false, domain.NewInvalidStateTransitionError(m.Status, models.MeetingStatusCanceled)
		}
		previous = m.Status
		m.Status = models.MeetingStatusCanceled
		m.CanceledBy = actor.UserID
		m.CanceledReason = reason
		return true, nil
	})
	if err != nil {
		return meetingOutcome(nil, err)
	}

	slog.InfoContext(ctx, "meeting canceled", "previous_status", previous)
	s.cancelReminders(ctx, meeting)

	var ics string
	if previous == models.MeetingStatusConfirmed || previous == models.MeetingStatusRescheduleRequested {
		ics = s.cancellation(ctx, meeting)
	}
	s.notify(ctx, meeting, otherParticipants(meeting, actor.UserID), models.NotificationMeetingCanceled,
		fmt.Sprintf("Meeting canceled: %s", meeting.Title),
		fmt.Sprintf("%s canceled the meeting.", actor.UserID),
		ics,
	)
	s.recordEvent(ctx, meeting, models.EventCanceled, actor.UserID, map[string]any{"reason": reason})
	s.audit(ctx, models.AuditActionCancel, meeting, actor.UserID, map[string]any{"reason": reason})

	return succeeded(meeting), nil
}

// StartMeeting moves a confirmed meeting to IN_PROGRESS.
func (s *SchedulingService) StartMeeting(ctx context.Context, actor models.Actor, meetingUID string) (result *MeetingResult, err error) {
	ctx, span := s.startSpan(ctx, "start", actor, meetingUID)
	defer func() { finish(span, result, err) }()

	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}

	now := s.now()
	meeting, err := s.mutate(ctx, meetingUID, func(m *models.Meeting) (bool, error) {
		if m.TenantID != actor.TenantID {
			return false, meetingNotFound()
		}
		if !m.IsParticipant(actor.UserID) {
			return false, notAuthorized()
		}
		if !models.CanTransition(m.Status, models.MeetingStatusInProgress) {
			return false, domain.NewInvalidStateTransitionError(m.Status, models.MeetingStatusInProgress)
		}
		m.Status = models.MeetingStatusInProgress
		m.StartedAt = &now
		return true, nil
	})
	if err != nil {
		return meetingOutcome(nil, err)
	}

	slog.InfoContext(ctx, "meeting started")
	s.recordEvent(ctx, meeting, models.EventMeetingStarted, actor.UserID, nil)
	s.audit(ctx, models.AuditActionStart, meeting, actor.UserID, nil)
	return succeeded(meeting), nil
}

// EndMeeting completes an in-progress meeting for everyone. Only roles allowed by
// CanEndMeeting may do so.
func (s *SchedulingService) EndMeeting(ctx context.Context, actor models.Actor, meetingUID, reason string) (result *MeetingResult, err error) {
	ctx, span := s.startSpan(ctx, "end", actor, meetingUID)
	defer func() { finish(span, result, err) }()

	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}

	now := s.now()
	meeting, err := s.mutate(ctx, meetingUID, func(m *models.Meeting) (bool, error) {
		if m.TenantID != actor.TenantID {
			return false, meetingNotFound()
		}
		participant := m.Participant(actor.UserID)
		if participant == nil || !models.CanEndMeeting(effectiveRole(actor, participant)) {
			return false, notAuthorized()
		}
		if !models.CanTransition(m.Status, models.MeetingStatusCompleted) {
			return false, domain.NewInvalidStateTransitionError(m.Status, models.MeetingStatusCompleted)
		}
		m.Status = models.MeetingStatusCompleted
		m.EndedAt = &now
		return true, nil
	})
	if err != nil {
		return meetingOutcome(nil, err)
	}

	slog.InfoContext(ctx, "meeting ended", "reason", reason)
	if s.Sessions != nil {
		if n, err := s.Sessions.EndSessions(ctx, meeting.UID, now); err != nil {
			slog.WarnContext(ctx, "error ending video sessions", logging.ErrKey, err)
		} else {
			slog.DebugContext(ctx, "ended video sessions", "count", n)
		}
	}
	s.cancelReminders(ctx, meeting)
	s.recordEvent(ctx, meeting, models.EventMeetingEnded, actor.UserID, map[string]any{"reason": reason})
	s.audit(ctx, models.AuditActionEnd, meeting, actor.UserID, map[string]any{"reason": reason})
	return succeeded(meeting), nil
}

// JoinPermissions reports whether the actor may enter or end the meeting now.
func (s *SchedulingService) JoinPermissions(ctx context.Context, actor models.Actor, meetingUID string) (*JoinPermissions, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}

	meeting, err := s.MeetingRepository.Get(ctx, meetingUID)
	if err != nil {
		if failure, ok := isBusinessFailure(err); ok {
			return &JoinPermissions{Failure: failure}, nil
		}
		return nil, err
	}
	if meeting.TenantID != actor.TenantID {
		return &JoinPermissions{Failure: meetingNotFound()}, nil
	}
	participant := meeting.Participant(actor.UserID)
	if participant == nil {
		return &JoinPermissions{Failure: notAuthorized()}, nil
	}

	return &JoinPermissions{
		CanJoin:       models.CanJoinMeeting(meeting.Status, meeting.JoinWindowOpenAt, meeting.JoinWindowCloseAt, s.now()),
		CanEnd:        models.CanEndMeeting(effectiveRole(actor, participant)),
		WindowOpenAt:  meeting.JoinWindowOpenAt.Format(time.RFC3339),
		WindowCloseAt: meeting.JoinWindowCloseAt.Format(time.RFC3339),
	}, nil
}

// effectiveRole prefers the role supplied with the actor over the stored one.
func effectiveRole(actor models.Actor, participant *models.Participant) models.ParticipantRole {
	if actor.Role != "" {
		return actor.Role
	}
	return participant.Role
}

// GetAvailability computes the business hour slots of userID's local day.
func (s *SchedulingService) GetAvailability(ctx context.Context, actor models.Actor, userID, date, timezone string) (*AvailabilityResult, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if userID == "" {
		userID = actor.UserID
	}
	if timezone == "" {
		timezone = "UTC"
	}
	result := &AvailabilityResult{UserID: userID, Date: date, Timezone: timezone}

	dayStart, dayEnd, _, err := timeslot.DayBounds(date, timezone)
	if err != nil {
		result.Failure = domain.NewValidationError(err.Error(), domain.ErrValidationFailed)
		return result, nil
	}

	meetings, err := s.MeetingRepository.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	day := timeslot.Interval{Start: dayStart, End: dayEnd}
	var bookings []timeslot.Booking
	for _, m := range meetings {
		if m.TenantID != actor.TenantID || !m.IsBlocking() {
			continue
		}
		padded := timeslot.Interval{Start: m.StartTime, End: m.EndTime}.
			Pad(time.Duration(m.BufferMinutes) * time.Minute)
		if !padded.Intersects(day) {
			continue
		}
		bookings = append(bookings, timeslot.Booking{Start: m.StartTime, End: m.EndTime, BufferMinutes: m.BufferMinutes})
	}

	slots, err := timeslot.GenerateDailySlots(dayStart, s.Config.BusinessHours, bookings)
	if err != nil {
		return nil, domain.NewInternalError("failed to generate availability slots", err)
	}
	result.Slots = slots
	return result, nil
}

// ExpireStale moves requests whose start passed without an answer to EXPIRED.
func (s *SchedulingService) ExpireStale(ctx context.Context) (int, error) {
	if !s.ServiceReady() {
		return 0, s.notReady(ctx)
	}

	meetings, err := s.MeetingRepository.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	expired := 0
	var errs []error
	for _, candidate := range meetings {
		if candidate.Status != models.MeetingStatusRequested || candidate.StartTime.After(now) {
			continue
		}

		meetingCtx := logging.AppendCtx(ctx, slog.String(logging.MeetingKey, candidate.UID))
		meeting, changed, err := mutateMeeting(meetingCtx, s.MeetingRepository, s.Config, s.now, candidate.UID, func(m *models.Meeting) (bool, error) {
			if m.Status != models.MeetingStatusRequested || m.StartTime.After(now) {
				return false, nil
			}
			m.Status = models.MeetingStatusExpired
			return true, nil
		})
		if err != nil {
			slog.ErrorContext(meetingCtx, "error expiring meeting request", logging.ErrKey, err)
			errs = append(errs, err)
			continue
		}
		if !changed {
			continue
		}

		expired++
		s.cancelReminders(meetingCtx, meeting)
		s.recordEvent(meetingCtx, meeting, models.EventExpired, systemActor, nil)
		s.audit(meetingCtx, models.AuditActionExpire, meeting, systemActor, nil)
	}

	if expired > 0 {
		slog.InfoContext(ctx, "expired stale meeting requests", "count", expired)
	}
	return expired, errors.Join(errs...)
}

func otherParticipants(meeting *models.Meeting, userID string) []string {
	ids := make([]string, 0, len(meeting.Participants))
	for _, p := range meeting.Participants {
		if p.UserID != userID {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

func (s *SchedulingService) scheduleReminders(ctx context.Context, meeting *models.Meeting) {
	n, err := s.Reminders.ScheduleReminders(ctx, meeting.UID)
	if err != nil {
		// the periodic scan reschedules what was missed
		slog.WarnContext(ctx, "error scheduling reminders", logging.ErrKey, err)
		return
	}
	slog.DebugContext(ctx, "scheduled reminders", "count", n)
}

func (s *SchedulingService) cancelReminders(ctx context.Context, meeting *models.Meeting) {
	n, err := s.Reminders.CancelReminders(ctx, meeting.UID)
	if err != nil {
		// stale reminders are dropped when they fire
		slog.WarnContext(ctx, "error canceling reminders", logging.ErrKey, err)
		return
	}
	slog.DebugContext(ctx, "canceled reminders", "count", n)
}

func (s *SchedulingService) invitation(ctx context.Context, meeting *models.Meeting) string {
	if s.Calendar == nil {
		return ""
	}
	ics, err := s.Calendar.GenerateInvitation(meeting)
	if err != nil {
		slog.WarnContext(ctx, "error generating calendar invitation", logging.ErrKey, err)
		return ""
	}
	return ics
}

func (s *SchedulingService) cancellation(ctx context.Context, meeting *models.Meeting) string {
	if s.Calendar == nil {
		return ""
	}
	ics, err := s.Calendar.GenerateCancellation(meeting)
	if err != nil {
		slog.WarnContext(ctx, "error generating calendar cancellation", logging.ErrKey, err)
		return ""
	}
	return ics
}

func (s *SchedulingService) notify(
	ctx context.Context,
	meeting *models.Meeting,
	recipients []string,
	notificationType models.NotificationType,
	title, body, ics string,
) {
	for _, userID := range recipients {
		channel := models.ChannelInApp
		if ics != "" {
			channel = models.ChannelEmail
		}
		err := s.MessageBuilder.SendNotification(ctx, models.NotificationJob{
			UserID:       userID,
			TenantID:     meeting.TenantID,
			Type:         notificationType,
			Title:        title,
			Body:         body,
			ResourceType: "meeting",
			ResourceID:   meeting.UID,
			Channel:      channel,
			Link:         s.Config.URLs().GenerateMeetingURL(meeting.UID),
			ICS:          ics,
		})
		if err != nil {
			slog.WarnContext(ctx, "error sending notification", logging.ErrKey, err, "user_id", userID, "type", notificationType)
		}
	}
}

func (s *SchedulingService) audit(ctx context.Context, action models.AuditAction, meeting *models.Meeting, actorID string, metadata map[string]any) {
	err := s.MessageBuilder.SendAuditEvent(ctx, models.AuditEvent{
		Action:       action,
		ResourceType: "meeting",
		ResourceID:   meeting.UID,
		TenantID:     meeting.TenantID,
		ActorID:      actorID,
		Metadata:     metadata,
		Tags:         meeting.Tags(),
		OccurredAt:   s.now(),
	})
	if err != nil {
		slog.WarnContext(ctx, "error sending audit event", logging.ErrKey, err, "action", action)
	}
}

func (s *SchedulingService) recordEvent(ctx context.Context, meeting *models.Meeting, eventType models.LifecycleEventType, actorID string, payload map[string]any) {
	err := s.EventRepository.Append(ctx, &models.LifecycleEvent{
		MeetingUID:  meeting.UID,
		TenantID:    meeting.TenantID,
		ActorUserID: actorID,
		Type:        eventType,
		Payload:     payload,
		CreatedAt:   s.now(),
	})
	if err != nil {
		slog.WarnContext(ctx, "error recording lifecycle event", logging.ErrKey, err, "event_type", eventType)
	}
}
