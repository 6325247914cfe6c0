// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/timeslot"
)

// MeetingResult is the outcome of a scheduling operation. Expected business
// failures are reported in Failure; the accompanying error is reserved for
// infrastructure faults.
type MeetingResult struct {
	Meeting *models.Meeting
	Failure *domain.DomainError
}

// OK reports whether the operation succeeded.
func (r *MeetingResult) OK() bool {
	return r != nil && r.Failure == nil
}

// AvailabilityResult lists the slots of one user's day.
type AvailabilityResult struct {
	UserID   string              `json:"user_id"`
	Date     string              `json:"date"`
	Timezone string              `json:"timezone"`
	Slots    []timeslot.Slot     `json:"slots"`
	Failure  *domain.DomainError `json:"-"`
}

// JoinPermissions answers whether the actor may enter or end a meeting right now.
type JoinPermissions struct {
	CanJoin       bool                `json:"can_join"`
	CanEnd        bool                `json:"can_end"`
	WindowOpenAt  string              `json:"window_open_at,omitempty"`
	WindowCloseAt string              `json:"window_close_at,omitempty"`
	Failure       *domain.DomainError `json:"-"`
}

func succeeded(meeting *models.Meeting) *MeetingResult {
	return &MeetingResult{Meeting: meeting}
}

// isBusinessFailure reports whether err is an expected outcome of the request
// rather than an infrastructure fault.
func isBusinessFailure(err error) (*domain.DomainError, bool) {
	domainErr, ok := domain.AsDomainError(err)
	if !ok {
		switch domain.GetErrorType(err) {
		case domain.ErrorTypeNotFound:
			return domain.NewNotFoundError("meeting not found", err), true
		case domain.ErrorTypeConflict:
			return domain.NewConflictError("meeting was modified concurrently, try again", err), true
		}
		return nil, false
	}
	switch domainErr.Type {
	case domain.ErrorTypeValidation,
		domain.ErrorTypeNotFound,
		domain.ErrorTypeAuthorization,
		domain.ErrorTypeConflict,
		domain.ErrorTypeInvalidTransition:
		return domainErr, true
	}
	return nil, false
}

// meetingOutcome sorts err into a failed result or a propagated fault.
func meetingOutcome(meeting *models.Meeting, err error) (*MeetingResult, error) {
	if err == nil {
		return succeeded(meeting), nil
	}
	if failure, ok := isBusinessFailure(err); ok {
		return &MeetingResult{Failure: failure}, nil
	}
	return nil, err
}

// meetingNotFound is the single answer for unknown, foreign-tenant and
// non-participant lookups alike, so other tenants cannot discover meeting ids.
func meetingNotFound() *domain.DomainError {
	return domain.NewNotFoundError("meeting not found", domain.ErrMeetingNotFound)
}

func notAuthorized() *domain.DomainError {
	return domain.NewAuthorizationError("not authorized to perform this action")
}
