// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package calendar renders iCalendar attachments for scheduling notifications.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/constants"
)

// ICS constants for consistent values across all generated ICS files
const (
	ICSProdID   = "-//Linux Foundation//LFX Scheduling Service//EN"
	ICALVersion = "2.0"
	ICALScale   = "GREGORIAN"

	methodRequest = "REQUEST"
	methodCancel  = "CANCEL"

	// ReminderTrigger fires the calendar client's own alarm ten minutes before start.
	ReminderTrigger = "-PT10M"
)

// ICS organizer information
const (
	OrganizerEmail = "scheduling@linuxfoundation.org"
	OrganizerName  = "LFX Scheduling"
)

// AttendeeAddress is the calendar user address of an LFX user. Mail addresses are
// resolved by the dispatch service, not here.
func AttendeeAddress(userID string) string {
	return "urn:lfx:user:" + userID
}

// Generator builds ICS documents with go-ical.
type Generator struct {
	urls *constants.LfxURLGenerator
}

var _ domain.ICSGenerator = (*Generator)(nil)

// NewGenerator creates a generator. urls may be nil, in which case production links
// are used.
func NewGenerator(urls *constants.LfxURLGenerator) *Generator {
	return &Generator{urls: urls}
}

// GenerateInvitation renders a METHOD:REQUEST calendar for a confirmed meeting.
func (g *Generator) GenerateInvitation(meeting *models.Meeting) (string, error) {
	return g.render(meeting, methodRequest)
}

// GenerateCancellation renders a METHOD:CANCEL calendar that removes the meeting from
// attendee calendars.
func (g *Generator) GenerateCancellation(meeting *models.Meeting) (string, error) {
	return g.render(meeting, methodCancel)
}

func (g *Generator) render(meeting *models.Meeting, method string) (string, error) {
	if meeting == nil || meeting.UID == "" {
		return "", domain.NewValidationError("meeting is required to render a calendar")
	}
	if !meeting.EndTime.After(meeting.StartTime) {
		return "", domain.NewValidationError("meeting end time must be after its start time")
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, ICALVersion)
	cal.Props.SetText(ical.PropProductID, ICSProdID)
	cal.Props.SetText(ical.PropCalendarScale, ICALScale)
	cal.Props.SetText(ical.PropMethod, method)
	cal.Children = append(cal.Children, g.event(meeting, method))

	var sb strings.Builder
	if err := ical.NewEncoder(&sb).Encode(cal); err != nil {
		return "", domain.NewInternalError("failed to encode calendar", err)
	}
	return sb.String(), nil
}

func (g *Generator) event(meeting *models.Meeting, method string) *ical.Component {
	joinURL := meeting.MeetingURL
	if joinURL == "" {
		joinURL = g.urls.GenerateJoinURL(meeting.UID)
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, meeting.UID+"@lfx.dev")
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp(meeting))
	ve.Props.SetDateTime(ical.PropDateTimeStart, meeting.StartTime.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, meeting.EndTime.UTC())
	ve.Props.SetText(ical.PropSummary, meeting.Title)
	ve.Props.SetText(ical.PropDescription, buildDescription(meeting.Description, joinURL))

	location := meeting.Location
	if location == "" {
		location = joinURL
	}
	ve.Props.SetText(ical.PropLocation, location)
	setRaw(ve, ical.PropURL, joinURL)

	organizer := ical.NewProp(ical.PropOrganizer)
	organizer.Value = "mailto:" + OrganizerEmail
	organizer.Params.Set(ical.ParamCommonName, OrganizerName)
	ve.Props.Set(organizer)

	for _, p := range meeting.Participants {
		attendee := ical.NewProp(ical.PropAttendee)
		attendee.Value = AttendeeAddress(p.UserID)
		attendee.Params.Set(ical.ParamCommonName, p.UserID)
		attendee.Params.Set(ical.ParamRole, attendeeRole(p.Role))
		attendee.Params.Set(ical.ParamParticipationStatus, partStat(p.AttendanceStatus))
		ve.Props.Add(attendee)
	}

	sequence := sequenceOf(meeting)
	if method == methodCancel {
		ve.Props.SetText(ical.PropStatus, "CANCELLED")
		sequence++
	} else {
		ve.Props.SetText(ical.PropStatus, "CONFIRMED")
		ve.Children = append(ve.Children, alarm())
	}
	setRaw(ve, ical.PropSequence, strconv.Itoa(sequence))
	ve.Props.SetText(ical.PropTransparency, "OPAQUE")

	return ve
}

func alarm() *ical.Component {
	valarm := ical.NewComponent(ical.CompAlarm)
	valarm.Props.SetText(ical.PropAction, "DISPLAY")
	valarm.Props.SetText(ical.PropDescription, "Meeting reminder")
	setRaw(valarm, ical.PropTrigger, ReminderTrigger)
	return valarm
}

// setRaw stores a non-text property without a VALUE parameter.
func setRaw(c *ical.Component, name, value string) {
	p := ical.NewProp(name)
	p.Value = value
	c.Props.Set(p)
}

// stamp is the last modification time, so re-rendering an unchanged meeting is
// byte-identical.
func stamp(meeting *models.Meeting) time.Time {
	switch {
	case meeting.UpdatedAt != nil:
		return meeting.UpdatedAt.UTC()
	case meeting.CreatedAt != nil:
		return meeting.CreatedAt.UTC()
	}
	return meeting.StartTime.UTC()
}

// sequenceOf grows with every update so calendar clients replace older copies.
func sequenceOf(meeting *models.Meeting) int {
	if meeting.CreatedAt == nil || meeting.UpdatedAt == nil {
		return 0
	}
	seconds := int(meeting.UpdatedAt.Sub(*meeting.CreatedAt) / time.Second)
	if seconds < 0 {
		return 0
	}
	return seconds
}

func buildDescription(description, joinURL string) string {
	var b strings.Builder
	if description != "" {
		b.WriteString(description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Join Meeting: %s", joinURL)
	return b.String()
}

func attendeeRole(role models.ParticipantRole) string {
	if role == models.ParticipantRoleObserver {
		return "OPT-PARTICIPANT"
	}
	return "REQ-PARTICIPANT"
}

func partStat(status models.AttendanceStatus) string {
	if status == models.AttendanceInvited {
		return "NEEDS-ACTION"
	}
	return "ACCEPTED"
}
