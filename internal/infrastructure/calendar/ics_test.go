// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/constants"
)

func testMeeting() *models.Meeting {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	updated := created.Add(90 * time.Second)
	m := &models.Meeting{
		UID:      "m-1",
		TenantID: "acme",
		Title:    "Backend interview",
		Timezone: "Europe/Berlin",
		Participants: []models.Participant{
			{UserID: "alice", Role: models.ParticipantRoleHost, AttendanceStatus: models.AttendanceAccepted},
			{UserID: "bob", Role: models.ParticipantRoleCandidate, AttendanceStatus: models.AttendanceInvited},
		},
		CreatedAt: &created,
		UpdatedAt: &updated,
	}
	m.SetSchedule(time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC), 45)
	return m
}

func decodeEvent(t *testing.T, ics string) *ical.Calendar {
	t.Helper()
	cal, err := ical.NewDecoder(strings.NewReader(ics)).Decode()
	require.NoError(t, err)
	require.Len(t, cal.Events(), 1)
	return cal
}

func TestGenerator_GenerateInvitation(t *testing.T) {
	g := NewGenerator(constants.NewLfxURLGenerator("dev", ""))

	out, err := g.GenerateInvitation(testMeeting())
	require.NoError(t, err)

	cal := decodeEvent(t, out)
	assert.Equal(t, "REQUEST", cal.Props.Get(ical.PropMethod).Value)
	assert.Equal(t, ICSProdID, cal.Props.Get(ical.PropProductID).Value)

	event := cal.Events()[0]
	assert.Equal(t, "m-1@lfx.dev", event.Props.Get(ical.PropUID).Value)
	assert.Equal(t, "Backend interview", event.Props.Get(ical.PropSummary).Value)
	assert.Equal(t, "20260302T150000Z", event.Props.Get(ical.PropDateTimeStart).Value)
	assert.Equal(t, "20260302T154500Z", event.Props.Get(ical.PropDateTimeEnd).Value)
	assert.Equal(t, "CONFIRMED", event.Props.Get(ical.PropStatus).Value)
	assert.Equal(t, "90", event.Props.Get(ical.PropSequence).Value)
	assert.Equal(t, "https://app.dev.lfx.dev/meetings/m-1/join", event.Props.Get(ical.PropURL).Value)

	attendees := event.Props.Values(ical.PropAttendee)
	require.Len(t, attendees, 2)
	assert.Equal(t, "urn:lfx:user:alice", attendees[0].Value)
	assert.Equal(t, "ACCEPTED", attendees[0].Params.Get(ical.ParamParticipationStatus))
	assert.Equal(t, "NEEDS-ACTION", attendees[1].Params.Get(ical.ParamParticipationStatus))

	require.Len(t, event.Children, 1)
	assert.Equal(t, ical.CompAlarm, event.Children[0].Name)
	assert.Equal(t, ReminderTrigger, event.Children[0].Props.Get(ical.PropTrigger).Value)
}

func TestGenerator_GenerateInvitationPrefersMeetingURL(t *testing.T) {
	m := testMeeting()
	m.MeetingURL = "https://video.example.com/room/xyz"

	out, err := NewGenerator(nil).GenerateInvitation(m)
	require.NoError(t, err)

	event := decodeEvent(t, out).Events()[0]
	assert.Equal(t, m.MeetingURL, event.Props.Get(ical.PropURL).Value)
	assert.Contains(t, out, "Join Meeting: https://video.example.com/room/xyz")
}

func TestGenerator_GenerateCancellation(t *testing.T) {
	out, err := NewGenerator(nil).GenerateCancellation(testMeeting())
	require.NoError(t, err)

	cal := decodeEvent(t, out)
	assert.Equal(t, "CANCEL", cal.Props.Get(ical.PropMethod).Value)

	event := cal.Events()[0]
	assert.Equal(t, "CANCELLED", event.Props.Get(ical.PropStatus).Value)
	assert.Equal(t, "91", event.Props.Get(ical.PropSequence).Value)
	assert.Empty(t, event.Children)
}

func TestGenerator_IsDeterministic(t *testing.T) {
	g := NewGenerator(nil)
	first, err := g.GenerateInvitation(testMeeting())
	require.NoError(t, err)
	second, err := g.GenerateInvitation(testMeeting())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerator_RejectsInvalidMeeting(t *testing.T) {
	g := NewGenerator(nil)

	_, err := g.GenerateInvitation(nil)
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))

	m := testMeeting()
	m.EndTime = m.StartTime
	_, err = g.GenerateInvitation(m)
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}
