// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/calendar"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/queue"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/constants"
)

var (
	alice = models.Actor{UserID: "alice", TenantID: "acme"}
	bob   = models.Actor{UserID: "bob", TenantID: "acme"}
)

type handlerEnv struct {
	meetings   *store.NatsMeetingRepository
	queue      *queue.MemoryQueue
	scheduling *service.SchedulingService
	reconciler *service.VideoReconciler
	handler    *SchedulingHandler
	webhooks   *VideoWebhookHandler
	// start is 10:00 UTC two days from now.
	start time.Time
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	messages := &mocks.MockMessageBuilder{}
	messages.On("SendAuditEvent", mock.Anything, mock.Anything).Return(nil).Maybe()
	messages.On("SendNotification", mock.Anything, mock.Anything).Return(nil).Maybe()

	config := service.DefaultServiceConfig()
	config.ConflictRetryInterval = time.Millisecond

	meetings := store.NewNatsMeetingRepository(store.NewMockKeyValue())
	events := store.NewNatsLifecycleEventRepository(store.NewMockKeyValue())
	sessions := store.NewNatsVideoSessionRepository(store.NewMockKeyValue())
	idempotency := store.NewNatsIdempotencyStore(store.NewMockKeyValue())
	jobs := queue.NewMemoryQueue()

	reminders := service.NewReminderService(meetings, jobs, messages)
	reconciler := service.NewVideoReconciler(meetings, sessions, events, idempotency, reminders, config)
	scheduling := service.NewSchedulingService(
		meetings,
		events,
		reminders,
		reconciler,
		messages,
		calendar.NewGenerator(constants.NewLfxURLGenerator("dev", "")),
		config,
	)

	y, m, d := time.Now().UTC().Date()
	return &handlerEnv{
		meetings:   meetings,
		queue:      jobs,
		scheduling: scheduling,
		reconciler: reconciler,
		handler:    NewSchedulingHandler(scheduling, service.NewIdempotencyGuard(idempotency)),
		webhooks:   NewVideoWebhookHandler(reconciler),
		start:      time.Date(y, m, d+2, 10, 0, 0, 0, time.UTC),
	}
}

// decodedReply mirrors Reply with the data left raw.
type decodedReply struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *ReplyError     `json:"error"`
}

// send delivers body on subject to handle and returns the decoded reply.
func send(t *testing.T, handle func(msg *mocks.MockMessage), subject string, body any, headers map[string]string) decodedReply {
	t.Helper()

	var data []byte
	switch b := body.(type) {
	case []byte:
		data = b
	case string:
		data = []byte(b)
	default:
		var err error
		data, err = json.Marshal(body)
		require.NoError(t, err)
	}

	msg := mocks.NewMockMessage(data, subject)
	for k, v := range headers {
		msg.WithHeader(k, v)
	}
	var answered []byte
	msg.On("HasReply").Return(true)
	msg.On("Respond", mock.Anything).Run(func(args mock.Arguments) {
		answered, _ = args.Get(0).([]byte)
	}).Return(nil).Once()

	handle(msg)

	msg.AssertExpectations(t)
	var reply decodedReply
	require.NoError(t, json.Unmarshal(answered, &reply), "reply: %s", answered)
	return reply
}

func (e *handlerEnv) scheduleCall(t *testing.T, subject string, body any, headers map[string]string) decodedReply {
	t.Helper()
	return send(t, func(msg *mocks.MockMessage) { e.handler.HandleMessage(t.Context(), msg) }, subject, body, headers)
}

func (e *handlerEnv) webhookCall(t *testing.T, body any) decodedReply {
	t.Helper()
	return send(t, func(msg *mocks.MockMessage) { e.webhooks.HandleMessage(t.Context(), msg) }, models.VideoWebhookSubject, body, nil)
}

func meetingOf(t *testing.T, reply decodedReply) models.Meeting {
	t.Helper()
	require.Nil(t, reply.Error, "unexpected error reply: %+v", reply.Error)
	var meeting models.Meeting
	require.NoError(t, json.Unmarshal(reply.Data, &meeting))
	return meeting
}

// confirmed creates a meeting from alice to bob at start and has bob accept it.
func (e *handlerEnv) confirmed(t *testing.T) models.Meeting {
	t.Helper()
	created := meetingOf(t, e.scheduleCall(t, models.MeetingCreateSubject, createRequest{
		Actor: alice,
		CreateMeetingInput: service.CreateMeetingInput{
			RequesteeIDs:    []string{"bob"},
			Title:           "Roadmap",
			ProposedAt:      e.start,
			DurationMinutes: 60,
			BufferMinutes:   15,
		},
	}, nil))
	return meetingOf(t, e.scheduleCall(t, models.MeetingRespondSubject, respondRequest{
		Actor:      bob,
		MeetingUID: created.UID,
		Response:   service.ResponseAccept,
	}, nil))
}
