package handler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyama86/securereport/domain/entity"
	"github.com/pyama86/securereport/domain/usecase"
	"github.com/pyama86/securereport/handler"
	"github.com/pyama86/securereport/presentation/blocks"
)

func blockAction(actionID string) *slack.InteractionCallback {
	return &slack.InteractionCallback{
		Type:      slack.InteractionTypeBlockActions,
		TriggerID: "TRIGGER",
		Channel:   slack.Channel{GroupConversation: slack.GroupConversation{Conversation: slack.Conversation{ID: "CINC"}}},
		User:      slack.User{ID: "U1"},
		Message:   slack.Message{Msg: slack.Msg{Timestamp: "1700000000.000001"}},
		ActionCallback: slack.ActionCallbacks{
			BlockActions: []*slack.BlockAction{{ActionID: actionID}},
		},
	}
}

func viewSubmission(callbackID, channelID, blockID, actionID, value string) *slack.InteractionCallback {
	return &slack.InteractionCallback{
		Type: slack.InteractionTypeViewSubmission,
		User: slack.User{ID: "U1"},
		View: slack.View{
			CallbackID:      callbackID,
			PrivateMetadata: channelID,
			State: &slack.ViewState{Values: map[string]map[string]slack.BlockAction{
				blockID: {actionID: {Value: value}},
			}},
		},
	}
}

func TestCallbackHandler_OpensModals(t *testing.T) {
	tests := []struct {
		actionID   string
		callbackID string
	}{
		{"report_incident_action", handler.ReportIncidentModalID},
		{"search_incident_action", handler.SearchIncidentModalID},
	}

	for _, tt := range tests {
		t.Run(tt.actionID, func(t *testing.T) {
			f := newFixture()
			h := handler.NewCallbackHandler(context.Background(), f.slack, f.ops)

			require.NoError(t, h.Handle(blockAction(tt.actionID)))

			require.Len(t, f.slack.views, 1)
			assert.Equal(t, tt.callbackID, f.slack.views[0].CallbackID)
			assert.Equal(t, "CINC", f.slack.views[0].PrivateMetadata)

			require.Len(t, f.slack.updated, 1)
			assert.Equal(t, "1700000000.000001", f.slack.updated[0].ts)
			assert.Contains(t, f.slack.updated[0].blocks(), "が入力中です")
		})
	}
}

func TestCallbackHandler_UnknownAction(t *testing.T) {
	f := newFixture()
	h := handler.NewCallbackHandler(context.Background(), f.slack, f.ops)

	require.NoError(t, h.Handle(blockAction("other_action")))
	assert.Empty(t, f.slack.views)
	assert.Empty(t, f.slack.updated)

	empty := blockAction("x")
	empty.ActionCallback.BlockActions = nil
	assert.Error(t, h.Handle(empty))
}

func TestCallbackHandler_ReportModalSubmission(t *testing.T) {
	f := newFixture()
	h := handler.NewCallbackHandler(context.Background(), f.slack, f.ops)

	err := h.Handle(viewSubmission(
		handler.ReportIncidentModalID,
		"CINC",
		blocks.ReportIncidentBlockID,
		blocks.ReportIncidentActionID,
		"Power outage at site 4\nUPS did not take over",
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"Power outage at site 4\nUPS did not take over"}, f.workflow.submitted)
	require.NotEmpty(t, f.slack.posted)
	assert.Equal(t, "CINC", f.slack.posted[0].channel)
	require.NotEmpty(t, f.slack.updated)
	assert.Contains(t, f.slack.updated[0].blocks(), "インシデントを報告しました")
}

func TestCallbackHandler_SearchModalSubmission(t *testing.T) {
	f := newFixture()
	h := handler.NewCallbackHandler(context.Background(), f.slack, f.ops)

	err := h.Handle(viewSubmission(
		handler.SearchIncidentModalID,
		"CINC",
		blocks.SearchIncidentBlockID,
		blocks.SearchIncidentActionID,
		"1",
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"1"}, f.workflow.fetched)
	require.Len(t, f.slack.posted, 1)
	assert.Contains(t, f.slack.posted[0].blocks(), "Power outage at site 4")
}

func TestCallbackHandler_SubmissionWithoutChannel(t *testing.T) {
	f := newFixture()
	h := handler.NewCallbackHandler(context.Background(), f.slack, f.ops)

	err := h.Handle(viewSubmission(handler.SearchIncidentModalID, "", blocks.SearchIncidentBlockID, blocks.SearchIncidentActionID, "1"))
	assert.Error(t, err)
	assert.Empty(t, f.workflow.fetched)
}

// 最初の PostMessage だけ release が閉じられるまで止める
type stallingSlackRepo struct {
	*mockSlackRepo
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (m *stallingSlackRepo) PostMessage(channelID string, opts ...slack.MsgOption) (string, error) {
	first := false
	m.once.Do(func() { first = true })
	if first {
		close(m.entered)
		<-m.release
	}
	return m.mockSlackRepo.PostMessage(channelID, opts...)
}

type connectedSessions struct{}

func (connectedSessions) Connect(context.Context) (common.Address, error) { return testAccount, nil }

func (connectedSessions) Account() (common.Address, bool) { return testAccount, true }

type recordingSubmitter struct {
	mu           sync.Mutex
	descriptions []string
}

func (r *recordingSubmitter) Submit(_ context.Context, description string) (*entity.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptions = append(r.descriptions, description)
	return &entity.Incident{
		ID:          uint64(len(r.descriptions)),
		Description: description,
		ReportedBy:  testAccount.Hex(),
		Timestamp:   time.Unix(1700000000, 0).UTC(),
	}, nil
}

func TestCallbackHandler_ConcurrentReportModalSubmissions(t *testing.T) {
	slackRepo := &stallingSlackRepo{
		mockSlackRepo: &mockSlackRepo{},
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	submitter := &recordingSubmitter{}
	workflow := usecase.NewWorkflow(connectedSessions{}, submitter, nil, time.Hour)
	defer workflow.Close()

	announcer := handler.NewAnnouncer(slackRepo, nil, nil, time.UTC)
	ops := handler.NewOperations(workflow, &mockCounter{}, slackRepo, announcer, time.UTC)
	h := handler.NewCallbackHandler(context.Background(), slackRepo, ops)

	submit := func(description string) error {
		return h.Handle(viewSubmission(
			handler.ReportIncidentModalID,
			"CINC",
			blocks.ReportIncidentBlockID,
			blocks.ReportIncidentActionID,
			description,
		))
	}

	errA := make(chan error, 1)
	go func() { errA <- submit("user A: fire in rack 3") }()
	<-slackRepo.entered

	require.NoError(t, submit("user B: power outage"))
	close(slackRepo.release)
	require.NoError(t, <-errA)

	submitter.mu.Lock()
	assert.Equal(t, []string{"user B: power outage", "user A: fire in rack 3"}, submitter.descriptions)
	submitter.mu.Unlock()

	slackRepo.mu.Lock()
	defer slackRepo.mu.Unlock()
	require.Len(t, slackRepo.updated, 2)
	for _, u := range slackRepo.updated {
		assert.Contains(t, u.blocks(), "インシデントを報告しました")
		assert.NotContains(t, u.blocks(), blocks.FailureMessage(entity.ErrValidation))
	}
}
