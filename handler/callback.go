package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pyama86/securereport/domain/repository"
	"github.com/pyama86/securereport/presentation/blocks"
	"github.com/slack-go/slack"
)

const (
	ReportIncidentModalID = "report_incident_modal"
	SearchIncidentModalID = "search_incident_modal"
)

type CallbackHandler struct {
	ctx   context.Context
	slack repository.SlackRepositoryer
	ops   *Operations
}

func NewCallbackHandler(ctx context.Context, slackRepository repository.SlackRepositoryer, ops *Operations) *CallbackHandler {
	return &CallbackHandler{
		ctx:   ctx,
		slack: slackRepository,
		ops:   ops,
	}
}

func (h *CallbackHandler) Handle(callback *slack.InteractionCallback) error {
	switch callback.Type {
	case slack.InteractionTypeBlockActions:
		if len(callback.ActionCallback.BlockActions) < 1 {
			return fmt.Errorf("block_actions is empty")
		}
		action := callback.ActionCallback.BlockActions[0]

		switch action.ActionID {
		case "report_incident_action":
			if err := h.openModal(callback.TriggerID, callback.Channel.ID, ReportIncidentModalID, "インシデントの報告", "報告", blocks.ReportIncident()); err != nil {
				return fmt.Errorf("openModal failed: %w", err)
			}
		case "search_incident_action":
			if err := h.openModal(callback.TriggerID, callback.Channel.ID, SearchIncidentModalID, "インシデントの検索", "検索", blocks.SearchIncident()); err != nil {
				return fmt.Errorf("openModal failed: %w", err)
			}
		default:
			return nil
		}

		h.slack.UpdateMessage(
			callback.Channel.ID,
			callback.Message.Timestamp,
			slack.MsgOptionBlocks(blocks.Processing(fmt.Sprintf("<@%s> が入力中です", callback.User.ID))...),
		)
	case slack.InteractionTypeViewSubmission:
		return h.handleViewSubmission(callback)
	}
	return nil
}

func (h *CallbackHandler) openModal(triggerID, channelID, callbackID, title, submit string, body slack.Blocks) error {
	modalRequest := slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      callbackID,
		Title:           slack.NewTextBlockObject("plain_text", title, false, false),
		Submit:          slack.NewTextBlockObject("plain_text", submit, false, false),
		Close:           slack.NewTextBlockObject("plain_text", "キャンセル", false, false),
		Blocks:          body,
		PrivateMetadata: channelID,
	}
	return h.slack.OpenView(triggerID, modalRequest)
}

func viewValue(callback *slack.InteractionCallback, blockID, actionID string) string {
	if callback.View.State == nil {
		return ""
	}
	values, ok := callback.View.State.Values[blockID]
	if !ok {
		return ""
	}
	return values[actionID].Value
}

func (h *CallbackHandler) handleViewSubmission(callback *slack.InteractionCallback) error {
	channelID := callback.View.PrivateMetadata
	if channelID == "" {
		return fmt.Errorf("channel is not set on view %s", callback.View.CallbackID)
	}

	switch callback.View.CallbackID {
	case ReportIncidentModalID:
		description := viewValue(callback, blocks.ReportIncidentBlockID, blocks.ReportIncidentActionID)
		slog.Info("report_incident_modal", slog.String("channel", channelID), slog.String("user", callback.User.ID))
		return h.ops.report(h.ctx, channelID, "", description)
	case SearchIncidentModalID:
		rawID := viewValue(callback, blocks.SearchIncidentBlockID, blocks.SearchIncidentActionID)
		return h.ops.fetch(h.ctx, channelID, "", rawID)
	}
	return nil
}
