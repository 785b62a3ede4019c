package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/pyama86/securereport/presentation/blocks"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

type EventHandler struct {
	ctx   context.Context
	botID string
	ops   *Operations
}

func NewEventHandler(ctx context.Context, botID string, ops *Operations) *EventHandler {
	return &EventHandler{
		ctx:   ctx,
		botID: botID,
		ops:   ops,
	}
}

func (h *EventHandler) Handle(event *slackevents.EventsAPIInnerEvent) error {
	switch ev := event.Data.(type) {
	case *slackevents.AppMentionEvent:
		slog.Info("AppMentionEvent", "user", ev.User, "channel", ev.Channel)
		return h.handleMentionEvent(ev)
	}
	return nil
}

// parseMention はメンションを取り除き、先頭の単語をコマンドとして返す
func parseMention(text, botID string) (string, string) {
	text = strings.TrimSpace(strings.ReplaceAll(text, fmt.Sprintf("<@%s>", botID), ""))
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return strings.ToLower(text), ""
	}
	return strings.ToLower(text[:i]), strings.TrimSpace(text[i:])
}

func (h *EventHandler) handleMentionEvent(event *slackevents.AppMentionEvent) error {
	command, args := parseMention(event.Text, h.botID)
	threadTS := event.ThreadTimeStamp

	switch command {
	case "report":
		return h.ops.report(h.ctx, event.Channel, threadTS, args)
	case "get":
		return h.ops.fetch(h.ctx, event.Channel, threadTS, args)
	case "count":
		return h.ops.count(h.ctx, event.Channel, threadTS)
	case "connect":
		return h.ops.connect(h.ctx, event.Channel, threadTS)
	}

	if _, err := h.ops.slack.PostMessage(
		event.Channel,
		msgOptions(threadTS, slack.MsgOptionBlocks(blocks.IncidentMenu()...))...,
	); err != nil {
		return fmt.Errorf("failed to PostMessage: %w", err)
	}
	return nil
}
