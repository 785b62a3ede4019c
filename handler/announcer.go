package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/pyama86/securereport/domain/entity"
	"github.com/pyama86/securereport/domain/repository"
	"github.com/pyama86/securereport/presentation/blocks"
	"github.com/slack-go/slack"
)

var channelIDPattern = regexp.MustCompile(`^[CG][A-Z0-9]{8,}$`)

// Announcer は報告されたインシデントを周知チャンネルに投稿する
type Announcer struct {
	slack    repository.SlackRepositoryer
	ai       repository.AIRepositorier
	channels []string
	loc      *time.Location
}

func NewAnnouncer(slackRepository repository.SlackRepositoryer, ai repository.AIRepositorier, channels []string, loc *time.Location) *Announcer {
	return &Announcer{
		slack:    slackRepository,
		ai:       ai,
		channels: channels,
		loc:      loc,
	}
}

// Announce は見つからないチャンネルやアーカイブ済みのチャンネルを飛ばす
func (a *Announcer) Announce(ctx context.Context, incident *entity.Incident) error {
	if len(a.channels) == 0 {
		return nil
	}

	title := a.title(ctx, incident)
	var errs []error
	flushed := false
	for _, name := range a.channels {
		channel, err := a.lookup(name)
		if errors.Is(err, repository.ErrSlackNotFound) && !flushed {
			// 作成されたばかりのチャンネルはキャッシュにないので一度だけ取り直す
			a.slack.FlushChannelCache()
			flushed = true
			channel, err = a.lookup(name)
		}
		if err != nil {
			if errors.Is(err, repository.ErrSlackNotFound) {
				slog.Warn("Announcement channel not found", slog.String("channel", name))
				continue
			}
			errs = append(errs, fmt.Errorf("failed to get channel %s: %w", name, err))
			continue
		}
		if channel.IsArchived {
			continue
		}

		if _, err := a.slack.PostMessage(
			channel.ID,
			slack.MsgOptionBlocks(blocks.IncidentAnnouncement(incident, title, a.loc)...),
		); err != nil {
			errs = append(errs, fmt.Errorf("failed to announce incident %d to %s: %w", incident.ID, name, err))
		}
	}
	return errors.Join(errs...)
}

// lookup はチャンネルIDとチャンネル名のどちらでも受け付ける
func (a *Announcer) lookup(channel string) (*slack.Channel, error) {
	if channelIDPattern.MatchString(channel) {
		return a.slack.GetChannelByID(channel)
	}
	return a.slack.GetChannelByName(channel)
}

func (a *Announcer) title(ctx context.Context, incident *entity.Incident) string {
	if a.ai == nil {
		return ""
	}
	title, err := a.ai.GenerateTitle(ctx, incident.Description)
	if err != nil {
		slog.Warn("Failed to generate title", slog.Uint64("id", incident.ID), slog.Any("err", err))
		return ""
	}
	return title
}
