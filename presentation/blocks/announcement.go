package blocks

import (
	"fmt"
	"time"

	"github.com/pyama86/securereport/domain/entity"
	"github.com/slack-go/slack"
)

// IncidentAnnouncement は周知チャンネルへの投稿
// title が空の場合は見出しを付けない
func IncidentAnnouncement(incident *entity.Incident, title string, loc *time.Location) []slack.Block {
	heading := fmt.Sprintf("🚨 新しいインシデント #%d が報告されました", incident.ID)
	if title != "" {
		heading = fmt.Sprintf("%s\n*%s*", heading, title)
	}
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", heading, false, false),
			[]*slack.TextBlockObject{
				slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*事象内容:* %s", incident.Description), false, false),
				slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*報告者:* `%s`", incident.ShortReporter()), false, false),
				slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*日時:* %s", incident.LocalTime(loc)), false, false),
			},
			nil,
		),
	}
}
