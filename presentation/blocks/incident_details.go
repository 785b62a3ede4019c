package blocks

import (
	"fmt"
	"time"

	"github.com/pyama86/securereport/domain/entity"
	"github.com/slack-go/slack"
)

func IncidentDetails(incident *entity.Incident, loc *time.Location) []slack.Block {
	return []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject("plain_text", fmt.Sprintf("🔎 インシデント #%d", incident.ID), false, false),
		),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*内容:*\n%s", incident.Description), false, false),
			nil,
			nil,
		),
		slack.NewSectionBlock(
			nil,
			[]*slack.TextBlockObject{
				slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*報告者:* `%s`", incident.ReportedBy), false, false),
				slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*日時:* %s", incident.LocalTime(loc)), false, false),
			},
			nil,
		),
	}
}

func IncidentCount(count uint64) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("📚 台帳に記録されたインシデントは *%d件* です", count), false, false),
			nil,
			nil,
		),
	}
}
