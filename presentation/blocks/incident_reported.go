package blocks

import (
	"fmt"
	"time"

	"github.com/pyama86/securereport/domain/entity"
	"github.com/slack-go/slack"
)

// IncidentReportedBanner は成功表示期間中に出すバナー
func IncidentReportedBanner(incident *entity.Incident) []slack.Block {
	return []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject("plain_text", "✅ インシデントを報告しました！", false, false),
		),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*ID:* #%d", incident.ID), false, false),
			nil,
			nil,
		),
	}
}

// IncidentReported は成功表示期間が終わった後に残す報告結果
func IncidentReported(incident *entity.Incident, loc *time.Location) []slack.Block {
	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*ID:* #%d", incident.ID), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*日時:* %s", incident.LocalTime(loc)), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*報告者:* `%s`", incident.ReportedBy), false, false),
	}
	if incident.TxHash != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*トランザクション:* `%s`", incident.TxHash), false, false))
	}
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", "✅ *報告が完了しました*", false, false),
			fields,
			nil,
		),
	}
}
