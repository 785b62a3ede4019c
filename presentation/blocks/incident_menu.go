package blocks

import (
	"github.com/slack-go/slack"
)

func IncidentMenu() []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(
				"mrkdwn",
				"ご要件は何でしょうか？\n`report <内容>` で報告、`get <ID>` で検索、`count` で件数を確認できます。",
				false,
				false,
			),
			nil,
			nil,
		),
		slack.NewActionBlock(
			"incident_menu_action",
			slack.NewButtonBlockElement(
				"report_incident_action",
				"report",
				slack.NewTextBlockObject("plain_text", "🚨 インシデントを報告", false, false),
			).WithStyle(slack.StyleDanger),
			slack.NewButtonBlockElement(
				"search_incident_action",
				"search",
				slack.NewTextBlockObject("plain_text", "🔍 インシデントを検索", false, false),
			),
		),
	}
}
