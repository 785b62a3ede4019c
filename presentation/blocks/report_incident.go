package blocks

import (
	"github.com/slack-go/slack"
)

const (
	ReportIncidentBlockID  = "incident_description_block"
	ReportIncidentActionID = "description_text"
	SearchIncidentBlockID  = "incident_id_block"
	SearchIncidentActionID = "incident_id_text"
)

// ReportIncident は報告用モーダルの入力欄
func ReportIncident() slack.Blocks {
	return slack.Blocks{
		BlockSet: []slack.Block{
			slack.NewSectionBlock(
				slack.NewTextBlockObject(
					"mrkdwn",
					"報告内容は台帳に記録され、後から変更・削除できません。",
					false,
					false,
				),
				nil,
				nil,
			),
			slack.NewDividerBlock(),
			&slack.InputBlock{
				Type:    slack.MBTInput,
				BlockID: ReportIncidentBlockID,
				Label: &slack.TextBlockObject{
					Type: "plain_text",
					Text: "📝 インシデントの内容",
				},
				Element: &slack.PlainTextInputBlockElement{
					Type:      slack.METPlainTextInput,
					ActionID:  ReportIncidentActionID,
					Multiline: true,
					MaxLength: 1000,
					Placeholder: slack.NewTextBlockObject(
						"plain_text", "何が、いつ起きたのかを具体的に記載してください", false, false,
					),
				},
				Optional: false,
			},
		},
	}
}

// SearchIncident は検索用モーダルの入力欄
func SearchIncident() slack.Blocks {
	return slack.Blocks{
		BlockSet: []slack.Block{
			&slack.InputBlock{
				Type:    slack.MBTInput,
				BlockID: SearchIncidentBlockID,
				Label: &slack.TextBlockObject{
					Type: "plain_text",
					Text: "#️⃣ インシデントID",
				},
				Element: &slack.PlainTextInputBlockElement{
					Type:     slack.METPlainTextInput,
					ActionID: SearchIncidentActionID,
					Placeholder: slack.NewTextBlockObject(
						"plain_text", "例: 1", false, false,
					),
				},
				Optional: false,
			},
		},
	}
}
