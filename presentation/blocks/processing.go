package blocks

import "github.com/slack-go/slack"

func Processing(text string) []slack.Block {
	return []slack.Block{
		slack.NewContextBlock(
			"",
			slack.NewTextBlockObject("mrkdwn", "⏳ "+text, false, false),
		),
	}
}
