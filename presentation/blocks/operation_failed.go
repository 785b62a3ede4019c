package blocks

import (
	"fmt"

	"github.com/pyama86/securereport/domain/entity"
	"github.com/slack-go/slack"
)

var failureMessages = map[string]string{
	"validation":           "⚠️ 入力内容を確認してください",
	"no_active_session":    "🔌 ウォレットが接続されていません",
	"provider_unavailable": "🧩 ウォレットが見つかりません。キーストアまたは秘密鍵を設定してください",
	"connection_rejected":  "🚫 ウォレットの接続または署名が拒否されました",
	"in_flight":            "⏳ 別のインシデントを送信中です。完了までお待ちください",
	"transaction_reverted": "⛔ トランザクションが台帳に拒否されました",
	"malformed_receipt":    "❓ 確定したトランザクションからインシデントを読み取れませんでした",
	"not_found":            "🔍 指定されたIDのインシデントは存在しません",
	"network":              "📡 台帳との通信に失敗しました",
}

// FailureMessage はエラー種別ごとに区別できるメッセージを返す
func FailureMessage(err error) string {
	if msg, ok := failureMessages[entity.ErrorKind(err)]; ok {
		return msg
	}
	return "❌ エラーが発生しました"
}

func OperationFailed(operation string, err error) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*%s*\n%s", FailureMessage(err), operation), false, false),
			nil,
			nil,
		),
		slack.NewContextBlock(
			"",
			slack.NewTextBlockObject("plain_text", err.Error(), false, false),
		),
	}
}
