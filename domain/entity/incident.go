package entity

import (
	"fmt"
	"strings"
	"time"
)

// Incident は台帳に記録されたインシデント
// 台帳が正であり、クライアントは読み取り専用のコピーを持つだけ
type Incident struct {
	ID          uint64    `json:"id"`
	Description string    `json:"description"`
	ReportedBy  string    `json:"reported_by"`
	Timestamp   time.Time `json:"timestamp"`
	// 送信直後のレコードにのみ設定される
	TxHash string `json:"tx_hash,omitempty"`
}

// ShortReporter は 0x1234...abcd の形式で報告者を返す
func (i *Incident) ShortReporter() string {
	return ShortAddress(i.ReportedBy)
}

func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return fmt.Sprintf("%s...%s", addr[:6], addr[len(addr)-4:])
}

// LocalTime は表示用に指定ロケーションへ変換した時刻を返す
func (i *Incident) LocalTime(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return i.Timestamp.In(loc).Format("2006-01-02 15:04:05 MST")
}

// IsBlankDescription は前後の空白を除いた説明が空かどうか
func IsBlankDescription(description string) bool {
	return strings.TrimSpace(description) == ""
}
