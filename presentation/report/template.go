package report

import (
	"fmt"
	"time"

	"github.com/pyama86/securereport/domain/entity"
)

// Render はCLI向けにインシデントを表示する
func Render(incident *entity.Incident, loc *time.Location) string {
	out := fmt.Sprintf(`
# インシデント #%d

## 日時

%s

## 報告者

%s

## 内容

%s
`, incident.ID, incident.LocalTime(loc), incident.ReportedBy, incident.Description)
	if incident.TxHash != "" {
		out += fmt.Sprintf(`
## トランザクション

%s
`, incident.TxHash)
	}
	return out
}

func RenderCount(count uint64) string {
	return fmt.Sprintf("台帳に記録されたインシデント: %d件\n", count)
}
