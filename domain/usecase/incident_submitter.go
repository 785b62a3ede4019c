package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pyama86/securereport/domain/entity"
	"github.com/pyama86/securereport/domain/metrics"
	"github.com/pyama86/securereport/domain/repository"
)

// IncidentSubmitter は書き込み側の処理
// 送信、確定待ち、イベントのデコードまでを行う
type IncidentSubmitter struct {
	ledger   repository.LedgerRepositoryer
	sessions repository.SessionSource
}

func NewIncidentSubmitter(ledger repository.LedgerRepositoryer, sessions repository.SessionSource) *IncidentSubmitter {
	return &IncidentSubmitter{ledger: ledger, sessions: sessions}
}

// Submit は説明をそのまま台帳に記録する
// 検証とセッションの確認は台帳を呼ぶ前に行う
func (s *IncidentSubmitter) Submit(ctx context.Context, description string) (*entity.Incident, error) {
	if entity.IsBlankDescription(description) {
		return nil, fmt.Errorf("%w: description must not be empty", entity.ErrValidation)
	}
	if s.sessions == nil || s.sessions.Current() == nil {
		return nil, fmt.Errorf("%w: connect a wallet before reporting", entity.ErrNoActiveSession)
	}

	handle, err := s.ledger.Submit(ctx, repository.MethodReportIncident, description)
	if err != nil {
		return nil, fmt.Errorf("failed to submit incident: %w", err)
	}

	receipt, err := s.ledger.AwaitConfirmation(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm incident %s: %w", handle.Hash.Hex(), err)
	}
	metrics.ObserveConfirmation(handle.SubmittedAt)

	if len(receipt.Events) == 0 {
		return nil, fmt.Errorf("%w: transaction %s emitted no events", entity.ErrMalformedReceipt, handle.Hash.Hex())
	}
	ev := receipt.Events[0]
	if ev.Name != repository.EventIncidentReported {
		return nil, fmt.Errorf("%w: first event of %s is %s", entity.ErrMalformedReceipt, handle.Hash.Hex(), ev.Name)
	}

	incident, err := incidentFromFields(ev.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ev.Name, err)
	}
	incident.TxHash = handle.Hash.Hex()

	slog.Info("incident reported",
		slog.Uint64("id", incident.ID),
		slog.String("reported_by", incident.ReportedBy),
		slog.String("tx", incident.TxHash),
	)
	return incident, nil
}
