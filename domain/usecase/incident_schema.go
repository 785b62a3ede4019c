package usecase

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pyama86/securereport/domain/entity"
	"github.com/pyama86/securereport/domain/repository"
)

// incidentFromFields はイベントまたはタプルを
// (id, description, reportedBy, timestamp) のスキーマでデコードする
func incidentFromFields(fields map[string]any) (*entity.Incident, error) {
	for _, name := range repository.IncidentFields {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("%w: field %q is missing", entity.ErrMalformedReceipt, name)
		}
	}

	id, err := uintField(fields, "id")
	if err != nil {
		return nil, err
	}
	description, ok := fields["description"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: description is %T", entity.ErrMalformedReceipt, fields["description"])
	}
	reporter, ok := fields["reportedBy"].(common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: reportedBy is %T", entity.ErrMalformedReceipt, fields["reportedBy"])
	}
	ts, err := uintField(fields, "timestamp")
	if err != nil {
		return nil, err
	}
	if ts > uint64(1<<63-1) {
		return nil, fmt.Errorf("%w: timestamp %d is out of range", entity.ErrMalformedReceipt, ts)
	}

	return &entity.Incident{
		ID:          id,
		Description: description,
		ReportedBy:  reporter.Hex(),
		Timestamp:   time.Unix(int64(ts), 0).UTC(),
	}, nil
}

// incidentFromTuple は名前のない戻り値を位置でスキーマに当てはめる
func incidentFromTuple(values []any) (*entity.Incident, error) {
	if len(values) != len(repository.IncidentFields) {
		return nil, fmt.Errorf("%w: expected %d values, got %d", entity.ErrMalformedReceipt, len(repository.IncidentFields), len(values))
	}
	fields := make(map[string]any, len(values))
	for i, name := range repository.IncidentFields {
		fields[name] = values[i]
	}
	return incidentFromFields(fields)
}

func uintField(fields map[string]any, name string) (uint64, error) {
	v, ok := fields[name].(*big.Int)
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s is %T", entity.ErrMalformedReceipt, name, fields[name])
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s %s does not fit in uint64", entity.ErrMalformedReceipt, name, v.String())
	}
	return v.Uint64(), nil
}

// isZeroIncident は存在しないIDに対して台帳が返すゼロ値かどうか
func isZeroIncident(i *entity.Incident) bool {
	return i.ID == 0 && i.Description == "" && i.ReportedBy == (common.Address{}).Hex()
}
