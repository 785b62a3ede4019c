package usecase

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	ttlcache "github.com/jellydator/ttlcache/v3"
	"github.com/pyama86/securereport/domain/entity"
	"github.com/pyama86/securereport/domain/repository"
)

const lookupCacheCapacity = 4096

// IncidentLookup は読み取り側の処理
type IncidentLookup struct {
	ledger repository.LedgerRepositoryer
	// 記録済みのインシデントは変更されないのでIDでキャッシュできる
	cache *ttlcache.Cache[uint64, entity.Incident]
}

// NewIncidentLookup は cacheTTL が 0 ならキャッシュしない
func NewIncidentLookup(ledger repository.LedgerRepositoryer, cacheTTL time.Duration) *IncidentLookup {
	l := &IncidentLookup{ledger: ledger}
	if cacheTTL > 0 {
		l.cache = ttlcache.New(
			ttlcache.WithTTL[uint64, entity.Incident](cacheTTL),
			ttlcache.WithDisableTouchOnHit[uint64, entity.Incident](),
			ttlcache.WithCapacity[uint64, entity.Incident](lookupCacheCapacity),
		)
	}
	return l
}

// ParseIncidentID は10進の非負整数だけを受け付ける
func ParseIncidentID(raw string) (uint64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: incident id is empty", entity.ErrValidation)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: incident id %q must not be negative", entity.ErrValidation, raw)
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: incident id %q is not a non-negative integer", entity.ErrValidation, raw)
	}
	return id, nil
}

func (l *IncidentLookup) Fetch(ctx context.Context, rawID string) (*entity.Incident, error) {
	id, err := ParseIncidentID(rawID)
	if err != nil {
		return nil, err
	}
	return l.FetchByID(ctx, id)
}

// FetchByID は台帳からインシデントを取得する
// 台帳は存在しないIDにもゼロ値を返すので、それは ErrIncidentNotFound にする
func (l *IncidentLookup) FetchByID(ctx context.Context, id uint64) (*entity.Incident, error) {
	if l.cache != nil {
		if item := l.cache.Get(id); item != nil {
			incident := item.Value()
			return &incident, nil
		}
	}

	incident, err := l.fetch(ctx, repository.MethodGetIncident, id)
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		l.cache.Set(id, *incident, ttlcache.DefaultTTL)
	}
	return incident, nil
}

// FetchByIndex は incidents のストレージアクセサから取得する
func (l *IncidentLookup) FetchByIndex(ctx context.Context, index uint64) (*entity.Incident, error) {
	return l.fetch(ctx, repository.MethodIncidents, index)
}

// Count は台帳に記録されたインシデントの総数
func (l *IncidentLookup) Count(ctx context.Context) (uint64, error) {
	values, err := l.ledger.Call(ctx, repository.MethodIncidentCounter)
	if err != nil {
		return 0, fmt.Errorf("failed to call %s: %w", repository.MethodIncidentCounter, err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("%w: %s returned %d values", entity.ErrMalformedReceipt, repository.MethodIncidentCounter, len(values))
	}
	n, err := uintField(map[string]any{"count": values[0]}, "count")
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (l *IncidentLookup) fetch(ctx context.Context, method string, id uint64) (*entity.Incident, error) {
	values, err := l.ledger.Call(ctx, method, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to call %s(%d): %w", method, id, err)
	}
	incident, err := incidentFromTuple(values)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s(%d): %w", method, id, err)
	}
	if isZeroIncident(incident) {
		return nil, fmt.Errorf("%w: id %d", entity.ErrIncidentNotFound, id)
	}
	return incident, nil
}
