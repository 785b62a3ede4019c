package entity

import (
	"errors"
)

// ProviderUnavailable はウォレットが存在しない、ConnectionRejected はユーザーまたはウォレットが承認を拒否した
var (
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	ErrConnectionRejected  = errors.New("wallet connection rejected")
	ErrNoActiveSession     = errors.New("no active wallet session")
	ErrValidation          = errors.New("validation error")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrMalformedReceipt    = errors.New("malformed receipt")
	ErrIncidentNotFound    = errors.New("incident not found")
	ErrNetwork             = errors.New("network error")
	ErrOperationInFlight   = errors.New("operation already in flight")
)

var errorKinds = []struct {
	err   error
	kind  string
	local bool
}{
	{ErrValidation, "validation", true},
	{ErrNoActiveSession, "no_active_session", true},
	{ErrOperationInFlight, "in_flight", true},
	{ErrProviderUnavailable, "provider_unavailable", true},
	{ErrConnectionRejected, "connection_rejected", false},
	{ErrTransactionReverted, "transaction_reverted", false},
	{ErrMalformedReceipt, "malformed_receipt", false},
	{ErrIncidentNotFound, "not_found", false},
	{ErrNetwork, "network", false},
}

// ErrorKind はログやメトリクスに使うエラー種別を返す
func ErrorKind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "unknown"
}

// IsLocal はネットワークに触れる前に失敗したエラーかどうかを返す
func IsLocal(err error) bool {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.local
		}
	}
	return false
}
