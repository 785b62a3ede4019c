// Package metrics はインシデント台帳クライアントの Prometheus メトリクス
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ラベルにはエラー種別だけを使い、インシデントIDやアカウントは載せない
var (
	OperationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "securereport_operation_total",
		Help: "Total number of workflow operations, by operation and result kind.",
	}, []string{"operation", "result"})

	OperationInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "securereport_operation_in_flight",
		Help: "Current number of in-flight workflow operations, by operation.",
	}, []string{"operation"})

	ConfirmationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "securereport_confirmation_seconds",
		Help:    "Time from transaction submission to confirmation.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	WalletConnectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "securereport_wallet_connect_total",
		Help: "Total number of wallet connect attempts, by result kind.",
	}, []string{"result"})
)

func RecordOperation(operation, result string) {
	OperationTotal.WithLabelValues(operation, result).Inc()
}

func TrackInFlight(operation string) func() {
	g := OperationInFlight.WithLabelValues(operation)
	g.Inc()
	return g.Dec
}

func ObserveConfirmation(submittedAt time.Time) {
	ConfirmationSeconds.Observe(time.Since(submittedAt).Seconds())
}

func RecordConnect(result string) {
	WalletConnectTotal.WithLabelValues(result).Inc()
}
