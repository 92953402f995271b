package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics метрики спорных сделок, возвратов и проверок на мошенничество.
type Metrics struct {
	// Решения по спорам
	ResolutionsTotal *prometheus.CounterVec
	// Запросы на возврат по итоговому статусу
	RefundsTotal *prometheus.CounterVec
	// Ошибки внешнего расчёта
	SettlementFailuresTotal *prometheus.CounterVec
	SettlementDuration      *prometheus.HistogramVec
	// Потерянные гонки CAS и занятые блокировки
	ConflictsTotal *prometheus.CounterVec
	// Разобранные события мошенничества по уровню риска
	FraudReviewsTotal *prometheus.CounterVec

	DisputesOpenedTotal prometheus.Counter
}

// New регистрирует метрики в reg. В сервере это prometheus.DefaultRegisterer, в тестах отдельный реестр.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ResolutionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_dispute_resolutions_total",
				Help: "Количество разрешённых споров по типу решения",
			},
			[]string{"resolution"},
		),
		RefundsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_refund_requests_total",
				Help: "Переходы запросов на возврат по статусу",
			},
			[]string{"status"},
		),
		SettlementFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_settlement_failures_total",
				Help: "Ошибки вызова платёжного процессора",
			},
			[]string{"operation"},
		),
		SettlementDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "escrow_settlement_duration_seconds",
				Help:    "Время вызова платёжного процессора",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"operation", "outcome"},
		),
		ConflictsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_conflicts_total",
				Help: "Конфликты параллельного изменения сделок",
			},
			[]string{"kind"},
		),
		FraudReviewsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fraud_event_reviews_total",
				Help: "Разобранные события мошенничества",
			},
			[]string{"band", "status"},
		),
		DisputesOpenedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "escrow_disputes_opened_total",
				Help: "Открытые споры",
			},
		),
	}
}

func (m *Metrics) RecordResolution(resolution string) {
	m.ResolutionsTotal.WithLabelValues(resolution).Inc()
}

func (m *Metrics) RecordRefund(status string) {
	m.RefundsTotal.WithLabelValues(status).Inc()
}

// ObserveSettlement записывает длительность вызова процессора и, при ошибке, счётчик сбоев.
func (m *Metrics) ObserveSettlement(operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.SettlementFailuresTotal.WithLabelValues(operation).Inc()
	}
	m.SettlementDuration.WithLabelValues(operation, outcome).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordConflict(kind string) {
	m.ConflictsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordFraudReview(band, status string) {
	m.FraudReviewsTotal.WithLabelValues(band, status).Inc()
}

func (m *Metrics) RecordDisputeOpened() {
	m.DisputesOpenedTotal.Inc()
}
