// Package metrics содержит счетчики Prometheus для проходов сверки.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsApplied - количество применённых переходов по типу действия.
	TransitionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_transitions_applied_total",
		Help: "Total entitlement transitions applied, labeled by action.",
	}, []string{"action"})

	// MemberFailures - количество участников, обработка которых завершилась ошибкой.
	MemberFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_member_failures_total",
		Help: "Total per-member processing failures, labeled by pass.",
	}, []string{"pass"})

	// RemindersSent - количество отправленных напоминаний по типу.
	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_reminders_sent_total",
		Help: "Total expiry reminders sent, labeled by kind.",
	}, []string{"kind"})

	// PassDuration - длительность проходов сверки.
	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconciler_pass_duration_seconds",
		Help:    "Duration of reconciliation passes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass"})
)
