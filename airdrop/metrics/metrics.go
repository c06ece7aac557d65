// Package metrics exposes airdrop counters and gauges to Prometheus.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/referral"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/users"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/withdraw"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/middleware"
	tgsender "github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/sender"
)

const namespace = "airdrop"

// Metrics owns the registry and every airdrop collector. It satisfies the
// engine and admin observers.
type Metrics struct {
	Registry *prometheus.Registry
	Updates  *middleware.UpdateMetrics

	contacts    *prometheus.CounterVec
	referrals   *prometheus.CounterVec
	onboarded   prometheus.Counter
	withdrawals *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	outbound    *prometheus.CounterVec

	usersByStep    *prometheus.GaugeVec
	totalUsers     prometheus.Gauge
	totalReferrals prometheus.Gauge
	totalBalance   prometheus.Gauge
}

// New creates a registry with runtime collectors and the airdrop metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Updates:  middleware.NewUpdateMetrics(reg),
		contacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contacts_total",
			Help:      "First contacts by whether a record was created.",
		}, []string{"result"}),
		referrals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referrals_total",
			Help:      "Referral attempts by outcome.",
		}, []string{"result"}),
		onboarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "onboarded_total",
			Help:      "Users who completed wallet capture.",
		}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawal_requests_total",
			Help:      "Withdrawal requests by amount source.",
		}, []string{"source"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "deliveries_total",
			Help:      "Admin initiated deliveries by kind and outcome.",
		}, []string{"kind", "status"}),
		outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tg",
			Name:      "outbound_jobs_total",
			Help:      "Dispatcher jobs by action and final outcome.",
		}, []string{"action", "status"}),
		usersByStep: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users_by_step",
			Help:      "Users currently at each step.",
		}, []string{"step"}),
		totalUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users",
			Help:      "Known users.",
		}),
		totalReferrals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "referrals",
			Help:      "Sum of referral counts.",
		}),
		totalBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_tokens",
			Help:      "Sum of balances.",
		}),
	}
	reg.MustRegister(
		m.contacts, m.referrals, m.onboarded, m.withdrawals, m.deliveries, m.outbound,
		m.usersByStep, m.totalUsers, m.totalReferrals, m.totalBalance,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case tgsender.IsBlocked(err):
		return "blocked"
	}
	return "fail"
}

// Contact counts a first contact.
func (m *Metrics) Contact(created bool) {
	if created {
		m.contacts.WithLabelValues("created").Inc()
		return
	}
	m.contacts.WithLabelValues("existing").Inc()
}

// Referral counts a referral attempt.
func (m *Metrics) Referral(res referral.Result) {
	if res.Credited {
		m.referrals.WithLabelValues("credited").Inc()
		return
	}
	if res.Reason == referral.SkipNoToken {
		return
	}
	m.referrals.WithLabelValues(res.Reason).Inc()
}

// Onboarded counts a completed wallet capture.
func (m *Metrics) Onboarded() { m.onboarded.Inc() }

// WithdrawalRequested counts a submitted withdrawal.
func (m *Metrics) WithdrawalRequested(req withdraw.Request) {
	source := "claimed"
	if req.FromBalance {
		source = "balance"
	}
	m.withdrawals.WithLabelValues(source).Inc()
}

// Delivered counts an admin delivery.
func (m *Metrics) Delivered(kind string, err error) {
	m.deliveries.WithLabelValues(kind, status(err)).Inc()
}

// JobResult counts a finished dispatcher job.
func (m *Metrics) JobResult(action string, err error) {
	m.outbound.WithLabelValues(action, status(err)).Inc()
}

// Refresh recomputes the aggregate gauges from store.
func (m *Metrics) Refresh(ctx context.Context, store users.Store) error {
	st, err := store.Aggregate(ctx)
	if err != nil {
		return fmt.Errorf("refresh aggregate: %w", err)
	}
	steps, err := store.CountByStep(ctx)
	if err != nil {
		return fmt.Errorf("refresh steps: %w", err)
	}
	m.totalUsers.Set(float64(st.Users))
	m.totalReferrals.Set(float64(st.Referrals))
	m.totalBalance.Set(float64(st.Balance))
	for step, n := range steps {
		m.usersByStep.WithLabelValues(string(step)).Set(float64(n))
	}
	return nil
}
