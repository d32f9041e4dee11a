package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// FarmMetrics tracks reward program activity.
type FarmMetrics struct {
	totalStaked *prometheus.GaugeVec
	rewardsPaid *prometheus.CounterVec
	programs    prometheus.Counter
}

var (
	farmOnce     sync.Once
	farmRegistry *FarmMetrics
)

// Farm returns the singleton metrics registry for reward programs.
func Farm() *FarmMetrics {
	farmOnce.Do(func() {
		farmRegistry = &FarmMetrics{
			totalStaked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "farm_total_staked",
				Help: "Principal currently staked per reward program.",
			}, []string{"farm"}),
			rewardsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "farm_rewards_paid_total",
				Help: "Cumulative rewards paid out per reward program.",
			}, []string{"farm"}),
			programs: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "farm_programs_created_total",
				Help: "Count of reward programs created.",
			}),
		}
		prometheus.MustRegister(
			farmRegistry.totalStaked,
			farmRegistry.rewardsPaid,
			farmRegistry.programs,
		)
	})
	return farmRegistry
}

// SetTotalStaked updates the staked-principal gauge for a program.
func (m *FarmMetrics) SetTotalStaked(farmID string, total *big.Int) {
	if m == nil {
		return
	}
	if farmID == "" {
		farmID = "unknown"
	}
	m.totalStaked.WithLabelValues(farmID).Set(bigToFloat(total))
}

// RecordRewardPaid adds a reward payout to the program's running total.
func (m *FarmMetrics) RecordRewardPaid(farmID string, amount *big.Int) {
	if m == nil {
		return
	}
	if farmID == "" {
		farmID = "unknown"
	}
	value := bigToFloat(amount)
	if value < 0 {
		return
	}
	m.rewardsPaid.WithLabelValues(farmID).Add(value)
}

// ObserveProgramCreated counts a newly created reward program.
func (m *FarmMetrics) ObserveProgramCreated() {
	if m == nil {
		return
	}
	m.programs.Inc()
}

// VestingMetrics tracks vesting grant activity.
type VestingMetrics struct {
	outstanding prometheus.Gauge
	claims      prometheus.Counter
	grants      *prometheus.CounterVec
}

var (
	vestingOnce     sync.Once
	vestingRegistry *VestingMetrics
)

// Vesting returns the singleton metrics registry for vesting grants.
func Vesting() *VestingMetrics {
	vestingOnce.Do(func() {
		vestingRegistry = &VestingMetrics{
			outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vesting_outstanding_total",
				Help: "Engine-wide unvested-or-unclaimed amount across active grants.",
			}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vesting_claims_total",
				Help: "Count of successful vesting claims.",
			}),
			grants: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vesting_grants_total",
				Help: "Count of grant lifecycle transitions by kind.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			vestingRegistry.outstanding,
			vestingRegistry.claims,
			vestingRegistry.grants,
		)
	})
	return vestingRegistry
}

// SetOutstanding updates the engine-wide outstanding vesting gauge.
func (m *VestingMetrics) SetOutstanding(total *big.Int) {
	if m == nil {
		return
	}
	m.outstanding.Set(bigToFloat(total))
}

// ObserveClaim counts a successful vesting claim.
func (m *VestingMetrics) ObserveClaim() {
	if m == nil {
		return
	}
	m.claims.Inc()
}

// ObserveGrant counts a grant lifecycle transition, e.g. "created" or
// "canceled".
func (m *VestingMetrics) ObserveGrant(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.grants.WithLabelValues(kind).Inc()
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
