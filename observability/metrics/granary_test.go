package metrics

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherMetric(t *testing.T, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metric:
		for _, metric := range family.Metric {
			for key, want := range labels {
				found := false
				for _, pair := range metric.Label {
					if pair.GetName() == key && pair.GetValue() == want {
						found = true
						break
					}
				}
				if !found {
					continue metric
				}
			}
			return metric
		}
	}
	return nil
}

func TestFarmMetricsRecordActivity(t *testing.T) {
	reg := Farm()
	reg.SetTotalStaked("harvest-metrics", big.NewInt(1234))
	reg.RecordRewardPaid("harvest-metrics", big.NewInt(500))
	reg.RecordRewardPaid("harvest-metrics", big.NewInt(250))

	staked := gatherMetric(t, "farm_total_staked", map[string]string{"farm": "harvest-metrics"})
	if staked == nil || staked.Gauge == nil {
		t.Fatal("farm_total_staked not gathered")
	}
	if got := staked.Gauge.GetValue(); got != 1234 {
		t.Fatalf("total staked gauge %v, want 1234", got)
	}

	paid := gatherMetric(t, "farm_rewards_paid_total", map[string]string{"farm": "harvest-metrics"})
	if paid == nil || paid.Counter == nil {
		t.Fatal("farm_rewards_paid_total not gathered")
	}
	if got := paid.Counter.GetValue(); got != 750 {
		t.Fatalf("rewards paid counter %v, want 750", got)
	}

	// Overwriting the gauge replaces rather than accumulates.
	reg.SetTotalStaked("harvest-metrics", big.NewInt(34))
	staked = gatherMetric(t, "farm_total_staked", map[string]string{"farm": "harvest-metrics"})
	if got := staked.Gauge.GetValue(); got != 34 {
		t.Fatalf("total staked gauge %v after update, want 34", got)
	}
}

func TestVestingMetricsRecordActivity(t *testing.T) {
	reg := Vesting()
	reg.SetOutstanding(big.NewInt(507))
	reg.ObserveGrant("created")
	reg.ObserveGrant("created")
	reg.ObserveGrant("canceled")

	outstanding := gatherMetric(t, "vesting_outstanding_total", nil)
	if outstanding == nil || outstanding.Gauge == nil {
		t.Fatal("vesting_outstanding_total not gathered")
	}
	if got := outstanding.Gauge.GetValue(); got != 507 {
		t.Fatalf("outstanding gauge %v, want 507", got)
	}

	created := gatherMetric(t, "vesting_grants_total", map[string]string{"kind": "created"})
	if created == nil || created.Counter == nil {
		t.Fatal("vesting_grants_total{kind=created} not gathered")
	}
	if got := created.Counter.GetValue(); got < 2 {
		t.Fatalf("created counter %v, want at least 2", got)
	}
}

func TestMetricsTolerateNilReceivers(t *testing.T) {
	var farm *FarmMetrics
	farm.SetTotalStaked("x", big.NewInt(1))
	farm.RecordRewardPaid("x", nil)
	farm.ObserveProgramCreated()

	var vesting *VestingMetrics
	vesting.SetOutstanding(nil)
	vesting.ObserveClaim()
	vesting.ObserveGrant("")
}
