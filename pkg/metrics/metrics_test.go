package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

// sample returns the value of the series with the given name and label
// values (in label-name order) from registry, or -1 when it is not present.
func sample(registry prometheus.Gatherer, name string, labelValues ...string) float64 {
	families, err := registry.Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			var values []string
			for _, l := range m.GetLabel() {
				values = append(values, l.GetValue())
			}
			if len(values) != len(labelValues) {
				continue
			}
			for i := range values {
				if values[i] != labelValues[i] {
					continue next
				}
			}
			switch {
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return -1
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.queueLength.Set(3)

			Convey("Then collectors are registered under the custom names", func() {
				So(manager, ShouldNotBeNil)
				So(sample(registry, "test_unit_queue_length", "test"), ShouldEqual, 3)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording matchmaking metrics", func() {
			UpdateQueueLength(7)
			before := sample(customRegistry, "duelarena_core_queue_pairs_total")
			RecordPairFormed()

			Convey("Then gauges and counters reflect the calls", func() {
				So(sample(customRegistry, "duelarena_core_queue_length"), ShouldEqual, 7)
				So(sample(customRegistry, "duelarena_core_queue_pairs_total"), ShouldEqual, before+1)
			})
		})

		Convey("When recording labelled metrics", func() {
			RecordAnswer(true)
			RecordMatchFinished("completed")
			RecordScenarioRecompute("staking", 0.3)
			RecordError("router", "match_not_active")

			Convey("Then the labelled series are updated", func() {
				So(sample(customRegistry, "duelarena_core_answers_total", "true"), ShouldBeGreaterThanOrEqualTo, 1)
				So(sample(customRegistry, "duelarena_core_matches_finished_total", "completed"), ShouldBeGreaterThanOrEqualTo, 1)
				So(sample(customRegistry, "duelarena_core_scenario_recomputes_total", "staking"), ShouldBeGreaterThanOrEqualTo, 1)
				So(sample(customRegistry, "duelarena_core_scenario_recompute_milliseconds", "staking"), ShouldBeGreaterThanOrEqualTo, 1)
				So(sample(customRegistry, "duelarena_core_errors_total", "match_not_active", "router"), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})
	})
}
