package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it uses the assay namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "assay")
				So(manager.subsystem, ShouldEqual, "scoring")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("test_prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.metricPrefix, ShouldEqual, "test_prefix")
				So(manager.refreshInterval, ShouldEqual, 10*time.Second)
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})

			Convey("Then metric names carry the prefix", func() {
				manager.scoringStarted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_namespace_test_subsystem_test_prefix_runs_started_total")
			})
		})

		Convey("When empty option values are given", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "assay")
				So(manager.subsystem, ShouldEqual, "scoring")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestScoringMetrics(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When scoring runs are recorded", func() {
			before := testutil.ToFloat64(globalManager.scoringCompleted.WithLabelValues("JOB_FIT"))
			RecordScoringStarted()
			RecordScoringCompleted("JOB_FIT")
			RecordScoringCompleted("JOB_FIT")
			RecordScoringLatency(12.5)

			Convey("Then completed runs are counted per goal", func() {
				after := testutil.ToFloat64(globalManager.scoringCompleted.WithLabelValues("JOB_FIT"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When insufficient evidence is recorded", func() {
			before := testutil.ToFloat64(globalManager.insufficientEvidence)
			RecordInsufficientEvidence(3)
			RecordInsufficientEvidence(0)
			RecordInsufficientEvidence(-1)

			Convey("Then only positive counts are added", func() {
				So(testutil.ToFloat64(globalManager.insufficientEvidence)-before, ShouldEqual, 3)
			})
		})

		Convey("When failures and idempotent hits are recorded", func() {
			before := testutil.ToFloat64(globalManager.scoringFailed.WithLabelValues("strategy"))
			RecordScoringFailed("strategy")
			RecordIdempotentHit()
			So(testutil.ToFloat64(globalManager.scoringFailed.WithLabelValues("strategy"))-before, ShouldEqual, 1)
		})
	})
}

func TestPsychometricMetrics(t *testing.T) {
	Convey("Given psychometric gauges", t, func() {
		Convey("When item counts are updated", func() {
			UpdateItemStatusCount("ACTIVE", 12)
			UpdateItemStatusCount("ACTIVE", 7)

			Convey("Then the gauge holds the latest value", func() {
				So(testutil.ToFloat64(globalManager.itemStatus.WithLabelValues("ACTIVE")), ShouldEqual, 7)
			})
		})

		Convey("When a competency alpha is updated", func() {
			UpdateCompetencyReliability("c1", 0.82)
			So(testutil.ToFloat64(globalManager.competencyReliability.WithLabelValues("c1")), ShouldEqual, 0.82)
		})

		Convey("When recalculations are recorded", func() {
			So(func() {
				RecordRecalculation("all")
				RecordRecalculationLatency(40)
			}, ShouldNotPanic)
		})
	})
}

func TestOperationalMetrics(t *testing.T) {
	Convey("Given operational metrics", t, func() {
		Convey("When queue and worker metrics are recorded", func() {
			So(func() {
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(10)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(3)
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(1)
				UpdateWorkerIdleCount(3)
				RecordWorkerProcessingLatency(8)
				RecordWorkerError()
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 10)
			So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
		})

		Convey("When HTTP, event and error metrics are recorded", func() {
			before := testutil.ToFloat64(globalManager.httpRequests.WithLabelValues("/sessions/{id}/score", "POST", "200"))
			RecordHTTPRequest("/sessions/{id}/score", "POST", "200")
			RecordHTTPRequestDuration("/sessions/{id}/score", "POST", "200", 5)
			RecordEventPublished("ScoringCompleted")
			RecordEventPublishError("ScoringCompleted")
			RecordRepositoryQueryLatency("save_result", 1.5)
			RecordErrorByComponent("orchestrator", "strategy")
			RecordErrorByType("timeout", "error")
			RecordErrorByEndpoint("activate", "POST", "illegal_state")

			after := testutil.ToFloat64(globalManager.httpRequests.WithLabelValues("/sessions/{id}/score", "POST", "200"))
			So(after-before, ShouldEqual, 1)
		})

		Convey("When system metrics are recorded", func() {
			So(func() {
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(globalManager.queueEnqueued)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					RecordQueueEnqueue()
					RecordScoringLatency(float64(j))
				}
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			So(testutil.ToFloat64(globalManager.queueEnqueued)-before, ShouldEqual, 1000)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the global registry", t, func() {
		RecordScoringStarted()
		families, err := GetRegistry().Gather()
		So(err, ShouldBeNil)
		So(len(families), ShouldBeGreaterThan, 0)
	})
}
