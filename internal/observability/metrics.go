package observability

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Cioraz/Iot-Project/internal/replay"
)

// SimCollector bundles Prometheus metrics for simulation runs: delivery
// outcomes, attacker activity, and scheduler throughput.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Outcomes          *prometheus.CounterVec
	Transmissions     prometheus.Counter
	EventsFired       prometheus.Counter
	PendingEvents     prometheus.Gauge
	SimTime           *prometheus.GaugeVec
	Runs              *prometheus.CounterVec
	SimulatedDuration prometheus.Histogram
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Registering twice against the same registry reuses the existing
// collectors.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	outcomes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dio_outcomes_total",
		Help: "DIO deliveries handled by receivers, labeled by node and decision.",
	}, []string{"node", "decision"}), "dio_outcomes_total")
	if err != nil {
		return nil, err
	}

	transmissions, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attacker_transmissions_total",
		Help: "Replayed DIO transmissions performed by attackers.",
	}), "attacker_transmissions_total")
	if err != nil {
		return nil, err
	}

	fired, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_events_fired_total",
		Help: "Event occurrences invoked by the discrete-event scheduler.",
	}), "scheduler_events_fired_total")
	if err != nil {
		return nil, err
	}

	pending, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_pending_events",
		Help: "Events waiting to fire after the most recent invocation.",
	}), "scheduler_pending_events")
	if err != nil {
		return nil, err
	}

	simTime, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simulation_time_seconds",
		Help: "Current simulated time of the most recently advanced run, per scenario.",
	}, []string{"scenario"}), "simulation_time_seconds")
	if err != nil {
		return nil, err
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_runs_total",
		Help: "Completed simulation runs, labeled by scenario and result.",
	}, []string{"scenario", "result"}), "simulation_runs_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "simulation_final_time_seconds",
		Help:    "Simulated time reached when a run terminated.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
	}), "simulation_final_time_seconds")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:          gatherer,
		Outcomes:          outcomes,
		Transmissions:     transmissions,
		EventsFired:       fired,
		PendingEvents:     pending,
		SimTime:           simTime,
		Runs:              runs,
		SimulatedDuration: duration,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Record counts one delivery outcome. It satisfies the report.Sink interface
// so the collector can sit directly on the outcome stream.
func (c *SimCollector) Record(o replay.Outcome) {
	if c == nil || c.Outcomes == nil {
		return
	}
	c.Outcomes.WithLabelValues(strconv.FormatUint(uint64(o.Node), 10), o.Decision.String()).Inc()
}

// IncTransmissions counts one attacker transmission.
func (c *SimCollector) IncTransmissions() {
	if c == nil || c.Transmissions == nil {
		return
	}
	c.Transmissions.Inc()
}

// ObserveEventFired satisfies scheduler.MetricsRecorder.
func (c *SimCollector) ObserveEventFired(pending int) {
	if c == nil {
		return
	}
	if c.EventsFired != nil {
		c.EventsFired.Inc()
	}
	if c.PendingEvents != nil {
		c.PendingEvents.Set(float64(pending))
	}
}

// ObserveSimTime tracks a run's virtual clock as it advances.
func (c *SimCollector) ObserveSimTime(scenario string, seconds float64) {
	if c == nil || c.SimTime == nil {
		return
	}
	c.SimTime.WithLabelValues(scenario).Set(seconds)
}

// ObserveRun records the end of a run.
func (c *SimCollector) ObserveRun(scenario string, finalSeconds float64, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	if c.Runs != nil {
		c.Runs.WithLabelValues(scenario, result).Inc()
	}
	if c.SimulatedDuration != nil {
		c.SimulatedDuration.Observe(finalSeconds)
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
