package irrigation_controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "garden"

// Metrics groups the controller's Prometheus collectors.
type Metrics struct {
	TankLevel        prometheus.Gauge
	Temperature      prometheus.Gauge
	WateringCursor   prometheus.Gauge
	FertilizingPhase prometheus.Gauge
	SpinOwner        prometheus.Gauge
	RelayCooldown    prometheus.Gauge
	SolenoidStall    *prometheus.GaugeVec
	DosedSeconds     *prometheus.CounterVec
	HackToggles      *prometheus.CounterVec
	RainEvents       prometheus.Counter
	EchoSamples      prometheus.Counter
	SkippedSeconds   prometheus.Counter
}

// NewMetrics registers the collectors on reg; a nil reg gets a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		TankLevel: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "tank_level_percent",
			Help: "Water tank level derived from the last echo sample.",
		}),
		Temperature: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "temperature_celsius",
			Help: "Last air temperature sample.",
		}),
		WateringCursor: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "watering_cursor",
			Help: "Watering cycle cursor: -2 idle, -1 starting, 0..5 active line.",
		}),
		FertilizingPhase: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "fertilizing_phase",
			Help: "Fertilizing cycle phase: 0 idle, 1 priming, 2 dispensing.",
		}),
		SpinOwner: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "spin_lock_owner",
			Help: "Line currently holding the solenoid spin lock, -1 when free.",
		}),
		RelayCooldown: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "relay_cooldown_seconds",
			Help: "Remaining relay-noise cooldown during which echo edges are ignored.",
		}),
		SolenoidStall: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "solenoid_spin_seconds",
			Help: "Seconds a line has been spinning without confirming its position.",
		}, []string{"line"}),
		DosedSeconds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "dosed_seconds_total",
			Help: "Valve-open seconds commanded by the watering cycle.",
		}, []string{"line"}),
		HackToggles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "hack_timer_toggles_total",
			Help: "Scheduled toggles performed by per-line hack timers.",
		}, []string{"line"}),
		RainEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "rain_events_total",
			Help: "Debounced rain sensor trips.",
		}),
		EchoSamples: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "tank_echo_samples_total",
			Help: "Echo pulse widths consumed by the ledger.",
		}),
		SkippedSeconds: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "skipped_seconds_total",
			Help: "Second boundaries the control loop did not observe.",
		}),
	}
}
