package session

import "github.com/prometheus/client_golang/prometheus"

var (
	linesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "droidscope",
		Subsystem: "pipeline",
		Name:      "lines_total",
		Help:      "Log lines read from the source",
	})
	candidatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "droidscope",
		Subsystem: "pipeline",
		Name:      "candidates_total",
		Help:      "Marker lines that carried a JSON fragment",
	})
	malformedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "droidscope",
		Subsystem: "pipeline",
		Name:      "malformed_total",
		Help:      "Fragments dropped as malformed JSON",
	})
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "droidscope",
		Subsystem: "pipeline",
		Name:      "events_total",
		Help:      "Domain events emitted by kind",
	}, []string{"kind"})
	sourceErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "droidscope",
		Subsystem: "pipeline",
		Name:      "source_errors_total",
		Help:      "Sessions that ended or failed to start because the source was unavailable",
	})
	running = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "droidscope",
		Subsystem: "pipeline",
		Name:      "running",
		Help:      "1 while a monitoring session is running",
	})
)

func init() {
	prometheus.MustRegister(linesTotal, candidatesTotal, malformedTotal, eventsTotal, sourceErrorsTotal, running)
}
