package engine

// MetricsRecorder receives operational events from the engine. The monitoring
// package provides the prometheus-backed implementation; tests run with the
// no-op one.
type MetricsRecorder interface {
	OrderPlaced(lines int)
	OrderRejected(reason string)
	ShortfallObserved(ingredient string)
	BatchesConsumed(count int)
	ObserveForecastDuration(seconds float64)
}

type nopMetrics struct{}

func (nopMetrics) OrderPlaced(int)                 {}
func (nopMetrics) OrderRejected(string)            {}
func (nopMetrics) ShortfallObserved(string)        {}
func (nopMetrics) BatchesConsumed(int)             {}
func (nopMetrics) ObserveForecastDuration(float64) {}

// NopMetrics is a MetricsRecorder that discards everything.
var NopMetrics MetricsRecorder = nopMetrics{}
