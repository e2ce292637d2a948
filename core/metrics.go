package core

import "context"

// Engine metrics follow the "verification.<operation>.<measure>" convention,
// tagged with operation, status, and the record identifiers present on the
// observed call.
const metricNamespace = "verification"

func operationCounterName(operation string) string {
	return metricNamespace + "." + operation + ".total"
}

func operationDurationName(operation string) string {
	return metricNamespace + "." + operation + ".duration_ms"
}

// NopMetricsRecorder discards all measurements. The engine falls back to it
// when no recorder is configured.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
