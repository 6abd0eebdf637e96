package measure

import "time"

// Measure collects one Metric per node ID.
type Measure interface {
	AddMetric(nodeID string) Metric
	GetMetric(nodeID string) Metric
	AllMetrics() map[string]Metric
}

// Metric accumulates the timings of a node over the materializations it ran in.
type Metric interface {
	// Record counts one run that computed for compute.
	Record(compute time.Duration)
	// RecordWait adds the time the node spent ready to run after input finished.
	RecordWait(input string, wait time.Duration)
	// SetEnd sets when the node last finished, from the start of its materialization.
	SetEnd(end time.Duration)
	End() time.Duration
	Runs() int
	MeanCompute() time.Duration
	// MeanWaits returns the mean wait per input.
	MeanWaits() map[string]time.Duration
	Waits() map[string]Wait
}

// Wait is the accumulated wait of a node on one input.
type Wait struct {
	Total time.Duration
	Count int
}
