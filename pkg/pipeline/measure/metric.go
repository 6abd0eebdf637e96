package measure

import (
	"sync"
	"time"
)

// DefaultMetric is a Metric safe for concurrent use.
type DefaultMetric struct {
	mu      sync.Mutex
	runs    int
	compute time.Duration
	end     time.Duration
	waits   map[string]Wait
}

func newDefaultMetric() *DefaultMetric {
	return &DefaultMetric{waits: make(map[string]Wait)}
}

func (mt *DefaultMetric) Record(compute time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.runs++
	mt.compute += compute
}

func (mt *DefaultMetric) RecordWait(input string, wait time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	w := mt.waits[input]
	w.Total += wait
	w.Count++
	mt.waits[input] = w
}

func (mt *DefaultMetric) SetEnd(end time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.end = end
}

func (mt *DefaultMetric) End() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.end
}

func (mt *DefaultMetric) Runs() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.runs
}

func (mt *DefaultMetric) MeanCompute() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mean(mt.compute, mt.runs)
}

func (mt *DefaultMetric) MeanWaits() map[string]time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	res := make(map[string]time.Duration, len(mt.waits))
	for input, w := range mt.waits {
		res[input] = mean(w.Total, w.Count)
	}

	return res
}

func (mt *DefaultMetric) Waits() map[string]Wait {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	res := make(map[string]Wait, len(mt.waits))
	for input, w := range mt.waits {
		res[input] = w
	}

	return res
}

func mean(total time.Duration, n int) time.Duration {
	if n == 0 {
		return 0
	}

	return round(total / time.Duration(n))
}

// round trims d to the unit of its magnitude, for display.
func round(d time.Duration) time.Duration {
	steps := []struct{ above, unit time.Duration }{
		{time.Hour, time.Minute},
		{time.Second, time.Second},
		{time.Millisecond, time.Millisecond},
		{time.Microsecond, time.Microsecond},
	}
	for _, s := range steps {
		if d > s.above {
			return d.Round(s.unit)
		}
	}

	return d
}
