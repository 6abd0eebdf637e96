package measure

import (
	"sync"
)

// DefaultMeasure keeps metrics in memory, keyed by node ID.
type DefaultMeasure struct {
	mu      sync.RWMutex
	metrics map[string]*DefaultMetric
}

func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{metrics: make(map[string]*DefaultMetric)}
}

// AddMetric registers the metric of nodeID. The metric of a node already known is returned
// as is, so repeated materializations accumulate.
func (m *DefaultMeasure) AddMetric(nodeID string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	mt, ok := m.metrics[nodeID]
	if !ok {
		mt = newDefaultMetric()
		m.metrics[nodeID] = mt
	}

	return mt
}

// GetMetric returns the metric of nodeID, or nil when the node was never prepared.
func (m *DefaultMeasure) GetMetric(nodeID string) Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if mt, ok := m.metrics[nodeID]; ok {
		return mt
	}

	return nil
}

func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res := make(map[string]Metric, len(m.metrics))
	for id, mt := range m.metrics {
		res[id] = mt
	}

	return res
}

var _ Measure = (*DefaultMeasure)(nil)
