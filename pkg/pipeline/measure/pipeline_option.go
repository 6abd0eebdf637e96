package measure

import (
	"time"

	"github.com/tfharrelson/md-flow/pkg/pipeline/model"
)

type pipelineMeasure struct {
	Measure
	start time.Time
}

func (pm *pipelineMeasure) New() error {
	return nil
}

func (pm *pipelineMeasure) PrepareNode(_ []*model.NodeInfo, node *model.NodeInfo) error {
	if pm.start.IsZero() {
		pm.start = time.Now()
	}
	pm.AddMetric(node.ID)

	return nil
}

func (pm *pipelineMeasure) OnNodeOutput(parents []*model.NodeInfo, node *model.NodeInfo, wait, compute time.Duration) error {
	mt := pm.AddMetric(node.ID)
	mt.Record(compute)
	for _, parent := range parents {
		mt.RecordWait(parent.ID, wait)
	}
	mt.SetEnd(time.Since(pm.start))

	return nil
}

func (pm *pipelineMeasure) Finish() error {
	pm.start = time.Time{}
	return nil
}

// PipelineMeasure records node timings into measure.
func PipelineMeasure(measure Measure) model.PipelineOption {
	return &pipelineMeasure{Measure: measure}
}
