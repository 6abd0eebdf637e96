package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/pkg/pipeline/measure"
	"github.com/tfharrelson/md-flow/pkg/pipeline/model"
)

type pipelineDrawer struct {
	Drawer
	measure measure.Measure
}

func (pd *pipelineDrawer) New() error {
	return nil
}

func (pd *pipelineDrawer) PrepareNode(parents []*model.NodeInfo, node *model.NodeInfo) error {
	err := pd.AddNode(node.ID, node.Label())
	if err != nil {
		return errors.Wrapf(err, "unable to draw node %s", node.ID)
	}

	for _, parent := range parents {
		err := pd.AddLink(parent.ID, node.ID)
		if err != nil {
			return errors.Wrapf(err, "unable to draw link to %s", node.ID)
		}
	}

	return nil
}

func (pd *pipelineDrawer) OnNodeOutput(_ []*model.NodeInfo, _ *model.NodeInfo, _, _ time.Duration) error {
	return nil
}

func (pd *pipelineDrawer) Finish() error {
	if pd.measure != nil {
		err := pd.AddMeasure(pd.measure)
		if err != nil {
			return errors.Wrap(err, "unable to add measure")
		}
	}

	return pd.Draw()
}

// PipelineDrawer draws every materialization into drawer. When msr is not nil, nodes and
// links are annotated with its timings; msr must also be installed with
// measure.PipelineMeasure, before this option.
func PipelineDrawer(drawer Drawer, msr measure.Measure) model.PipelineOption {
	return &pipelineDrawer{Drawer: drawer, measure: msr}
}
