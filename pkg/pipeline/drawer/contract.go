package drawer

import (
	"github.com/tfharrelson/md-flow/pkg/pipeline/measure"
)

// Drawer is an interface that defines the methods for drawing a materialization graph.
type Drawer interface {
	// AddNode adds a node to the drawing. Adding the same ID twice is not an error.
	AddNode(id, label string) error
	// AddLink adds a link between a dependency and the node consuming it.
	AddLink(parentID, childID string) error
	// Draw creates a file with the graph.
	Draw() error
	// AddMeasure annotates nodes and links with the timings of measure.
	AddMeasure(measure measure.Measure) error
}
