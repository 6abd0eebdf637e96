package drawer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/template"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/tfharrelson/md-flow/pkg/pipeline/measure"
)

// DOTDrawer writes the graph of a materialization in Graphviz DOT format.
type DOTDrawer struct {
	graph    graph.Graph[string, string]
	fileName string
}

// NewDOTDrawer returns a drawer writing to fileName.
func NewDOTDrawer(fileName string) *DOTDrawer {
	return &DOTDrawer{
		fileName: fileName,
		graph:    graph.New(graph.StringHash, graph.Directed()),
	}
}

// AddNode adds a node to the graph.
func (d *DOTDrawer) AddNode(id, label string) error {
	err := d.graph.AddVertex(id, graph.VertexAttribute("label", label))
	if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return errors.Wrap(err, "unable to add vertex")
	}

	return nil
}

// AddLink adds a link from a dependency to the node consuming it.
func (d *DOTDrawer) AddLink(parentID, childID string) error {
	err := d.graph.AddEdge(parentID, childID)
	if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return errors.Wrapf(err, "unable to add edge from %s to %s", parentID, childID)
	}

	return nil
}

// Draw writes the graph to the file of d, replacing it.
func (d *DOTDrawer) Draw() error {
	file, err := os.Create(d.fileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.fileName)
	}
	defer file.Close()

	err = d.Write(file)
	if err != nil {
		return errors.Wrapf(err, "unable to write dot file %s", d.fileName)
	}

	return nil
}

// Write renders the graph to w.
func (d *DOTDrawer) Write(w io.Writer) error {
	desc, err := d.describe()
	if err != nil {
		return err
	}

	return dotTemplate.Execute(w, desc)
}

const maxRGB = 240

// AddMeasure annotates nodes with their mean computation time and end, and links with the mean
// time the node waited on them, coloured from blue (shortest wait) to red (longest wait).
func (d *DOTDrawer) AddMeasure(msr measure.Measure) error {
	metrics := msr.AllMetrics()

	palette, err := waitPalette(metrics)
	if err != nil {
		return err
	}

	for id, mt := range metrics {
		_, props, err := d.graph.VertexWithProperties(id)
		if errors.Is(err, graph.ErrVertexNotFound) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "unable to get vertex %s", id)
		}

		var timing string
		if mean := mt.MeanCompute(); mean != 0 {
			timing = mean.String()
		}
		if end := mt.End(); end > 0 {
			timing += ", end: " + end.String()
		}
		if timing != "" {
			props.Attributes["xlabel"] = timing
		}

		for input, wait := range mt.MeanWaits() {
			if wait == 0 {
				continue
			}
			err := d.graph.UpdateEdge(input, id,
				graph.EdgeAttribute("label", wait.String()),
				graph.EdgeAttribute("fontcolor", "blue"),
				graph.EdgeAttribute("color", palette[wait]),
			)
			if err != nil && !errors.Is(err, graph.ErrEdgeNotFound) {
				return errors.Wrapf(err, "unable to annotate edge from %s to %s", input, id)
			}
		}
	}

	return nil
}

// waitPalette maps every distinct non-zero mean wait to a colour between blue and red.
func waitPalette(metrics map[string]measure.Metric) (map[time.Duration]string, error) {
	palette := make(map[time.Duration]string)
	var lo, hi time.Duration
	for _, mt := range metrics {
		for _, wait := range mt.MeanWaits() {
			if wait == 0 {
				continue
			}
			if len(palette) == 0 || wait < lo {
				lo = wait
			}
			if wait > hi {
				hi = wait
			}
			palette[wait] = ""
		}
	}

	for wait := range palette {
		fraction := 1.0
		if hi > lo {
			fraction = float64(wait-lo) / float64(hi-lo)
		}

		colour, err := colors.RGB(uint8(maxRGB*fraction), 0, uint8(maxRGB-maxRGB*fraction)) //nolint
		if err != nil {
			return nil, errors.Wrap(err, "unable to get colour")
		}
		palette[wait] = colour.ToHEX().String()
	}

	return palette, nil
}

type dotNode struct {
	ID         string
	HTMLLabel  string
	Attributes map[string]string
	Weight     int
}

type dotEdge struct {
	Source     string
	Target     string
	Attributes map[string]string
	Weight     int
}

type description struct {
	Nodes []dotNode
	Edges []dotEdge
}

// describe lists nodes and edges sorted by ID so the output is stable.
func (d *DOTDrawer) describe() (description, error) {
	adjacency, err := d.graph.AdjacencyMap()
	if err != nil {
		return description{}, errors.Wrap(err, "unable to get adjacency map")
	}

	ids := make([]string, 0, len(adjacency))
	for id := range adjacency {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var desc description
	for _, id := range ids {
		_, props, err := d.graph.VertexWithProperties(id)
		if err != nil {
			return description{}, errors.Wrapf(err, "unable to get vertex %s", id)
		}

		node := dotNode{ID: id, Weight: props.Weight, Attributes: make(map[string]string, len(props.Attributes))}
		for k, v := range props.Attributes {
			node.Attributes[k] = v
		}
		if timing, ok := node.Attributes["xlabel"]; ok {
			label := node.Attributes["label"]
			if label == "" {
				label = id
			}
			node.HTMLLabel = fmt.Sprintf(`<%s <BR /> <FONT POINT-SIZE="12">%s</FONT>>`, label, timing)
			delete(node.Attributes, "xlabel")
			delete(node.Attributes, "label")
		}
		desc.Nodes = append(desc.Nodes, node)

		targets := make([]string, 0, len(adjacency[id]))
		for target := range adjacency[id] {
			targets = append(targets, target)
		}
		sort.Strings(targets)

		for _, target := range targets {
			edge := adjacency[id][target]
			desc.Edges = append(desc.Edges, dotEdge{
				Source:     id,
				Target:     target,
				Attributes: edge.Properties.Attributes,
				Weight:     edge.Properties.Weight,
			})
		}
	}

	return desc, nil
}

var dotTemplate = template.Must(template.New("dot").Parse(`strict digraph {
{{- range .Nodes}}
	"{{.ID}}" [ {{if .HTMLLabel}}label={{.HTMLLabel}}, {{end}}{{range $k, $v := .Attributes}}{{$k}}="{{$v}}", {{end}}weight={{.Weight}} ];
{{- end}}
{{- range .Edges}}
	"{{.Source}}" -> "{{.Target}}" [ {{range $k, $v := .Attributes}}{{$k}}="{{$v}}", {{end}}weight={{.Weight}} ];
{{- end}}
}
`))
