package model

// NodeInfo describes a node of a materialization graph to pipeline options.
type NodeInfo struct {
	// ID is unique within a process.
	ID string
	// Name is the stage name given when the node was built, e.g. "minimize".
	Name string
	// Deps are the IDs of the nodes this one consumes, in argument order.
	Deps []string
}

// Label is the name shown for the node in reports.
func (n *NodeInfo) Label() string {
	if n.Name != "" {
		return n.Name
	}

	return n.ID
}
