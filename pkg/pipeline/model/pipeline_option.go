package model

import "time"

// PipelineOption defines the interface for pipeline options.
//
// The hooks of a single materialization are called in this order: PrepareNode once per
// reachable node in dependency order, OnNodeOutput as nodes complete (possibly from several
// workers at once), then Finish. Failed nodes get no OnNodeOutput call.
type PipelineOption interface {
	// New initialises the pipeline option.
	New() error
	// PrepareNode runs before any node of the materialization is executed.
	PrepareNode(parents []*NodeInfo, node *NodeInfo) error
	// OnNodeOutput runs when a node produced its result. waitDuration is the time between
	// the node becoming ready and a worker picking it up.
	OnNodeOutput(parents []*NodeInfo, node *NodeInfo, waitDuration, computationDuration time.Duration) error
	// Finish runs after the materialization is finished, whether it succeeded or not.
	Finish() error
}
