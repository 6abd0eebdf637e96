// Package pipeline provides a lazily evaluated graph of typed computations.
//
// Building a pipeline does not run anything. Constructors such as Source, Then, Then2 and Join
// record a computation together with the nodes it consumes and return a *Node[T], a handle to a
// result that does not exist yet. Nodes are immutable once built, so the same node can feed any
// number of downstream nodes and a whole sub-graph can be handed around as a single value.
//
// Materialize turns a node into its value. It collects every node the target depends on into a
// directed acyclic graph, then runs the nodes on the worker pool of a Pipeline: a node starts once
// all of its dependencies have succeeded, independent branches run concurrently, and every node is
// executed exactly once per Materialize call even when it is reachable through several paths.
//
// The pipeline stops on the first error. The error is returned wrapped with the name of the node
// that failed; the original error stays reachable with errors.Is and errors.As. No partial result
// is returned.
//
// Pipeline options implementing model.PipelineOption observe every materialization; the measure
// and drawer sub-packages use them to time nodes and render the graph.
package pipeline
