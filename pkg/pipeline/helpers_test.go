package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tfharrelson/md-flow/internal/ctxlog"
	"github.com/tfharrelson/md-flow/pkg/pipeline/model"
)

func newTestPipeline(t *testing.T, opts ...PipelineOption) *Pipeline {
	t.Helper()
	p, err := New(append([]PipelineOption{PipelineLogger(ctxlog.Discard())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(p.Shutdown)

	return p
}

func countedSource(name string, calls *atomic.Int32, v int) *Node[int] {
	return Source(name, func(context.Context) (int, error) {
		calls.Add(1)
		return v, nil
	})
}

type testError struct {
	stage string
}

func (e *testError) Error() string {
	return "stage " + e.stage + " exploded"
}

type recordingHook struct {
	mu       sync.Mutex
	prepared []string
	outputs  []string
	parents  map[string][]string
	finished int
}

func (r *recordingHook) New() error {
	r.parents = make(map[string][]string)
	return nil
}

func (r *recordingHook) PrepareNode(parents []*model.NodeInfo, node *model.NodeInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prepared = append(r.prepared, node.Name)
	for _, parent := range parents {
		r.parents[node.Name] = append(r.parents[node.Name], parent.Name)
	}

	return nil
}

func (r *recordingHook) OnNodeOutput(_ []*model.NodeInfo, node *model.NodeInfo, _, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, node.Name)

	return nil
}

func (r *recordingHook) Finish() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++

	return nil
}
