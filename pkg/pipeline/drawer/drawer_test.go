package drawer_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfharrelson/md-flow/pkg/pipeline/drawer"
	"github.com/tfharrelson/md-flow/pkg/pipeline/measure"
	"github.com/tfharrelson/md-flow/pkg/pipeline/model"
)

func TestDOTDrawer(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer(filepath.Join(t.TempDir(), "flow.dot"))
	require.NoError(t, d.AddNode("fetch#0", "fetch"))
	require.NoError(t, d.AddNode("convert#1", "convert"))
	require.NoError(t, d.AddNode("convert#1", "convert"))
	require.NoError(t, d.AddLink("fetch#0", "convert#1"))
	require.NoError(t, d.AddLink("fetch#0", "convert#1"))
	assert.Error(t, d.AddLink("fetch#0", "missing"))

	var buf bytes.Buffer
	require.NoError(t, d.Write(&buf))
	assert.Contains(t, buf.String(), "strict digraph")
	assert.Contains(t, buf.String(), `"fetch#0" -> "convert#1"`)
	assert.Contains(t, buf.String(), `label="convert"`)
}

func TestPipelineDrawerWithMeasure(t *testing.T) {
	t.Parallel()

	fileName := filepath.Join(t.TempDir(), "flow.dot")
	msr := measure.NewDefaultMeasure()
	measureOpt := measure.PipelineMeasure(msr)
	drawOpt := drawer.PipelineDrawer(drawer.NewDOTDrawer(fileName), msr)

	fetch := &model.NodeInfo{ID: "fetch#0", Name: "fetch"}
	convert := &model.NodeInfo{ID: "convert#1", Name: "convert", Deps: []string{"fetch#0"}}
	minimize := &model.NodeInfo{ID: "minimize#2", Name: "minimize", Deps: []string{"convert#1"}}

	for _, opt := range []model.PipelineOption{measureOpt, drawOpt} {
		require.NoError(t, opt.New())
		require.NoError(t, opt.PrepareNode(nil, fetch))
		require.NoError(t, opt.PrepareNode([]*model.NodeInfo{fetch}, convert))
		require.NoError(t, opt.PrepareNode([]*model.NodeInfo{convert}, minimize))
		require.NoError(t, opt.OnNodeOutput(nil, fetch, 0, time.Second))
		require.NoError(t, opt.OnNodeOutput([]*model.NodeInfo{fetch}, convert, 5*time.Millisecond, 2*time.Second))
		require.NoError(t, opt.OnNodeOutput([]*model.NodeInfo{convert}, minimize, 50*time.Millisecond, 3*time.Second))
	}
	require.NoError(t, measureOpt.Finish())
	require.NoError(t, drawOpt.Finish())

	content, err := os.ReadFile(fileName)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"convert#1" -> "minimize#2"`)
	assert.Contains(t, string(content), "50ms")
	assert.Contains(t, string(content), "color=")
	assert.Contains(t, string(content), `label=<minimize <BR /> <FONT POINT-SIZE="12">3s, end: `)
	assert.Contains(t, string(content), `color="#f00000"`, "the longest wait is red")
	assert.Contains(t, string(content), `color="#0000f0"`, "the shortest wait is blue")
}

func TestDOTDrawerStableOutput(t *testing.T) {
	t.Parallel()

	render := func() string {
		d := drawer.NewDOTDrawer(filepath.Join(t.TempDir(), "flow.dot"))
		for _, id := range []string{"nvt#2", "fetch#0", "npt#3", "convert#1"} {
			require.NoError(t, d.AddNode(id, id[:len(id)-2]))
		}
		require.NoError(t, d.AddLink("fetch#0", "convert#1"))
		require.NoError(t, d.AddLink("convert#1", "npt#3"))
		require.NoError(t, d.AddLink("convert#1", "nvt#2"))

		var buf bytes.Buffer
		require.NoError(t, d.Write(&buf))
		return buf.String()
	}

	first := render()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, render())
	}
}
