package measure_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfharrelson/md-flow/pkg/pipeline/measure"
	"github.com/tfharrelson/md-flow/pkg/pipeline/model"
)

func TestDefaultMetric(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	mt := msr.AddMetric("minimize#1")
	mt.Record(2 * time.Second)
	mt.Record(4 * time.Second)
	mt.RecordWait("convert#0", 10*time.Millisecond)
	mt.RecordWait("convert#0", 30*time.Millisecond)

	assert.Equal(t, 2, mt.Runs())
	assert.Equal(t, 3*time.Second, mt.MeanCompute())
	assert.Equal(t, map[string]time.Duration{"convert#0": 20 * time.Millisecond}, mt.MeanWaits())
	assert.Equal(t, measure.Wait{Total: 40 * time.Millisecond, Count: 2}, mt.Waits()["convert#0"])
	assert.Same(t, mt, msr.AddMetric("minimize#1"))
	assert.Nil(t, msr.GetMetric("produce#9"))
}

func TestMeanRounding(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		compute time.Duration
		want    time.Duration
	}{
		"hours to minutes":      {compute: 2*time.Hour + 31*time.Second, want: 2*time.Hour + time.Minute},
		"seconds":               {compute: 1500 * time.Millisecond, want: 2 * time.Second},
		"milliseconds":          {compute: 12*time.Millisecond + 400*time.Microsecond, want: 12 * time.Millisecond},
		"microseconds":          {compute: 3*time.Microsecond + 200*time.Nanosecond, want: 3 * time.Microsecond},
		"nanoseconds untouched": {compute: 700 * time.Nanosecond, want: 700 * time.Nanosecond},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mt := measure.NewDefaultMeasure().AddMetric("execute#0")
			mt.Record(tc.compute)
			assert.Equal(t, tc.want, mt.MeanCompute())
		})
	}
}

func TestDefaultMetricConcurrent(t *testing.T) {
	t.Parallel()

	mt := measure.NewDefaultMeasure().AddMetric("solvate#3")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mt.Record(time.Millisecond)
			mt.RecordWait("convert#2", time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, mt.Runs())
	assert.Equal(t, 50, mt.Waits()["convert#2"].Count)
}

func TestPipelineMeasure(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	opt := measure.PipelineMeasure(msr)

	parent := &model.NodeInfo{ID: "fetch#0", Name: "fetch"}
	node := &model.NodeInfo{ID: "convert#1", Name: "convert", Deps: []string{"fetch#0"}}

	require.NoError(t, opt.New())
	require.NoError(t, opt.PrepareNode(nil, parent))
	require.NoError(t, opt.PrepareNode([]*model.NodeInfo{parent}, node))
	require.NoError(t, opt.OnNodeOutput([]*model.NodeInfo{parent}, node, time.Millisecond, time.Second))
	require.NoError(t, opt.Finish())

	got := msr.GetMetric("convert#1")
	require.NotNil(t, got)
	assert.Equal(t, time.Second, got.MeanCompute())
	assert.Contains(t, got.Waits(), "fetch#0")
	assert.Positive(t, got.End())
	assert.Len(t, msr.AllMetrics(), 2)
	assert.Zero(t, msr.GetMetric("fetch#0").Runs())
}
