package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpTurn, 100*time.Millisecond)
	c.RecordTiming(OpTurn, 300*time.Millisecond)
	c.RecordFailure(OpTurn)

	s := c.Snapshot()
	require.NotNil(t, s.Turn)
	assert.Equal(t, int64(2), s.Turn.Count)
	assert.Equal(t, int64(1), s.Turn.Failed)
	assert.Equal(t, int64(400), s.Turn.TotalTimeMs)
	assert.Equal(t, 200.0, s.Turn.AvgTimeMs)
	assert.Equal(t, int64(100), s.Turn.MinTimeMs)
	assert.Equal(t, int64(300), s.Turn.MaxTimeMs)
	assert.Nil(t, s.Replay)
}

func TestFailureOnly(t *testing.T) {
	c := NewCollector()
	c.RecordFailure(OpReplay)

	s := c.Snapshot()
	require.NotNil(t, s.Replay)
	assert.Equal(t, int64(0), s.Replay.Count)
	assert.Equal(t, int64(0), s.Replay.MinTimeMs)
}

func TestRenderRatio(t *testing.T) {
	c := NewCollector()
	assert.Zero(t, c.Snapshot().Render.Ratio())

	c.RecordRenders(120, 10)
	assert.Equal(t, 12.0, c.Snapshot().Render.Ratio())
}

func TestReset(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpThink, time.Second)
	c.RecordRenders(1, 1)
	c.Reset()

	s := c.Snapshot()
	assert.Nil(t, s.Think)
	assert.Zero(t, s.Render.Requested)
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpFirstToken, time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Snapshot().FirstToken.Count)
}
